package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/woodguard/internal/lifecycle"
	"github.com/relabs-tech/woodguard/internal/sampler"
	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

func TestPipelineWithSimulatedSensor(t *testing.T) {
	clock := timing.NewSimClock(time.Date(2026, 7, 9, 22, 0, 0, 0, time.UTC))
	dev := sensors.NewSimDevice(clock, sensors.SimOptions{
		RateHz:          1000,
		Tones:           []sensors.Tone{{FreqHz: 40, AmplitudeG: 0.3}, {FreqHz: 150, AmplitudeG: 0.5}},
		FailConnections: 3,
	})

	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "samples.db"), clock, nil)
	require.NoError(t, err)
	defer store.Close()

	cls, err := spectral.NewClassifier(spectral.DefaultSettings(), nil)
	require.NoError(t, err)

	rec := &telemetry.Recorder{}
	halted := false
	s := New(Deps{
		Lifecycle:  lifecycle.New(dev, dev, clock, nil, lifecycle.DefaultSettings()),
		Sampler:    sampler.New(dev, clock, nil, 1024, sampler.DefaultSettings()),
		Store:      store,
		Classifier: cls,
		Reporter:   rec,
		Halter:     HalterFunc(func() { halted = true }),
		Clock:      clock,
	}, Settings{
		TotalPhases:   3,
		AttemptSettle: time.Second,
		PhaseDuration: 2 * time.Second,
		PhaseDelay:    5 * time.Second,
	}, 3)

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.True(t, halted)
	assert.False(t, dev.Powered())

	// phase 1 spends its three attempts on connection failures
	assert.Equal(t, 1, rec.Count(telemetry.KindPhaseSkipped))
	assert.Equal(t, 3, rec.Count(telemetry.KindInitFailed))

	var detections []telemetry.Event
	for _, ev := range rec.Events() {
		if ev.Kind == telemetry.KindDetection {
			detections = append(detections, ev)
		}
	}
	require.Len(t, detections, 2)
	for _, ev := range detections {
		require.NotNil(t, ev.Result)
		assert.Equal(t, spectral.Chainsaw, ev.Result.Category)
		assert.Greater(t, ev.Result.Peaks[spectral.Axe], spectral.DefaultThreshold)
		assert.Equal(t, 1024, ev.Result.Samples)
	}
	assert.Equal(t, []int{2, 3}, []int{detections[0].Phase, detections[1].Phase})

	ws, err := store.Windows(10)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	for _, w := range ws {
		assert.Equal(t, s.RunID(), w.RunID)
		assert.Equal(t, 1024, w.Samples)
	}
}
