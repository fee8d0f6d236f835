package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/spectral"
)

func simConfig(t *testing.T, phases int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "sim.db")
	cfg.TotalPhases = phases
	cfg.CycleBudget = phases
	cfg.PhaseDurationMs = 2000
	return cfg
}

func TestSimulationClassifiesEachScenarioPhase(t *testing.T) {
	cfg := simConfig(t, 4)
	sum, err := RunSimulation(context.Background(), cfg, SimulationOptions{
		Scenario: DefaultScenario(float64(cfg.SampleRateHz), cfg.FFTSize),
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, map[spectral.Category]int{
		spectral.None:     1,
		spectral.Saw:      1,
		spectral.Axe:      1,
		spectral.Chainsaw: 1,
	}, sum.Detections)
	assert.Zero(t, sum.Skipped)
	assert.Zero(t, sum.Remaining)
	assert.True(t, sum.Halted)
	assert.Equal(t, 4, sum.Windows)
	assert.Greater(t, sum.Simulated.Seconds(), 4*2.0)
}

func TestSimulationSkipsPhaseOnConnectionFailures(t *testing.T) {
	cfg := simConfig(t, 3)
	cfg.CycleBudget = 5
	// one failure is spent by the initial setup, three by phase 1
	sum, err := RunSimulation(context.Background(), cfg, SimulationOptions{
		Scenario:        DefaultScenario(float64(cfg.SampleRateHz), cfg.FFTSize),
		FailConnections: 4,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, map[spectral.Category]int{spectral.Saw: 1, spectral.Axe: 1}, sum.Detections)
	assert.Equal(t, 2, sum.Remaining)
	assert.False(t, sum.Halted)
	assert.Equal(t, 2, sum.Windows)
}

func TestSimulationRecoversFromPersistFailures(t *testing.T) {
	cfg := simConfig(t, 2)
	sum, err := RunSimulation(context.Background(), cfg, SimulationOptions{
		PersistFailEvery: 2,
	}, zap.NewNop())
	require.NoError(t, err)

	// the second write fails and is retried after a remount
	assert.Zero(t, sum.Skipped)
	assert.Equal(t, map[spectral.Category]int{spectral.None: 2}, sum.Detections)
	assert.Equal(t, 2, sum.Windows)
	assert.True(t, sum.Halted)
}

func TestSimulationRejectsBadClassifierSettings(t *testing.T) {
	cfg := simConfig(t, 1)
	cfg.FFTSize = 1000
	_, err := RunSimulation(context.Background(), cfg, SimulationOptions{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSimulationCountsOnlyItsOwnWindows(t *testing.T) {
	cfg := simConfig(t, 2)

	first, err := RunSimulation(context.Background(), cfg, SimulationOptions{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Windows)

	// same database file, new run
	second, err := RunSimulation(context.Background(), cfg, SimulationOptions{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Windows)
}
