// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/scheduler"
	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// SimulationOptions describes a bench run against a simulated sensor.
type SimulationOptions struct {
	// Scenario holds the vibration of successive phases; phase i uses
	// Scenario[(i-1) % len(Scenario)]. Empty means silence.
	Scenario [][]sensors.Tone
	// FailConnections makes the first N connection checks fail.
	FailConnections int
	// PersistFailEvery fails every Nth storage write (0 disables).
	PersistFailEvery int
	// Publish sends telemetry to the configured MQTT broker as well.
	Publish bool
}

// DefaultScenario cycles through quiet, saw, axe and chainsaw phases. Tones
// sit on transform bins so no energy leaks into neighbouring bands.
func DefaultScenario(rateHz float64, fftSize int) [][]sensors.Tone {
	bin := func(k int) float64 { return float64(k) * rateHz / float64(fftSize) }
	return [][]sensors.Tone{
		nil,
		{{FreqHz: bin(12), AmplitudeG: 0.2}},
		{{FreqHz: bin(36), AmplitudeG: 0.4}},
		{{FreqHz: bin(123), AmplitudeG: 0.6}, {FreqHz: bin(36), AmplitudeG: 0.1}},
	}
}

// Summary counts what a simulated run produced.
type Summary struct {
	Detections map[spectral.Category]int
	Skipped    int
	Remaining  int
	Halted     bool
	Windows    int
	Simulated  time.Duration
}

// RunSimulation runs the full pipeline on a simulated clock and sensor, so a
// whole deployment completes in seconds.
func RunSimulation(ctx context.Context, cfg *config.Config, opts SimulationOptions, log *zap.Logger) (Summary, error) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timing.NewSimClock(start)
	dev := sensors.NewSimDevice(clock, sensors.SimOptions{
		RateHz:          float64(cfg.SampleRateHz),
		FailConnections: opts.FailConnections,
	})

	sqlite, err := storage.OpenSQLite(cfg.DBPath, clock, log)
	if err != nil {
		return Summary{}, err
	}
	defer sqlite.Close()
	var store storage.Store = sqlite
	if opts.PersistFailEvery > 0 {
		store = &storage.Faulty{Store: sqlite, FailEvery: opts.PersistFailEvery}
	}

	sum := Summary{Detections: map[spectral.Category]int{}}
	counter := telemetry.ReporterFunc(func(ev telemetry.Event) {
		switch ev.Kind {
		case telemetry.KindPhaseStart:
			if ev.Attempt == 1 && len(opts.Scenario) > 0 {
				dev.SetTones(opts.Scenario[(ev.Phase-1)%len(opts.Scenario)]...)
			}
		case telemetry.KindDetection:
			sum.Detections[ev.Result.Category]++
		case telemetry.KindPhaseSkipped:
			sum.Skipped++
		}
	})

	reporters := []telemetry.Reporter{counter, telemetry.NewLogSink(log)}
	if opts.Publish {
		client, err := telemetry.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDMonitor+"-sim", log)
		if err != nil {
			return Summary{}, err
		}
		defer client.Disconnect(250)
		reporters = append(reporters, telemetry.NewMQTTSink(client, cfg.TopicDetection, cfg.TopicPhase, log))
	}

	p, err := buildPipeline(cfg, dev, dev, clock, store, telemetry.Multi(reporters...), ledHalter{clock: clock, log: log}, log)
	if err != nil {
		return Summary{}, err
	}

	if err := p.Lifecycle.Setup(); err != nil {
		log.Warn("initial sensor setup failed", zap.Error(err))
	}

	err = p.Scheduler.Run(ctx)
	if err != nil && !errors.Is(err, scheduler.ErrHalted) {
		return Summary{}, err
	}

	sum.Remaining = p.Scheduler.Remaining()
	sum.Halted = p.Scheduler.Halted()
	sum.Simulated = clock.Now().Sub(start)
	windows, err := sqlite.RunWindows(p.Scheduler.RunID())
	if err != nil {
		return Summary{}, err
	}
	sum.Windows = len(windows)
	return sum, nil
}
