// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/lifecycle"
	"github.com/relabs-tech/woodguard/internal/sampler"
	"github.com/relabs-tech/woodguard/internal/scheduler"
	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// Pipeline is the wired sampling and classification chain.
type Pipeline struct {
	Lifecycle  *lifecycle.Manager
	Sampler    *sampler.Sampler
	Classifier *spectral.Classifier
	Scheduler  *scheduler.Scheduler
}

// buildPipeline wires the core components from cfg around dev.
func buildPipeline(
	cfg *config.Config,
	dev sensors.Device,
	rail sensors.PowerRail,
	clock timing.Clock,
	store storage.Store,
	reporter telemetry.Reporter,
	halter scheduler.Halter,
	log *zap.Logger,
) (*Pipeline, error) {
	life := lifecycle.New(dev, rail, clock, log, lifecycle.Settings{
		PowerOnSettle:     config.Ms(cfg.PowerOnSettleMs),
		PowerOffSettle:    config.Ms(cfg.PowerOffSettleMs),
		SetupSettle:       config.Ms(cfg.SetupSettleMs),
		ResetSettle:       100 * time.Millisecond,
		Stabilize:         config.Ms(cfg.StabilizeMs),
		DLPFMode:          1,
		SampleRateDivider: lifecycle.SampleRateDivider(cfg.SampleRateHz),
		AccelRange:        sensors.AccelRange2G,
	})

	samp := sampler.New(dev, clock, log, cfg.MaxSamples, sampler.Settings{
		BlockSize:    cfg.BlockSize,
		EmptyBackoff: config.Ms(cfg.EmptyBackoffMs),
		PollInterval: sampler.PollInterval(cfg.SampleRateHz),
	})

	cls, err := spectral.NewClassifier(spectral.Settings{
		SampleRateHz: float64(cfg.SampleRateHz),
		FFTSize:      cfg.FFTSize,
		Bands:        cfg.Bands(),
		Threshold:    cfg.Threshold,
		LogSpectrum:  cfg.LogSpectrum,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	sched := scheduler.New(scheduler.Deps{
		Lifecycle:  life,
		Sampler:    samp,
		Store:      store,
		Classifier: cls,
		Reporter:   reporter,
		Halter:     halter,
		Clock:      clock,
		Log:        log,
	}, scheduler.Settings{
		TotalPhases:   cfg.TotalPhases,
		AttemptSettle: config.Ms(cfg.AttemptSettleMs),
		PhaseDuration: config.Ms(cfg.PhaseDurationMs),
		PhaseDelay:    config.Ms(cfg.PhaseDelayMs),
	}, cfg.CycleBudget)

	return &Pipeline{Lifecycle: life, Sampler: samp, Classifier: cls, Scheduler: sched}, nil
}

// ledHalter blinks the status LED quickly to mark the terminal state.
type ledHalter struct {
	led   *sensors.StatusLED
	clock timing.Clock
	log   *zap.Logger
}

func (h ledHalter) Halt() {
	h.log.Warn("cycle budget exhausted, halting")
	if h.led == nil {
		return
	}
	if err := h.led.Blink(10, 100*time.Millisecond, h.clock.Sleep); err != nil {
		h.log.Warn("status LED blink failed", zap.Error(err))
	}
}
