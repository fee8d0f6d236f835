// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scheduler runs the bounded sequence of sampling phases: power the
// sensor, acquire a window, persist it, classify it, and halt once the cycle
// budget is spent.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/accel"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/storage"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// MaxAttempts bounds the initialization and persistence attempts per phase.
const MaxAttempts = 3

// ErrHalted is returned once the cycle budget is exhausted. It is terminal
// until ResetCycles is called.
var ErrHalted = errors.New("cycle budget exhausted, system halted")

// Lifecycle powers and initializes the sensor.
type Lifecycle interface {
	SetPower(on bool) error
	Initialize() error
}

// Acquirer fills a sample window.
type Acquirer interface {
	Acquire(window time.Duration) *accel.Buffer
	CheckOverflow() bool
}

// Classifier analyzes a persisted window.
type Classifier interface {
	Classify(buf *accel.Buffer) spectral.Result
}

// Halter puts the device into its terminal state.
type Halter interface {
	Halt()
}

// HalterFunc adapts a function to Halter.
type HalterFunc func()

func (f HalterFunc) Halt() { f() }

// Deps are the collaborators of one scheduler. Reporter, Halter and Log may be
// nil.
type Deps struct {
	Lifecycle  Lifecycle
	Sampler    Acquirer
	Store      storage.Store
	Classifier Classifier
	Reporter   telemetry.Reporter
	Halter     Halter
	Clock      timing.Clock
	Log        *zap.Logger
}

// Settings controls phase pacing.
type Settings struct {
	TotalPhases   int           // phases per Run
	AttemptSettle time.Duration // after power-on, before Initialize
	PhaseDuration time.Duration // acquisition window
	PhaseDelay    time.Duration // after every phase
}

func DefaultSettings() Settings {
	return Settings{
		TotalPhases:   60,
		AttemptSettle: time.Second,
		PhaseDuration: 10 * time.Second,
		PhaseDelay:    5 * time.Second,
	}
}

// Status is the outcome of a phase.
type Status int

const (
	Pending Status = iota
	Completed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Phase is one iteration of the scheduler.
type Phase struct {
	Index    int
	Attempts int
	Status   Status
	Result   *spectral.Result // set when completed
}

// Scheduler owns the remaining-cycle counter. It is not safe for concurrent
// use; one goroutine drives Run.
type Scheduler struct {
	d     Deps
	cfg   Settings
	log   *zap.Logger
	runID string

	remaining int
	halted    bool
}

// New returns a scheduler with a budget of cycles phases.
func New(d Deps, cfg Settings, cycles int) *Scheduler {
	if d.Reporter == nil {
		d.Reporter = telemetry.Discard
	}
	if d.Halter == nil {
		d.Halter = HalterFunc(func() {})
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = timing.Wall()
	}
	runID := uuid.NewString()
	return &Scheduler{
		d:         d,
		cfg:       cfg,
		log:       d.Log.Named("scheduler").With(zap.String("run_id", runID)),
		runID:     runID,
		remaining: cycles,
	}
}

// RunID identifies this scheduler in stored windows and telemetry.
func (s *Scheduler) RunID() string { return s.runID }

// Remaining returns the cycle budget left.
func (s *Scheduler) Remaining() int { return s.remaining }

// Halted reports whether the terminal state was reached.
func (s *Scheduler) Halted() bool { return s.halted }

// ResetCycles reinitializes the budget and leaves the halted state.
func (s *Scheduler) ResetCycles(n int) {
	s.remaining = n
	s.halted = false
	s.log.Info("cycle budget reset", zap.Int("remaining", n))
}

// Run executes up to TotalPhases phases. It returns ErrHalted when the budget
// is or becomes exhausted, the context error when cancelled between phases,
// and nil when all phases ran. Acquisition windows are never interrupted.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.halted || s.remaining <= 0 {
		return s.halt()
	}

	for i := 1; i <= s.cfg.TotalPhases; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Info("run cancelled", zap.Int("next_phase", i))
			return err
		}

		p := s.runPhase(i)

		s.remaining--
		s.log.Info("phase concluded",
			zap.Int("phase", p.Index),
			zap.Stringer("status", p.Status),
			zap.Int("attempts", p.Attempts),
			zap.Int("remaining", s.remaining),
		)
		if s.remaining <= 0 {
			return s.halt()
		}
		s.d.Clock.Sleep(s.cfg.PhaseDelay)
	}
	return nil
}

// runPhase performs the attempts of one phase. Every failed attempt, whether
// initialization or persistence failed, counts toward MaxAttempts.
func (s *Scheduler) runPhase(index int) Phase {
	p := Phase{Index: index}

	for p.Attempts < MaxAttempts {
		p.Attempts++
		s.report(telemetry.Event{Kind: telemetry.KindPhaseStart, Phase: index, Attempt: p.Attempts})

		if err := s.d.Lifecycle.SetPower(true); err != nil {
			s.report(telemetry.Event{Kind: telemetry.KindInitFailed, Phase: index, Attempt: p.Attempts, Err: err.Error()})
			continue
		}
		s.d.Clock.Sleep(s.cfg.AttemptSettle)

		if err := s.d.Lifecycle.Initialize(); err != nil {
			s.report(telemetry.Event{
				Kind:    telemetry.KindInitFailed,
				Phase:   index,
				Attempt: p.Attempts,
				Message: "MPU6050 initialization failed, retrying",
				Err:     err.Error(),
			})
			continue
		}

		buf := s.d.Sampler.Acquire(s.cfg.PhaseDuration)
		if s.d.Sampler.CheckOverflow() {
			s.report(telemetry.Event{Kind: telemetry.KindOverflow, Phase: index, Attempt: p.Attempts, Message: "FIFO overflow detected, FIFO reset"})
		}

		if err := s.d.Store.Write(s.runID, index, buf); err != nil {
			s.report(telemetry.Event{
				Kind:    telemetry.KindPersistFailed,
				Phase:   index,
				Attempt: p.Attempts,
				Message: "failed to save sample window, remounting storage",
				Err:     err.Error(),
			})
			if err := s.d.Store.Remount(); err != nil {
				s.report(telemetry.Event{
					Kind:    telemetry.KindRemountFailed,
					Phase:   index,
					Attempt: p.Attempts,
					Message: "storage remount failed, abandoning phase",
					Err:     err.Error(),
				})
				break
			}
			continue
		}

		p.Status = Completed
		s.powerOff()
		res := s.d.Classifier.Classify(buf)
		p.Result = &res
		s.report(telemetry.Event{
			Kind:    telemetry.KindDetection,
			Phase:   index,
			Attempt: p.Attempts,
			Message: res.Message,
			Result:  &res,
		})
		return p
	}

	p.Status = Skipped
	s.powerOff()
	s.report(telemetry.Event{Kind: telemetry.KindPhaseSkipped, Phase: index, Attempt: p.Attempts, Message: "phase skipped"})
	return p
}

func (s *Scheduler) powerOff() {
	if err := s.d.Lifecycle.SetPower(false); err != nil {
		s.log.Warn("sensor power off failed", zap.Error(err))
	}
}

func (s *Scheduler) halt() error {
	if !s.halted {
		s.halted = true
		s.report(telemetry.Event{Kind: telemetry.KindHalted, Message: "cycle budget exhausted, halting"})
		s.d.Halter.Halt()
	}
	return ErrHalted
}

// report stamps ev with run-level fields. The remaining count is the value
// before the current phase is charged.
func (s *Scheduler) report(ev telemetry.Event) {
	ev.Time = s.d.Clock.Now()
	ev.RunID = s.runID
	ev.Remaining = s.remaining
	s.d.Reporter.Report(ev)
}
