// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries one-way progress, detection and error reports out
// of the pipeline. Sinks never feed anything back into the scheduler.
package telemetry

import (
	"sync"
	"time"

	"github.com/relabs-tech/woodguard/internal/gps"
	"github.com/relabs-tech/woodguard/internal/spectral"
)

// Kind classifies an Event.
type Kind string

const (
	KindPhaseStart    Kind = "phase_start"
	KindInitFailed    Kind = "init_failed"
	KindOverflow      Kind = "fifo_overflow"
	KindPersistFailed Kind = "persist_failed"
	KindRemountFailed Kind = "remount_failed"
	KindPhaseSkipped  Kind = "phase_skipped"
	KindDetection     Kind = "detection"
	KindHalted        Kind = "halted"
)

// Event is one report. Result is set only for detections.
type Event struct {
	Time      time.Time        `json:"time"`
	RunID     string           `json:"run_id"`
	Kind      Kind             `json:"kind"`
	Phase     int              `json:"phase,omitempty"`
	Attempt   int              `json:"attempt,omitempty"`
	Remaining int              `json:"remaining"`
	Message   string           `json:"message,omitempty"`
	Err       string           `json:"error,omitempty"`
	Result    *spectral.Result `json:"result,omitempty"`
	Location  *gps.Fix         `json:"location,omitempty"`
}

// Reporter consumes events. Report must not block the caller for long and
// must not fail it.
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(ev Event) { f(ev) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

type multi []Reporter

func (m multi) Report(ev Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

// Multi fans every event out to all non-nil reporters in order.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// WithLocation stamps detection events with a fixed device position.
func WithLocation(r Reporter, fix gps.Fix) Reporter {
	return ReporterFunc(func(ev Event) {
		if ev.Kind == KindDetection && ev.Location == nil {
			f := fix
			ev.Location = &f
		}
		r.Report(ev)
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kind of each recorded event in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}
