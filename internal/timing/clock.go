// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package timing provides the clock every blocking wait in the pipeline goes
// through, so acquisition windows and settle delays can be driven by a
// simulated clock in tests and bench runs.
package timing

import (
	"time"
)

// Clock is the source of wall time and blocking delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

type wallClock struct{}

// Wall returns the real clock.
func Wall() Clock { return wallClock{} }

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// SimClock is a manually advanced clock. Sleep returns immediately after
// moving the clock forward. It is not safe for concurrent use.
type SimClock struct {
	now   time.Time
	slept time.Duration
	calls int
}

// NewSimClock returns a simulated clock starting at start.
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{now: start}
}

func (c *SimClock) Now() time.Time { return c.now }

func (c *SimClock) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.now = c.now.Add(d)
	c.slept += d
	c.calls++
}

// Advance moves the clock without counting as a sleep.
func (c *SimClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Slept returns the total duration passed to Sleep.
func (c *SimClock) Slept() time.Duration { return c.slept }

// Sleeps returns the number of Sleep calls.
func (c *SimClock) Sleeps() int { return c.calls }
