// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package storage

import (
	"errors"

	"github.com/relabs-tech/woodguard/internal/accel"
)

// ErrInjected is returned by Faulty for scheduled failures.
var ErrInjected = errors.New("storage: injected failure")

// Store is the persistence contract the pipeline writes through. Write is
// all-or-nothing; Remount is only called after a failed Write.
type Store interface {
	Write(runID string, phase int, buf *accel.Buffer) error
	Remount() error
}

// Faulty wraps a Store and fails every FailEvery-th write, so simulated runs
// exercise the remount path. FailRemount makes every remount fail as well.
type Faulty struct {
	Store
	FailEvery   int
	FailRemount bool

	writes int
}

func (f *Faulty) Write(runID string, phase int, buf *accel.Buffer) error {
	f.writes++
	if f.FailEvery > 0 && f.writes%f.FailEvery == 0 {
		return ErrInjected
	}
	return f.Store.Write(runID, phase, buf)
}

func (f *Faulty) Remount() error {
	if f.FailRemount {
		return ErrInjected
	}
	return f.Store.Remount()
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*Faulty)(nil)
)
