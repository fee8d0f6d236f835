// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler fills a sample window from the accelerometer FIFO within a
// fixed wall-clock budget.
package sampler

import (
	"encoding/binary"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/accel"
	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// Settings controls FIFO polling.
type Settings struct {
	BlockSize    int           // bytes read per poll once available
	EmptyBackoff time.Duration // extra wait when the FIFO is empty
	PollInterval time.Duration // wait after every poll
}

// DefaultSettings polls at the 1 kHz sample period with 160-frame blocks.
func DefaultSettings() Settings {
	return Settings{
		BlockSize:    960,
		EmptyBackoff: 100 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

// PollInterval derives the poll pacing from the target sample rate.
func PollInterval(rateHz int) time.Duration {
	if rateHz <= 0 {
		return time.Millisecond
	}
	return time.Second / time.Duration(rateHz)
}

// Stats describes the last acquisition window.
type Stats struct {
	Polls      int
	EmptyPolls int
	BlocksRead int
	Frames     int
	Dropped    int // frames decoded after the buffer was full
	ReadErrors int
	Elapsed    time.Duration
}

// Sampler owns the sample buffer. Each Acquire overwrites it.
type Sampler struct {
	dev   sensors.Device
	clock timing.Clock
	log   *zap.Logger
	cfg   Settings

	buf   *accel.Buffer
	block []byte
	stats Stats
}

// New returns a sampler whose buffer holds at most maxSamples values.
func New(dev sensors.Device, clock timing.Clock, log *zap.Logger, maxSamples int, cfg Settings) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BlockSize < accel.FrameSize {
		cfg.BlockSize = accel.FrameSize
	}
	return &Sampler{
		dev:   dev,
		clock: clock,
		log:   log.Named("sampler"),
		cfg:   cfg,
		buf:   accel.NewBuffer(maxSamples),
		block: make([]byte, cfg.BlockSize),
	}
}

// Acquire polls the FIFO until window has elapsed and returns the X-axis
// samples collected, in g. The result may be shorter than the buffer
// capacity, and is never longer.
//
// Each poll that finds at least one full block reads exactly that block and
// then resets the FIFO, so anything queued beyond the block is discarded.
// This keeps memory and bus time bounded at the cost of gaps between blocks.
func (s *Sampler) Acquire(window time.Duration) *accel.Buffer {
	s.buf.Reset()
	s.stats = Stats{}
	start := s.clock.Now()

	for timing.Since(s.clock, start) < window {
		s.stats.Polls++
		count, err := s.dev.FIFOCount()
		if err != nil {
			s.stats.ReadErrors++
			s.log.Warn("FIFO count read failed", zap.Error(err))
		}

		switch {
		case err != nil:
		case count >= s.cfg.BlockSize:
			if err := s.dev.ReadFIFO(s.block); err != nil {
				s.stats.ReadErrors++
				s.log.Warn("FIFO block read failed", zap.Error(err))
				break
			}
			if err := s.dev.ResetFIFO(); err != nil {
				s.log.Warn("FIFO reset failed", zap.Error(err))
			}
			s.stats.BlocksRead++
			s.decode(s.block)
		case count == 0:
			s.stats.EmptyPolls++
			s.clock.Sleep(s.cfg.EmptyBackoff)
		}

		s.clock.Sleep(s.cfg.PollInterval)
	}

	s.stats.Elapsed = timing.Since(s.clock, start)
	s.log.Debug("acquisition window closed",
		zap.Int("samples", s.buf.Len()),
		zap.Int("blocks", s.stats.BlocksRead),
		zap.Int("empty_polls", s.stats.EmptyPolls),
		zap.Int("dropped", s.stats.Dropped),
		zap.Duration("elapsed", s.stats.Elapsed),
	)
	return s.buf
}

// decode appends the X axis of each whole frame in block until the buffer
// is full. Y and Z are ignored.
func (s *Sampler) decode(block []byte) {
	for i := 0; i+accel.FrameSize <= len(block); i += accel.FrameSize {
		s.stats.Frames++
		raw := int16(binary.BigEndian.Uint16(block[i:]))
		if !s.buf.Append(accel.CountsToG(raw)) {
			s.stats.Dropped++
		}
	}
}

// CheckOverflow reports a latched FIFO overflow and resets the FIFO when one
// occurred. It never interrupts acquisition.
func (s *Sampler) CheckOverflow() bool {
	ov, err := s.dev.FIFOOverflow()
	if err != nil {
		s.log.Warn("FIFO overflow status read failed", zap.Error(err))
		return false
	}
	if !ov {
		return false
	}
	s.log.Warn("FIFO overflow detected")
	if err := s.dev.ResetFIFO(); err != nil {
		s.log.Warn("FIFO reset after overflow failed", zap.Error(err))
	}
	return true
}

// Stats returns counters for the last Acquire call.
func (s *Sampler) Stats() Stats { return s.stats }
