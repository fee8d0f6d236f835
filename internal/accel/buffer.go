// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

// LSBPerG is the accelerometer sensitivity at the ±2g full-scale range.
const LSBPerG = 16384.0

// FrameSize is the number of FIFO bytes per accelerometer sample (X, Y, Z as
// big-endian int16).
const FrameSize = 6

// CountsToG converts a raw two's-complement reading to g-force.
func CountsToG(raw int16) float32 {
	return float32(float64(raw) / LSBPerG)
}

// Buffer is a fixed-capacity window of single-axis g-force samples kept in
// acquisition order.
type Buffer struct {
	values []float32
}

// NewBuffer returns an empty buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{values: make([]float32, 0, capacity)}
}

// FromValues builds a buffer of the given capacity pre-filled with vals.
// Values beyond capacity are dropped.
func FromValues(capacity int, vals ...float32) *Buffer {
	b := NewBuffer(capacity)
	for _, v := range vals {
		if !b.Append(v) {
			break
		}
	}
	return b
}

// Append adds one sample and reports whether it fit.
func (b *Buffer) Append(g float32) bool {
	if len(b.values) == cap(b.values) {
		return false
	}
	b.values = append(b.values, g)
	return true
}

// Len returns the number of samples collected. A nil buffer is empty.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.values)
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return cap(b.values)
}

// Full reports whether no more samples can be appended.
func (b *Buffer) Full() bool {
	return b.Len() == b.Cap()
}

// Reset empties the buffer, keeping its storage.
func (b *Buffer) Reset() {
	b.values = b.values[:0]
}

// Values returns the collected samples. The slice aliases the buffer and must
// be treated as read-only; it is overwritten by the next acquisition.
func (b *Buffer) Values() []float32 {
	if b == nil {
		return nil
	}
	return b.values[:len(b.values):len(b.values)]
}
