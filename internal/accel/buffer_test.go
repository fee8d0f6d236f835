package accel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := NewBuffer(4)
	for i := 0; i < 10; i++ {
		ok := b.Append(float32(i))
		assert.Equal(t, i < 4, ok, "append %d", i)
	}
	require.Equal(t, 4, b.Len())
	assert.True(t, b.Full())
	assert.Equal(t, []float32{0, 1, 2, 3}, b.Values())
}

func TestBufferReset(t *testing.T) {
	b := FromValues(3, 1, 2, 3, 4)
	require.Equal(t, 3, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.True(t, b.Append(9))
	assert.Equal(t, []float32{9}, b.Values())
}

func TestValuesIsCapped(t *testing.T) {
	b := FromValues(8, 1, 2)
	v := b.Values()
	assert.Equal(t, 2, cap(v))

	// appending to the view must not write into the buffer's spare capacity
	_ = append(v, 42)
	assert.True(t, b.Append(3))
	assert.Equal(t, []float32{1, 2, 3}, b.Values())
}

func TestNilBufferIsEmpty(t *testing.T) {
	var b *Buffer
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Cap())
	assert.Nil(t, b.Values())
}

func TestCountsToG(t *testing.T) {
	assert.InDelta(t, 1.0, CountsToG(16384), 1e-6)
	assert.InDelta(t, -1.0, CountsToG(-16384), 1e-6)
	assert.InDelta(t, -2.0, CountsToG(math.MinInt16), 1e-6)
	assert.InDelta(t, 0.0, CountsToG(0), 1e-9)
}
