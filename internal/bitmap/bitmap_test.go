package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTestClear(t *testing.T) {
	buf := make([]byte, 4)
	bm := New(32, buf)

	assert.Equal(t, 0, bm.Test(5))
	assert.Equal(t, 5, bm.Set(5))
	assert.Equal(t, 1, bm.Test(5))
	// LSB-first: bit 5 of byte 0.
	assert.Equal(t, byte(1<<5), buf[0])

	assert.Equal(t, 5, bm.Set(5), "set is idempotent")
	assert.Equal(t, 5, bm.Clear(5))
	assert.Equal(t, 0, bm.Test(5))
	assert.Equal(t, 5, bm.Clear(5), "clear is idempotent")
}

func TestOutOfRange(t *testing.T) {
	bm := New(10, make([]byte, 2))

	assert.Equal(t, 1, bm.Test(-1), "out of range reads as used")
	assert.Equal(t, 1, bm.Test(10))
	assert.Equal(t, -1, bm.Set(10))
	assert.Equal(t, -1, bm.Clear(-1))
}

func TestFirstClear(t *testing.T) {
	buf := make([]byte, 2)
	bm := New(12, buf)

	require.Equal(t, 0, bm.FirstClear())
	for i := 0; i < 5; i++ {
		bm.Set(i)
	}
	assert.Equal(t, 5, bm.FirstClear())

	for i := 0; i < 12; i++ {
		bm.Set(i)
	}
	assert.Equal(t, -1, bm.FirstClear(), "full bitmap has no clear bit")

	bm.Clear(7)
	assert.Equal(t, 7, bm.FirstClear())
}

func TestFirstClearIgnoresBitsPastSize(t *testing.T) {
	// Byte 1 has clear bits beyond the 9-bit range; they must not be
	// handed out.
	buf := make([]byte, 2)
	bm := New(9, buf)
	for i := 0; i < 9; i++ {
		bm.Set(i)
	}
	assert.Equal(t, -1, bm.FirstClear())
}

func TestPopcount(t *testing.T) {
	bm := New(16, make([]byte, 2))
	assert.Equal(t, 0, bm.Popcount())
	bm.Set(0)
	bm.Set(8)
	bm.Set(15)
	assert.Equal(t, 3, bm.Popcount())
}
