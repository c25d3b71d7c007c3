package checksum

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealVerify(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 7)
	}
	sum := Seal(data)
	binary.LittleEndian.PutUint64(data[:8], sum)
	require.True(t, Verify(data))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}
	binary.LittleEndian.PutUint64(data[:8], Seal(data))
	require.True(t, Verify(data))

	data[100] ^= 0xFF
	assert.False(t, Verify(data))
}

func TestSealLeavesDataIntact(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	before := make([]byte, 64)
	copy(before, data)
	Seal(data)
	assert.Equal(t, before, data)
}

func TestFletcher64KnownProperties(t *testing.T) {
	zeros := make([]byte, 256)
	assert.Equal(t, uint64(0), Fletcher64(zeros))

	one := make([]byte, 8)
	one[0] = 1
	// sum1 = 1 after word 0, stays 1; sum2 = 1 then 2.
	assert.Equal(t, uint64(2)<<32|1, Fletcher64(one))
}

func TestVerifyShortBuffer(t *testing.T) {
	assert.False(t, Verify([]byte{1, 2, 3}))
}
