package fs

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/grosfs/go-grosfs/internal/types"
)

// memDevice is an in-memory block device for exercising the core without a
// backing file. Geometry is chosen per test: small blocks make the
// indirect-addressing transitions reachable on a small device.
type memDevice struct {
	blockSize int32
	blocks    [][]byte
}

func newMemDevice(diskSize int64, blockSize int32) *memDevice {
	n := diskSize / int64(blockSize)
	blocks := make([][]byte, n)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &memDevice{blockSize: blockSize, blocks: blocks}
}

func (d *memDevice) check(n int32, buf []byte) error {
	if n < 0 || int(n) >= len(d.blocks) {
		return fmt.Errorf("block %d out of range", n)
	}
	if int32(len(buf)) != d.blockSize {
		return fmt.Errorf("buffer is %d bytes, want %d", len(buf), d.blockSize)
	}
	return nil
}

func (d *memDevice) ReadBlock(n int32, buf []byte) error {
	if err := d.check(n, buf); err != nil {
		return err
	}
	copy(buf, d.blocks[n])
	return nil
}

func (d *memDevice) WriteBlock(n int32, buf []byte) error {
	if err := d.check(n, buf); err != nil {
		return err
	}
	copy(d.blocks[n], buf)
	return nil
}

func (d *memDevice) BlockSize() int32   { return d.blockSize }
func (d *memDevice) TotalBlocks() int32 { return int32(len(d.blocks)) }
func (d *memDevice) Size() int64        { return int64(len(d.blocks)) * int64(d.blockSize) }
func (d *memDevice) Close() error       { return nil }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestFS formats a fresh in-memory filesystem.
func newTestFS(t *testing.T, diskSize int64, blockSize int32) *Filesystem {
	t.Helper()
	fsys, err := Mkfs(newMemDevice(diskSize, blockSize), testLogger())
	require.NoError(t, err)
	return fsys
}

// defaultTestFS uses the production geometry: 4 MiB device, 4 KiB blocks.
func defaultTestFS(t *testing.T) *Filesystem {
	t.Helper()
	return newTestFS(t, types.DefaultDiskSize, types.DefaultBlockSize)
}

// smallTestFS uses 256-byte blocks so indirect transitions sit close by:
// N = 64 pointers, direct range ends at 3072 bytes, single-indirect at
// 19456, double-indirect at 1068032.
func smallTestFS(t *testing.T) *Filesystem {
	t.Helper()
	return newTestFS(t, 4<<20, 256)
}

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = seed + byte(i%131)
	}
	return buf
}
