// File: internal/fs/fs.go

// Package fs implements the on-disk filesystem core: superblock and
// free-inode cache, the block-group allocator, the inode lifecycle, the
// file I/O engine with three levels of indirect addressing, the directory
// layer, and the mkfs/fsck passes. All state lives on the block device; an
// in-memory Inode or Superblock is a value that must be saved to become
// visible. One operation runs to completion before the next is admitted;
// the adapter serializes calls.
package fs

import (
	"fmt"

	"github.com/grosfs/go-grosfs/internal/interfaces"
	"github.com/grosfs/go-grosfs/internal/types"
)

// Filesystem is the handle every operation takes. It owns the device and
// the cached superblock; the superblock is persisted after every mutation.
type Filesystem struct {
	dev interfaces.BlockDevice
	sb  *types.Superblock
}

// Open loads and validates the superblock from an already-formatted device.
func Open(dev interfaces.BlockDevice) (*Filesystem, error) {
	sb, err := loadSuperblock(dev)
	if err != nil {
		return nil, err
	}
	return &Filesystem{dev: dev, sb: sb}, nil
}

// Superblock exposes the cached superblock to the CLI and fsck reporting.
func (fs *Filesystem) Superblock() *types.Superblock {
	return fs.sb
}

// Device returns the underlying block device.
func (fs *Filesystem) Device() interfaces.BlockDevice {
	return fs.dev
}

// Close closes the backing device.
func (fs *Filesystem) Close() error {
	return fs.dev.Close()
}

func (fs *Filesystem) blockSize() int32 {
	return fs.sb.BlockSize
}

func (fs *Filesystem) readBlock(n int32) ([]byte, error) {
	buf := make([]byte, fs.blockSize())
	if err := fs.dev.ReadBlock(n, buf); err != nil {
		return nil, fmt.Errorf("%w: read block %d: %v", ErrIO, n, err)
	}
	return buf, nil
}

func (fs *Filesystem) writeBlock(n int32, buf []byte) error {
	if err := fs.dev.WriteBlock(n, buf); err != nil {
		return fmt.Errorf("%w: write block %d: %v", ErrIO, n, err)
	}
	return nil
}

func ceilDiv32(a, b int32) int32 {
	return (a + b - 1) / b
}

func ceilDiv64(a, b int64) int64 {
	return (a + b - 1) / b
}
