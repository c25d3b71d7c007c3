// File: internal/fs/superblock.go
package fs

import (
	"fmt"
	"sort"

	"github.com/grosfs/go-grosfs/internal/checksum"
	"github.com/grosfs/go-grosfs/internal/interfaces"
	"github.com/grosfs/go-grosfs/internal/types"
)

// loadSuperblock reads block 0, verifies the Fletcher-64 seal and the
// geometry against the device. A superblock that fails here is fatal;
// nothing else runs against the filesystem.
func loadSuperblock(dev interfaces.BlockDevice) (*types.Superblock, error) {
	buf := make([]byte, dev.BlockSize())
	if err := dev.ReadBlock(0, buf); err != nil {
		return nil, fmt.Errorf("%w: read superblock: %v", ErrIO, err)
	}
	if !checksum.Verify(buf) {
		return nil, fmt.Errorf("%w: superblock checksum mismatch", ErrInval)
	}
	sb, err := types.DecodeSuperblock(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInval, err)
	}
	if sb.Magic != types.Magic {
		return nil, fmt.Errorf("%w: bad superblock magic 0x%08X", ErrInval, sb.Magic)
	}
	if sb.Version != types.Version {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInval, sb.Version)
	}
	if sb.BlockSize != dev.BlockSize() || sb.DiskSize != dev.Size() {
		return nil, fmt.Errorf("%w: superblock geometry %d/%d does not match device %d/%d",
			ErrInval, sb.DiskSize, sb.BlockSize, dev.Size(), dev.BlockSize())
	}
	if sb.InodeSize != types.InodeSize {
		return nil, fmt.Errorf("%w: unsupported inode size %d", ErrInval, sb.InodeSize)
	}
	return sb, nil
}

// saveSuperblock seals and writes block 0.
func (fs *Filesystem) saveSuperblock() error {
	buf := make([]byte, fs.blockSize())
	fs.sb.Checksum = 0
	if err := fs.sb.EncodeSuperblock(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrInval, err)
	}
	fs.sb.Checksum = checksum.Seal(buf)
	if err := fs.sb.EncodeSuperblock(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrInval, err)
	}
	return fs.writeBlock(0, buf)
}

// takeFreeInode pops the lowest cached free inode number and persists the
// superblock, or returns InodeNone when the cache is empty.
func (fs *Filesystem) takeFreeInode() (int32, error) {
	cache := fs.sb.FreeInodeCache
	ino := cache[0]
	if ino == types.InodeNone {
		return types.InodeNone, nil
	}
	copy(cache, cache[1:])
	cache[len(cache)-1] = types.InodeNone
	if err := fs.saveSuperblock(); err != nil {
		return types.InodeNone, err
	}
	return ino, nil
}

// returnFreeInode inserts a freed inode number back into the cache, keeping
// the occupied prefix sorted ascending. A full cache drops the number; the
// repopulation scan will rediscover it by its zero link count.
func (fs *Filesystem) returnFreeInode(ino int32) error {
	cache := fs.sb.FreeInodeCache
	n := 0
	for n < len(cache) && cache[n] != types.InodeNone {
		n++
	}
	if n == len(cache) {
		return nil
	}
	cache[n] = ino
	used := cache[:n+1]
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })
	return fs.saveSuperblock()
}
