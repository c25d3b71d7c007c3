// File: internal/fs/alloc.go
package fs

import (
	"fmt"

	"github.com/grosfs/go-grosfs/internal/bitmap"
	"github.com/grosfs/go-grosfs/internal/types"
)

// The data region is partitioned into block groups. Each group's first
// block is its allocation bitmap, one bit per block of the group, bit 0
// describing the bitmap itself and permanently set. A group spans up to
// 8*S blocks; the final group covers only what remains of the data region.

// groupSpan returns the number of blocks (bitmap included) in group g.
func (fs *Filesystem) groupSpan(g int32) int32 {
	per := types.BlocksPerGroup(fs.blockSize())
	span := fs.sb.NumDataBlocks - g*per
	if span > per {
		span = per
	}
	return span
}

// groupBitmapBlock returns the device block holding group g's bitmap.
func (fs *Filesystem) groupBitmapBlock(g int32) int32 {
	return fs.sb.FirstDataBlock + g*types.BlocksPerGroup(fs.blockSize())
}

// inDataRegion reports whether b is a block the allocator manages.
func (fs *Filesystem) inDataRegion(b int32) bool {
	return b >= fs.sb.FirstDataBlock && b < fs.sb.FirstDataBlock+fs.sb.NumDataBlocks
}

// isBitmapBlock reports whether b is some group's bitmap block.
func (fs *Filesystem) isBitmapBlock(b int32) bool {
	return fs.inDataRegion(b) &&
		(b-fs.sb.FirstDataBlock)%types.BlocksPerGroup(fs.blockSize()) == 0
}

// allocBlock hands out the first free data block, scanning groups in order.
// The block contents are zero: the device starts zero-filled and freeBlock
// re-zeroes on release. Returns ErrNoSpace when every group is full.
func (fs *Filesystem) allocBlock() (int32, error) {
	for g := int32(0); g < fs.sb.NumGroups; g++ {
		buf, err := fs.readBlock(fs.groupBitmapBlock(g))
		if err != nil {
			return types.BlockNone, err
		}
		bm := bitmap.New(int(fs.groupSpan(g)), buf)
		bit := bm.FirstClear()
		if bit < 0 {
			continue
		}
		bm.Set(bit)
		if err := fs.writeBlock(fs.groupBitmapBlock(g), buf); err != nil {
			return types.BlockNone, err
		}
		fs.sb.UsedBlocks++
		if err := fs.saveSuperblock(); err != nil {
			return types.BlockNone, err
		}
		return fs.groupBitmapBlock(g) + int32(bit), nil
	}
	return types.BlockNone, fmt.Errorf("%w: no free data blocks", ErrNoSpace)
}

// allocIndirectBlock allocates a block to hold a pointer table and
// zero-fills it on the device so unset slots read as unallocated.
func (fs *Filesystem) allocIndirectBlock() (int32, error) {
	b, err := fs.allocBlock()
	if err != nil {
		return types.BlockNone, err
	}
	if err := fs.writeBlock(b, make([]byte, fs.blockSize())); err != nil {
		return types.BlockNone, err
	}
	return b, nil
}

// freeBlock zeroes block b, clears its group bitmap bit and decrements the
// used-block counter. Freeing an out-of-range, bitmap, or already-free
// block fails without touching state.
func (fs *Filesystem) freeBlock(b int32) error {
	if !fs.inDataRegion(b) {
		return fmt.Errorf("%w: free of block %d outside data region", ErrInval, b)
	}
	per := types.BlocksPerGroup(fs.blockSize())
	g := (b - fs.sb.FirstDataBlock) / per
	bit := int((b - fs.sb.FirstDataBlock) % per)
	if bit == 0 {
		return fmt.Errorf("%w: free of group %d bitmap block", ErrInval, g)
	}
	buf, err := fs.readBlock(fs.groupBitmapBlock(g))
	if err != nil {
		return err
	}
	bm := bitmap.New(int(fs.groupSpan(g)), buf)
	if bm.Test(bit) == 0 {
		return fmt.Errorf("%w: free of unallocated block %d", ErrInval, b)
	}
	if err := fs.writeBlock(b, make([]byte, fs.blockSize())); err != nil {
		return err
	}
	bm.Clear(bit)
	if err := fs.writeBlock(fs.groupBitmapBlock(g), buf); err != nil {
		return err
	}
	fs.sb.UsedBlocks--
	return fs.saveSuperblock()
}
