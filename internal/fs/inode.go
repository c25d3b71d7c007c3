// File: internal/fs/inode.go
package fs

import (
	"fmt"
	"sort"
	"time"

	"github.com/grosfs/go-grosfs/internal/types"
)

// Inode numbers are table positions: inode n lives in slot
// n % inodesPerBlock of block 1 + n/inodesPerBlock. Saving an inode writes
// exactly the block containing its slot.

func (fs *Filesystem) inodesPerBlock() int32 {
	return types.InodesPerBlock(fs.blockSize())
}

func (fs *Filesystem) inodeLocation(ino int32) (block int32, offset int32) {
	per := fs.inodesPerBlock()
	return 1 + ino/per, (ino % per) * types.InodeSize
}

func (fs *Filesystem) checkInodeNum(ino int32) error {
	if ino < 0 || ino >= fs.sb.NumInodes {
		return fmt.Errorf("%w: inode %d out of range", ErrInval, ino)
	}
	return nil
}

// LoadInode reads inode ino from the table and returns an owned record.
func (fs *Filesystem) LoadInode(ino int32) (*types.Inode, error) {
	if err := fs.checkInodeNum(ino); err != nil {
		return nil, err
	}
	block, off := fs.inodeLocation(ino)
	buf, err := fs.readBlock(block)
	if err != nil {
		return nil, err
	}
	in, err := types.DecodeInode(buf[off : off+types.InodeSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInval, err)
	}
	return in, nil
}

// SaveInode read-modify-writes the single table block holding the inode's
// slot.
func (fs *Filesystem) SaveInode(in *types.Inode) error {
	if err := fs.checkInodeNum(in.Ino); err != nil {
		return err
	}
	block, off := fs.inodeLocation(in.Ino)
	buf, err := fs.readBlock(block)
	if err != nil {
		return err
	}
	if err := in.EncodeInode(buf[off : off+types.InodeSize]); err != nil {
		return fmt.Errorf("%w: %v", ErrInval, err)
	}
	return fs.writeBlock(block, buf)
}

// findFreeInode returns a free inode number: the cache head in the common
// case, otherwise a repopulation scan over the table. ErrNoSpace when every
// inode is in use.
func (fs *Filesystem) findFreeInode() (int32, error) {
	ino, err := fs.takeFreeInode()
	if err != nil {
		return types.InodeNone, err
	}
	if ino != types.InodeNone {
		return ino, nil
	}
	if fs.sb.UsedInodes >= fs.sb.NumInodes {
		return types.InodeNone, fmt.Errorf("%w: no free inodes", ErrNoSpace)
	}
	if err := fs.repopulateFreeCache(); err != nil {
		return types.InodeNone, err
	}
	ino, err = fs.takeFreeInode()
	if err != nil {
		return types.InodeNone, err
	}
	if ino == types.InodeNone {
		return types.InodeNone, fmt.Errorf("%w: no free inodes", ErrNoSpace)
	}
	return ino, nil
}

// repopulateFreeCache refills the free-inode cache by scanning the table
// for zero-link inodes, starting at the next-inode-scan cursor and wrapping
// once. The refilled cache is sorted and persisted with the new cursor.
func (fs *Filesystem) repopulateFreeCache() error {
	cache := fs.sb.FreeInodeCache
	filled := 0
	scanned := int32(0)
	cursor := fs.sb.NextInodeScan
	for scanned < fs.sb.NumInodes && filled < len(cache) {
		ino := (cursor + scanned) % fs.sb.NumInodes
		scanned++
		in, err := fs.LoadInode(ino)
		if err != nil {
			return err
		}
		if in.Links == 0 {
			cache[filled] = ino
			filled++
		}
	}
	for i := filled; i < len(cache); i++ {
		cache[i] = types.InodeNone
	}
	used := cache[:filled]
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })
	fs.sb.NextInodeScan = (cursor + scanned) % fs.sb.NumInodes
	return fs.saveSuperblock()
}

// NewInode allocates an inode: zero uid/gid/acl, fresh timestamps, zero
// links and size, block[0] pre-allocated, remaining pointers unallocated.
// The record and superblock are persisted before returning.
func (fs *Filesystem) NewInode() (*types.Inode, error) {
	ino, err := fs.findFreeInode()
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	in := &types.Inode{
		Ino:   ino,
		Ctime: now,
		Mtime: now,
		Atime: now,
	}
	for i := range in.Block {
		in.Block[i] = types.BlockNone
	}
	first, err := fs.allocBlock()
	if err != nil {
		// Hand the number back so the failed allocation leaves no trace.
		fs.returnFreeInode(ino)
		return nil, err
	}
	in.Block[0] = first
	if err := fs.SaveInode(in); err != nil {
		return nil, err
	}
	fs.sb.UsedInodes++
	if err := fs.saveSuperblock(); err != nil {
		return nil, err
	}
	return in, nil
}

// FreeInode releases the inode's entire block subtree, zeroes its table
// record and returns its number to the free cache. Children are freed
// before the indirect block naming them.
func (fs *Filesystem) FreeInode(in *types.Inode) error {
	for k := 0; k < types.NumDirectBlocks; k++ {
		if in.Block[k] == types.BlockNone {
			continue
		}
		if err := fs.freeBlock(in.Block[k]); err != nil {
			return err
		}
		in.Block[k] = types.BlockNone
	}
	for level := 1; level <= 3; level++ {
		slot := types.NumDirectBlocks + level - 1
		if in.Block[slot] == types.BlockNone {
			continue
		}
		if err := fs.freeSubtree(in.Block[slot], level); err != nil {
			return err
		}
		in.Block[slot] = types.BlockNone
	}

	cleared := &types.Inode{Ino: in.Ino}
	for i := range cleared.Block {
		cleared.Block[i] = types.BlockNone
	}
	if err := fs.SaveInode(cleared); err != nil {
		return err
	}
	if err := fs.returnFreeInode(in.Ino); err != nil {
		return err
	}
	fs.sb.UsedInodes--
	return fs.saveSuperblock()
}

// freeSubtree frees the data blocks reachable from blk at the given
// indirect level (0 = blk is itself a data block), then blk itself.
func (fs *Filesystem) freeSubtree(blk int32, level int) error {
	if blk == types.BlockNone {
		return nil
	}
	if level > 0 {
		table, err := fs.readBlock(blk)
		if err != nil {
			return err
		}
		n := types.PtrsPerBlock(fs.blockSize())
		for i := int32(0); i < n; i++ {
			child := getPtr(table, i)
			if child == 0 {
				continue
			}
			if err := fs.freeSubtree(child, level-1); err != nil {
				return err
			}
		}
	}
	return fs.freeBlock(blk)
}
