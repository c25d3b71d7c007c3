// File: internal/fs/io.go
package fs

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/grosfs/go-grosfs/internal/types"
)

// Logical block k of a file maps to a physical block through four tiers:
//
//	0 <= k < 12            direct:  inode.Block[k]
//	12 <= k < 12+N         single:  table(Block[12])[k-12]
//	12+N <= k < 12+N+N^2   double:  two table hops
//	...      < 12+N+N^2+N^3 triple: three table hops
//
// with N = S/4 pointers per table block. Reads and writes share one mapping
// routine; the write side creates missing pointers as it descends.

func getPtr(table []byte, i int32) int32 {
	return int32(binary.LittleEndian.Uint32(table[i*4 : i*4+4]))
}

func setPtr(table []byte, i int32, v int32) {
	binary.LittleEndian.PutUint32(table[i*4:i*4+4], uint32(v))
}

// indirectCache holds the most recently used indirect block per level,
// keyed by physical block number. Consecutive logical blocks under the
// same tables resolve without rereading them, and a table mutated during
// allocation is served back from the same buffer rather than a stale
// reread. Three entries cover the deepest walk: one table per level.
type indirectCache struct {
	fs      *Filesystem
	entries [3]struct {
		blk   int32
		table []byte
	}
}

func (fs *Filesystem) newIndirectCache() *indirectCache {
	c := &indirectCache{fs: fs}
	for i := range c.entries {
		c.entries[i].blk = types.BlockNone
	}
	return c
}

func (c *indirectCache) get(blk int32) ([]byte, error) {
	for i := range c.entries {
		if c.entries[i].blk != blk {
			continue
		}
		hit := c.entries[i]
		copy(c.entries[1:i+1], c.entries[:i])
		c.entries[0] = hit
		return hit.table, nil
	}
	table, err := c.fs.readBlock(blk)
	if err != nil {
		return nil, err
	}
	copy(c.entries[1:], c.entries[:len(c.entries)-1])
	c.entries[0].blk = blk
	c.entries[0].table = table
	return table, nil
}

// maxFileBlocks returns the largest addressable logical block count.
func (fs *Filesystem) maxFileBlocks() int64 {
	n := int64(types.PtrsPerBlock(fs.blockSize()))
	return int64(types.NumDirectBlocks) + n + n*n + n*n*n
}

// mapBlock resolves logical block k of the file to a physical block. With
// allocate set, missing pointers are created on the way down: data blocks
// via allocBlock, table blocks zero-filled via allocIndirectBlock. Without
// it, an unallocated path yields BlockNone. The returned bool reports
// whether the in-inode pointer array changed and the inode needs saving.
func (fs *Filesystem) mapBlock(in *types.Inode, k int64, allocate bool, c *indirectCache) (int32, bool, error) {
	if k < 0 || k >= fs.maxFileBlocks() {
		return types.BlockNone, false, fmt.Errorf("%w: logical block %d out of range", ErrInval, k)
	}

	if k < int64(types.NumDirectBlocks) {
		b := in.Block[k]
		if b == types.BlockNone {
			if !allocate {
				return types.BlockNone, false, nil
			}
			nb, err := fs.allocBlock()
			if err != nil {
				return types.BlockNone, false, err
			}
			in.Block[k] = nb
			return nb, true, nil
		}
		return b, false, nil
	}

	n := int64(types.PtrsPerBlock(fs.blockSize()))
	var slot int
	var idx int64
	var level int
	switch {
	case k < int64(types.NumDirectBlocks)+n:
		slot, idx, level = types.SingleIndirect, k-int64(types.NumDirectBlocks), 1
	case k < int64(types.NumDirectBlocks)+n+n*n:
		slot, idx, level = types.DoubleIndirect, k-int64(types.NumDirectBlocks)-n, 2
	default:
		slot, idx, level = types.TripleIndirect, k-int64(types.NumDirectBlocks)-n-n*n, 3
	}

	dirty := false
	if in.Block[slot] == types.BlockNone {
		if !allocate {
			return types.BlockNone, false, nil
		}
		nb, err := fs.allocIndirectBlock()
		if err != nil {
			return types.BlockNone, false, err
		}
		in.Block[slot] = nb
		dirty = true
	}

	cur := in.Block[slot]
	span := int64(1)
	for i := 1; i < level; i++ {
		span *= n
	}
	for l := level; l >= 1; l-- {
		table, err := c.get(cur)
		if err != nil {
			return types.BlockNone, dirty, err
		}
		i := int32(idx / span)
		idx %= span
		span /= n
		child := getPtr(table, i)
		if child == 0 {
			if !allocate {
				return types.BlockNone, dirty, nil
			}
			if l == 1 {
				child, err = fs.allocBlock()
			} else {
				child, err = fs.allocIndirectBlock()
			}
			if err != nil {
				return types.BlockNone, dirty, err
			}
			setPtr(table, i, child)
			if err := fs.writeBlock(cur, table); err != nil {
				return types.BlockNone, dirty, err
			}
		}
		cur = child
	}
	return cur, dirty, nil
}

// Read copies up to size bytes of the file starting at offset into buf,
// honoring end-of-file, and refreshes the inode's access time. Returns the
// number of bytes read.
func (fs *Filesystem) Read(in *types.Inode, buf []byte, size int, offset int) (int, error) {
	n, err := fs.readAt(in, buf, size, offset)
	if err != nil || n == 0 {
		return n, err
	}
	in.Atime = time.Now().Unix()
	if err := fs.SaveInode(in); err != nil {
		return n, err
	}
	return n, nil
}

// readAt is Read without the access-time side effect; directory scans and
// fsck use it so inspection leaves the table untouched.
func (fs *Filesystem) readAt(in *types.Inode, buf []byte, size int, offset int) (int, error) {
	if size > len(buf) {
		size = len(buf)
	}
	if size <= 0 || offset < 0 || offset >= int(in.Size) {
		return 0, nil
	}
	if size > int(in.Size)-offset {
		size = int(in.Size) - offset
	}

	s := int(fs.blockSize())
	c := fs.newIndirectCache()
	block := make([]byte, s)
	read := 0
	for read < size {
		pos := offset + read
		k := int64(pos / s)
		off := pos % s
		n := s - off
		if n > size-read {
			n = size - read
		}
		phys, _, err := fs.mapBlock(in, k, false, c)
		if err != nil {
			return read, err
		}
		if phys == types.BlockNone {
			// Unallocated below EOF cannot happen on a healthy volume;
			// surface zeros rather than garbage.
			for i := 0; i < n; i++ {
				buf[read+i] = 0
			}
		} else {
			if err := fs.dev.ReadBlock(phys, block); err != nil {
				return read, fmt.Errorf("%w: read block %d: %v", ErrIO, phys, err)
			}
			copy(buf[read:read+n], block[off:off+n])
		}
		read += n
	}
	return read, nil
}

// Write stores size bytes from buf into the file at offset, extending and
// allocating as needed. A write past EOF zero-fills the gap first, so every
// logical block below the file's end is always allocated. Returns bytes
// written.
func (fs *Filesystem) Write(in *types.Inode, buf []byte, size int, offset int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrInval)
	}
	if size > len(buf) {
		size = len(buf)
	}
	if size <= 0 {
		return 0, nil
	}
	if int64(offset)+int64(size) > int64(fs.maxFileBlocks())*int64(fs.blockSize()) {
		return 0, fmt.Errorf("%w: write beyond maximum file size", ErrInval)
	}
	if offset > int(in.Size) {
		if _, err := fs.EnsureSize(in, offset); err != nil {
			return 0, err
		}
	}

	s := int(fs.blockSize())
	c := fs.newIndirectCache()
	scratch := make([]byte, s)
	written := 0
	inodeDirty := false
	for written < size {
		pos := offset + written
		k := int64(pos / s)
		off := pos % s
		n := s - off
		if n > size-written {
			n = size - written
		}
		phys, dirty, err := fs.mapBlock(in, k, true, c)
		if dirty {
			inodeDirty = true
		}
		if err != nil {
			if inodeDirty {
				fs.SaveInode(in)
			}
			return written, err
		}
		if off == 0 && n == s {
			if err := fs.writeBlock(phys, buf[written:written+n]); err != nil {
				return written, err
			}
		} else {
			// Partial block: read-modify-write.
			if err := fs.dev.ReadBlock(phys, scratch); err != nil {
				return written, fmt.Errorf("%w: read block %d: %v", ErrIO, phys, err)
			}
			copy(scratch[off:off+n], buf[written:written+n])
			if err := fs.writeBlock(phys, scratch); err != nil {
				return written, err
			}
		}
		written += n
		if pos+n > int(in.Size) {
			in.Size = int32(pos + n)
			in.Mtime = time.Now().Unix()
			if err := fs.SaveInode(in); err != nil {
				return written, err
			}
			inodeDirty = false
		}
	}
	if inodeDirty {
		in.Mtime = time.Now().Unix()
		if err := fs.SaveInode(in); err != nil {
			return written, err
		}
	}
	return written, nil
}

// EnsureSize extends the file with zeros to at least target bytes. Already
// large enough is a no-op returning 0; otherwise returns the bytes added.
// Every write it issues lands exactly at the current end of file, so Write
// never re-enters EnsureSize.
func (fs *Filesystem) EnsureSize(in *types.Inode, target int) (int, error) {
	if target < 0 {
		return 0, fmt.Errorf("%w: negative size", ErrInval)
	}
	if target <= int(in.Size) {
		return 0, nil
	}
	s := int(fs.blockSize())
	zeros := make([]byte, s)
	extended := 0
	for int(in.Size) < target {
		off := int(in.Size)
		n := s - off%s
		if n > target-off {
			n = target - off
		}
		w, err := fs.Write(in, zeros[:n], n, off)
		extended += w
		if err != nil {
			return extended, err
		}
	}
	return extended, nil
}

// Truncate resizes the file to target bytes. Growing is EnsureSize;
// shrinking zeroes the tail of the new last block, frees every later data
// block, and releases each indirect table as its last child goes.
func (fs *Filesystem) Truncate(in *types.Inode, target int) error {
	if target < 0 {
		return fmt.Errorf("%w: negative size", ErrInval)
	}
	if target > int(in.Size) {
		_, err := fs.EnsureSize(in, target)
		return err
	}
	if target == int(in.Size) {
		return nil
	}

	s := int(fs.blockSize())
	keep := int64(ceilDiv64(int64(target), int64(s)))
	if target%s != 0 {
		c := fs.newIndirectCache()
		phys, _, err := fs.mapBlock(in, keep-1, false, c)
		if err != nil {
			return err
		}
		if phys != types.BlockNone {
			block, err := fs.readBlock(phys)
			if err != nil {
				return err
			}
			for i := target % s; i < s; i++ {
				block[i] = 0
			}
			if err := fs.writeBlock(phys, block); err != nil {
				return err
			}
		}
	}

	for k := keep; k < int64(types.NumDirectBlocks); k++ {
		if in.Block[k] == types.BlockNone {
			continue
		}
		if err := fs.freeBlock(in.Block[k]); err != nil {
			return err
		}
		in.Block[k] = types.BlockNone
	}

	n := int64(types.PtrsPerBlock(fs.blockSize()))
	bounds := [3]int64{n, n * n, n * n * n}
	start := int64(types.NumDirectBlocks)
	for level := 1; level <= 3; level++ {
		slot := types.NumDirectBlocks + level - 1
		keepIn := keep - start
		if keepIn < 0 {
			keepIn = 0
		}
		if keepIn > bounds[level-1] {
			keepIn = bounds[level-1]
		}
		blk, err := fs.truncIndirect(in.Block[slot], level, keepIn)
		if err != nil {
			return err
		}
		in.Block[slot] = blk
		start += bounds[level-1]
	}

	now := time.Now().Unix()
	in.Size = int32(target)
	in.Mtime = now
	in.Ctime = now
	return fs.SaveInode(in)
}

// truncIndirect keeps the first keep logical blocks under an indirect block
// and frees the rest. Returns the (possibly BlockNone) pointer the caller
// should store: the table itself is freed exactly when no children remain.
func (fs *Filesystem) truncIndirect(blk int32, level int, keep int64) (int32, error) {
	if blk == types.BlockNone {
		return types.BlockNone, nil
	}
	if keep <= 0 {
		if err := fs.freeSubtree(blk, level); err != nil {
			return blk, err
		}
		return types.BlockNone, nil
	}
	table, err := fs.readBlock(blk)
	if err != nil {
		return blk, err
	}
	n := int64(types.PtrsPerBlock(fs.blockSize()))
	span := int64(1)
	for i := 1; i < level; i++ {
		span *= n
	}
	dirty := false
	for i := int64(0); i < n; i++ {
		child := getPtr(table, int32(i))
		if child == 0 {
			continue
		}
		start := i * span
		if start >= keep {
			if err := fs.freeSubtree(child, level-1); err != nil {
				return blk, err
			}
			setPtr(table, int32(i), 0)
			dirty = true
		} else if level > 1 && start+span > keep {
			if _, err := fs.truncIndirect(child, level-1, keep-start); err != nil {
				return blk, err
			}
		}
	}
	if dirty {
		if err := fs.writeBlock(blk, table); err != nil {
			return blk, err
		}
	}
	return blk, nil
}
