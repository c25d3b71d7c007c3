// File: internal/fs/fsck.go
package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/grosfs/go-grosfs/internal/bitmap"
	"github.com/grosfs/go-grosfs/internal/types"
)

// Fsck runs the metadata integrity passes: geometry bounds, link-count
// recounting from the directory tree, block accounting against the group
// bitmaps, directory structure ("." and ".." records), and counter
// recomputation. Repairs happen in place; duplicate block claims are
// unrepairable and fail the check. A corrupt superblock never reaches this
// point — Open rejects it first.
func Fsck(fs *Filesystem, log *logrus.Logger) (*FsckResult, error) {
	c := &checker{fs: fs, log: log}
	if err := c.checkBounds(); err != nil {
		return nil, err
	}
	if err := c.checkLinks(); err != nil {
		return nil, err
	}
	if err := c.checkBlocks(); err != nil {
		return nil, err
	}
	if err := c.checkDirectories(); err != nil {
		return nil, err
	}
	if err := c.recountUsage(); err != nil {
		return nil, err
	}

	res := &FsckResult{Problems: c.problems, Repairs: c.repairs, Clean: c.problems == 0}
	if c.unfixable > 0 {
		return res, fmt.Errorf("%w: %d unrepairable problems", ErrInval, c.unfixable)
	}
	log.WithFields(logrus.Fields{
		"problems": c.problems,
		"repairs":  c.repairs,
	}).Info("filesystem check complete")
	return res, nil
}

// FsckResult summarizes a check: problems found, repairs applied.
type FsckResult struct {
	Problems int
	Repairs  int
	Clean    bool
}

type checker struct {
	fs        *Filesystem
	log       *logrus.Logger
	problems  int
	repairs   int
	unfixable int

	refCounts map[int32]int32 // directory-entry references per inode
	dirParent map[int32]int32 // owning directory per reachable directory
	dirOrder  []int32         // reachable directories, traversal order
}

func (c *checker) repaired(msg string, fields logrus.Fields) {
	c.problems++
	c.repairs++
	c.log.WithFields(fields).Warn(msg)
}

func (c *checker) broken(msg string, fields logrus.Fields) {
	c.problems++
	c.unfixable++
	c.log.WithFields(fields).Error(msg)
}

// checkBounds verifies the superblock geometry fits the device.
func (c *checker) checkBounds() error {
	sb := c.fs.sb
	per := c.fs.inodesPerBlock()
	inodeBlocks := ceilDiv32(sb.NumInodes, per)
	if sb.FirstDataBlock != 1+inodeBlocks {
		return fmt.Errorf("%w: first data block %d does not follow %d inode blocks",
			ErrInval, sb.FirstDataBlock, inodeBlocks)
	}
	if sb.FirstDataBlock+sb.NumDataBlocks > c.fs.dev.TotalBlocks() {
		return fmt.Errorf("%w: data region [%d, %d) exceeds %d-block device",
			ErrInval, sb.FirstDataBlock, sb.FirstDataBlock+sb.NumDataBlocks, c.fs.dev.TotalBlocks())
	}
	if sb.NumGroups != ceilDiv32(sb.NumDataBlocks, types.BlocksPerGroup(sb.BlockSize)) {
		return fmt.Errorf("%w: %d block groups for %d data blocks", ErrInval, sb.NumGroups, sb.NumDataBlocks)
	}
	return nil
}

// clearInode zeroes an inode record in the table without walking its block
// pointers; the block-accounting pass reclaims whatever becomes
// unreachable.
func (c *checker) clearInode(ino int32) error {
	cleared := &types.Inode{Ino: ino}
	for i := range cleared.Block {
		cleared.Block[i] = types.BlockNone
	}
	return c.fs.SaveInode(cleared)
}

// checkLinks walks the tree from root, recounting directory references per
// inode, dropping entries whose target is out of range or carries a corrupt
// ACL, then corrects stored link counts. Inodes with links but no
// references are freed.
func (c *checker) checkLinks() error {
	root, err := c.fs.LoadInode(types.RootInode)
	if err != nil {
		return err
	}
	if !root.IsDir() {
		return fmt.Errorf("%w: root inode is not a directory", ErrInval)
	}

	c.refCounts = make(map[int32]int32)
	c.dirParent = map[int32]int32{types.RootInode: types.RootInode}
	c.dirOrder = []int32{types.RootInode}
	visited := map[int32]bool{types.RootInode: true}

	for qi := 0; qi < len(c.dirOrder); qi++ {
		dirIno := c.dirOrder[qi]
		dir, err := c.fs.LoadInode(dirIno)
		if err != nil {
			return err
		}
		if rem := int(dir.Size) % types.DirEntrySize; rem != 0 {
			c.repaired("directory size not a record multiple", logrus.Fields{
				"dir": dirIno, "size": dir.Size,
			})
			if err := c.fs.Truncate(dir, int(dir.Size)-rem); err != nil {
				return err
			}
		}
		i := 0
		for i < entryCount(dir) {
			e, err := c.fs.readEntry(dir, i)
			if err != nil {
				return err
			}
			drop := false
			if e.Ino < 0 || e.Ino >= c.fs.sb.NumInodes {
				c.repaired("entry references out-of-range inode", logrus.Fields{
					"dir": dirIno, "name": e.Name, "inode": e.Ino,
				})
				drop = true
			} else {
				child, err := c.fs.LoadInode(e.Ino)
				if err != nil {
					return err
				}
				if !types.ValidACL(child.ACL) {
					c.repaired("inode has corrupt permission word", logrus.Fields{
						"dir": dirIno, "name": e.Name, "inode": e.Ino, "acl": child.ACL,
					})
					if err := c.clearInode(child.Ino); err != nil {
						return err
					}
					drop = true
				} else {
					c.refCounts[e.Ino]++
					if child.IsDir() && e.Name != "." && e.Name != ".." && !visited[e.Ino] {
						visited[e.Ino] = true
						c.dirParent[e.Ino] = dirIno
						c.dirOrder = append(c.dirOrder, e.Ino)
					}
				}
			}
			if drop {
				if err := c.fs.removeEntryAt(dir, i); err != nil {
					return err
				}
				continue
			}
			i++
		}
	}

	for ino := int32(0); ino < c.fs.sb.NumInodes; ino++ {
		in, err := c.fs.LoadInode(ino)
		if err != nil {
			return err
		}
		want := c.refCounts[ino]
		if in.Links == want {
			continue
		}
		if want == 0 {
			c.repaired("unreferenced inode freed", logrus.Fields{
				"inode": ino, "links": in.Links,
			})
			if err := c.clearInode(ino); err != nil {
				return err
			}
			continue
		}
		c.repaired("link count corrected", logrus.Fields{
			"inode": ino, "stored": in.Links, "counted": want,
		})
		in.Links = want
		if err := c.fs.SaveInode(in); err != nil {
			return err
		}
	}
	return nil
}

// walkInodeBlocks visits every block reachable from the inode — data and
// indirect metadata alike — zeroing pointers that land outside the data
// region or on a bitmap block.
func (c *checker) walkInodeBlocks(in *types.Inode, visit func(blk int32)) error {
	badPtr := func(b int32) bool {
		return !c.fs.inDataRegion(b) || c.fs.isBitmapBlock(b)
	}
	inodeDirty := false
	for k := 0; k < types.NumDirectBlocks; k++ {
		b := in.Block[k]
		if b == types.BlockNone {
			continue
		}
		if badPtr(b) {
			c.repaired("direct pointer out of range", logrus.Fields{"inode": in.Ino, "block": b})
			in.Block[k] = types.BlockNone
			inodeDirty = true
			continue
		}
		visit(b)
	}
	for level := 1; level <= 3; level++ {
		slot := types.NumDirectBlocks + level - 1
		b := in.Block[slot]
		if b == types.BlockNone {
			continue
		}
		if badPtr(b) {
			c.repaired("indirect pointer out of range", logrus.Fields{"inode": in.Ino, "block": b})
			in.Block[slot] = types.BlockNone
			inodeDirty = true
			continue
		}
		if err := c.walkIndirect(in.Ino, b, level, visit); err != nil {
			return err
		}
	}
	if inodeDirty {
		return c.fs.SaveInode(in)
	}
	return nil
}

func (c *checker) walkIndirect(ino int32, blk int32, level int, visit func(blk int32)) error {
	visit(blk)
	table, err := c.fs.readBlock(blk)
	if err != nil {
		return err
	}
	n := types.PtrsPerBlock(c.fs.blockSize())
	dirty := false
	for i := int32(0); i < n; i++ {
		child := getPtr(table, i)
		if child == 0 {
			continue
		}
		if !c.fs.inDataRegion(child) || c.fs.isBitmapBlock(child) {
			c.repaired("indirect table entry out of range", logrus.Fields{
				"inode": ino, "table": blk, "block": child,
			})
			setPtr(table, i, 0)
			dirty = true
			continue
		}
		if level > 1 {
			if err := c.walkIndirect(ino, child, level-1, visit); err != nil {
				return err
			}
		} else {
			visit(child)
		}
	}
	if dirty {
		return c.fs.writeBlock(blk, table)
	}
	return nil
}

// checkBlocks builds the reachable-block set and reconciles the group
// bitmaps against it. Duplicate claims are reported and fail the check.
func (c *checker) checkBlocks() error {
	claims := make(map[int32][]int32)
	for ino := int32(0); ino < c.fs.sb.NumInodes; ino++ {
		in, err := c.fs.LoadInode(ino)
		if err != nil {
			return err
		}
		if in.Links <= 0 {
			continue
		}
		if err := c.walkInodeBlocks(in, func(blk int32) {
			claims[blk] = append(claims[blk], ino)
		}); err != nil {
			return err
		}
	}

	for blk, owners := range claims {
		if len(owners) > 1 {
			c.broken("block claimed by multiple inodes", logrus.Fields{
				"block": blk, "inodes": owners,
			})
		}
	}

	for g := int32(0); g < c.fs.sb.NumGroups; g++ {
		bmBlock := c.fs.groupBitmapBlock(g)
		buf, err := c.fs.readBlock(bmBlock)
		if err != nil {
			return err
		}
		bm := bitmap.New(int(c.fs.groupSpan(g)), buf)
		dirty := false
		if bm.Test(0) == 0 {
			c.repaired("group bitmap self-bit clear", logrus.Fields{"group": g})
			bm.Set(0)
			dirty = true
		}
		for bit := 1; bit < bm.Size(); bit++ {
			blk := bmBlock + int32(bit)
			_, claimed := claims[blk]
			set := bm.Test(bit) == 1
			switch {
			case claimed && !set:
				c.repaired("reachable block not marked in bitmap", logrus.Fields{
					"group": g, "block": blk,
				})
				bm.Set(bit)
				dirty = true
			case !claimed && set:
				// Leaked blocks are reclaimed silently.
				c.repairs++
				c.log.WithFields(logrus.Fields{"group": g, "block": blk}).
					Debug("unreachable block reclaimed")
				if err := c.fs.writeBlock(blk, make([]byte, c.fs.blockSize())); err != nil {
					return err
				}
				bm.Clear(bit)
				dirty = true
			}
		}
		if dirty {
			if err := c.fs.writeBlock(bmBlock, buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkDirectories verifies every reachable directory opens with "." (self)
// and ".." (the directory it was reached from), rewriting the records when
// safe.
func (c *checker) checkDirectories() error {
	for _, dirIno := range c.dirOrder {
		dir, err := c.fs.LoadInode(dirIno)
		if err != nil {
			return err
		}
		if entryCount(dir) < 2 {
			c.broken("directory lacks \".\" and \"..\" records", logrus.Fields{"dir": dirIno})
			continue
		}
		self, err := c.fs.readEntry(dir, 0)
		if err != nil {
			return err
		}
		if self.Name != "." || self.Ino != dirIno {
			c.repaired("first directory record rewritten to \".\"", logrus.Fields{
				"dir": dirIno, "name": self.Name, "inode": self.Ino,
			})
			if err := c.fs.writeEntry(dir, 0, &types.DirEntry{Ino: dirIno, Name: "."}); err != nil {
				return err
			}
		}
		parent := c.dirParent[dirIno]
		up, err := c.fs.readEntry(dir, 1)
		if err != nil {
			return err
		}
		if up.Name != ".." || up.Ino != parent {
			c.repaired("second directory record rewritten to \"..\"", logrus.Fields{
				"dir": dirIno, "name": up.Name, "inode": up.Ino, "parent": parent,
			})
			if err := c.fs.writeEntry(dir, 1, &types.DirEntry{Ino: parent, Name: ".."}); err != nil {
				return err
			}
		}
	}
	return nil
}

// recountUsage recomputes the superblock counters from the repaired state.
func (c *checker) recountUsage() error {
	var usedInodes int32
	for ino := int32(0); ino < c.fs.sb.NumInodes; ino++ {
		in, err := c.fs.LoadInode(ino)
		if err != nil {
			return err
		}
		if in.Links > 0 {
			usedInodes++
		}
	}
	var usedBlocks int32
	for g := int32(0); g < c.fs.sb.NumGroups; g++ {
		buf, err := c.fs.readBlock(c.fs.groupBitmapBlock(g))
		if err != nil {
			return err
		}
		bm := bitmap.New(int(c.fs.groupSpan(g)), buf)
		usedBlocks += int32(bm.Popcount())
	}
	if usedInodes != c.fs.sb.UsedInodes || usedBlocks != c.fs.sb.UsedBlocks {
		c.repaired("superblock counters recomputed", logrus.Fields{
			"used_inodes": usedInodes, "used_blocks": usedBlocks,
			"stored_inodes": c.fs.sb.UsedInodes, "stored_blocks": c.fs.sb.UsedBlocks,
		})
	}
	c.fs.sb.UsedInodes = usedInodes
	c.fs.sb.UsedBlocks = usedBlocks
	return c.fs.saveSuperblock()
}
