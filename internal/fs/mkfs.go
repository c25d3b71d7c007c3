// File: internal/fs/mkfs.go
package fs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grosfs/go-grosfs/internal/bitmap"
	"github.com/grosfs/go-grosfs/internal/interfaces"
	"github.com/grosfs/go-grosfs/internal/types"
)

// Geometry is the block layout derived from the device size and block size:
// block 0 is the superblock, the next InodeBlocks hold the inode table, and
// the data region fills the rest of the device.
type Geometry struct {
	NumBlocks      int32
	InodeBlocks    int32
	InodesPerBlock int32
	TotalInodes    int32
	DataBlocks     int32
	NumGroups      int32
	FirstDataBlock int32
}

// ComputeGeometry derives the layout: 10% of the device (rounded up) for
// the inode table, everything after it for data. The data region is what
// physically remains past the table rather than the nominal 90%, which
// would overflow the device by a block.
func ComputeGeometry(diskSize int64, blockSize int32) (Geometry, error) {
	if blockSize <= 0 || diskSize < int64(blockSize)*3 || diskSize%int64(blockSize) != 0 {
		return Geometry{}, fmt.Errorf("%w: device %d / block %d", ErrInval, diskSize, blockSize)
	}
	numBlocks := int32(diskSize / int64(blockSize))
	inodeBlocks := ceilDiv32(numBlocks*types.InodeFractionPercent, 100)
	dataBlocks := numBlocks - 1 - inodeBlocks
	if dataBlocks < 2 {
		return Geometry{}, fmt.Errorf("%w: no room for a data region", ErrInval)
	}
	per := types.InodesPerBlock(blockSize)
	return Geometry{
		NumBlocks:      numBlocks,
		InodeBlocks:    inodeBlocks,
		InodesPerBlock: per,
		TotalInodes:    inodeBlocks * per,
		DataBlocks:     dataBlocks,
		NumGroups:      ceilDiv32(dataBlocks, types.BlocksPerGroup(blockSize)),
		FirstDataBlock: 1 + inodeBlocks,
	}, nil
}

// Mkfs formats the device: superblock with a fresh volume UUID and seeded
// free-inode cache, inode table skeleton, one bitmap per block group with
// only bit 0 set, and the root directory (inode 0, its own parent).
func Mkfs(dev interfaces.BlockDevice, log *logrus.Logger) (*Filesystem, error) {
	geo, err := ComputeGeometry(dev.Size(), dev.BlockSize())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"blocks":       geo.NumBlocks,
		"inode_blocks": geo.InodeBlocks,
		"inodes":       geo.TotalInodes,
		"data_blocks":  geo.DataBlocks,
		"groups":       geo.NumGroups,
	}).Info("formatting device")

	sb := &types.Superblock{
		Magic:          types.Magic,
		Version:        types.Version,
		DiskSize:       dev.Size(),
		BlockSize:      dev.BlockSize(),
		InodeSize:      types.InodeSize,
		NumDataBlocks:  geo.DataBlocks,
		NumInodes:      geo.TotalInodes,
		NumGroups:      geo.NumGroups,
		FirstDataBlock: geo.FirstDataBlock,
	}
	vol := uuid.New()
	copy(sb.UUID[:], vol[:])

	sb.FreeInodeCache = make([]int32, types.FreeCacheSlots(sb.BlockSize))
	for i := range sb.FreeInodeCache {
		if int32(i) < geo.TotalInodes {
			sb.FreeInodeCache[i] = int32(i)
		} else {
			sb.FreeInodeCache[i] = types.InodeNone
		}
	}

	fs := &Filesystem{dev: dev, sb: sb}

	// Inode table skeleton: sequential numbers, zero links, no blocks.
	buf := make([]byte, sb.BlockSize)
	per := geo.InodesPerBlock
	for b := int32(0); b < geo.InodeBlocks; b++ {
		for slot := int32(0); slot < per; slot++ {
			in := types.Inode{Ino: b*per + slot}
			for i := range in.Block {
				in.Block[i] = types.BlockNone
			}
			if err := in.EncodeInode(buf[slot*types.InodeSize:]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInval, err)
			}
		}
		if err := fs.writeBlock(1+b, buf); err != nil {
			return nil, err
		}
	}
	log.WithField("blocks", geo.InodeBlocks).Debug("inode table written")

	// Group bitmaps: each covers itself via bit 0.
	for g := int32(0); g < geo.NumGroups; g++ {
		bmBuf := make([]byte, sb.BlockSize)
		bm := bitmap.New(int(fs.groupSpan(g)), bmBuf)
		bm.Set(0)
		if err := fs.writeBlock(fs.groupBitmapBlock(g), bmBuf); err != nil {
			return nil, err
		}
		sb.UsedBlocks++
	}
	log.WithField("groups", geo.NumGroups).Debug("group bitmaps initialized")

	if err := fs.saveSuperblock(); err != nil {
		return nil, err
	}

	// Root directory: inode 0, links 2, "." and ".." pointing at itself.
	root, err := fs.NewInode()
	if err != nil {
		return nil, err
	}
	if root.Ino != types.RootInode {
		return nil, fmt.Errorf("%w: root allocated as inode %d", ErrInval, root.Ino)
	}
	root.Links = 2
	root.ACL = types.NewACL(types.TypeDirectory, 0o755)
	if err := fs.SaveInode(root); err != nil {
		return nil, err
	}
	if err := fs.writeEntry(root, 0, &types.DirEntry{Ino: root.Ino, Name: "."}); err != nil {
		return nil, err
	}
	if err := fs.writeEntry(root, 1, &types.DirEntry{Ino: root.Ino, Name: ".."}); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"uuid":        vol.String(),
		"used_blocks": sb.UsedBlocks,
	}).Info("filesystem created")
	return fs, nil
}
