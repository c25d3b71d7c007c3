package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grosfs/go-grosfs/internal/types"
)

func TestNewInodeInitialState(t *testing.T) {
	fsys := defaultTestFS(t)

	in, err := fsys.NewInode()
	require.NoError(t, err)
	assert.Equal(t, int32(1), in.Ino, "lowest free number after root")
	assert.Zero(t, in.Size)
	assert.Zero(t, in.Links)
	assert.Zero(t, in.ACL)
	assert.NotZero(t, in.Ctime)
	assert.Equal(t, in.Ctime, in.Mtime)
	assert.NotEqual(t, types.BlockNone, in.Block[0], "first data block pre-allocated")
	for k := 1; k < types.NumBlockPtrs; k++ {
		assert.Equal(t, types.BlockNone, in.Block[k])
	}
	assert.Equal(t, int32(2), fsys.Superblock().UsedInodes)
}

func TestFreeInodeReturnsNumberAndBlocks(t *testing.T) {
	fsys := defaultTestFS(t)
	sb := fsys.Superblock()
	usedInodes, usedBlocks := sb.UsedInodes, sb.UsedBlocks

	in, err := fsys.NewInode()
	require.NoError(t, err)
	ino := in.Ino
	require.NoError(t, fsys.FreeInode(in))

	assert.Equal(t, usedInodes, sb.UsedInodes)
	assert.Equal(t, usedBlocks, sb.UsedBlocks)

	// The freed record reads back empty.
	got, err := fsys.LoadInode(ino)
	require.NoError(t, err)
	assert.Zero(t, got.Links)
	assert.Equal(t, types.BlockNone, got.Block[0])

	// The same number is handed out again.
	again, err := fsys.NewInode()
	require.NoError(t, err)
	assert.Equal(t, ino, again.Ino)
}

func TestFreeInodeReleasesIndirectSubtree(t *testing.T) {
	fsys := smallTestFS(t)
	sb := fsys.Superblock()
	usedBlocks := sb.UsedBlocks

	in, err := fsys.NewInode()
	require.NoError(t, err)
	// Reach into the double-indirect range: 100 blocks of 256 bytes.
	data := pattern(100*256, 3)
	_, err = fsys.Write(in, data, len(data), 0)
	require.NoError(t, err)
	require.NotEqual(t, types.BlockNone, in.Block[types.SingleIndirect])
	require.NotEqual(t, types.BlockNone, in.Block[types.DoubleIndirect])

	require.NoError(t, fsys.FreeInode(in))
	assert.Equal(t, usedBlocks, sb.UsedBlocks, "all data and table blocks returned")
}

func TestFindFreeInodeRepopulatesCache(t *testing.T) {
	// 256 KiB device with 256-byte blocks: 1024 blocks, 103 inode
	// blocks, 206 inodes, but only (256-80)/4 = 44 cache slots. The
	// 45th allocation must refill the cache by scanning the table.
	fsys := newTestFS(t, 256*1024, 256)
	sb := fsys.Superblock()
	require.Equal(t, int32(206), sb.NumInodes)
	require.Len(t, sb.FreeInodeCache, 44)

	var last int32
	for i := 0; i < 60; i++ {
		in, err := fsys.NewInode()
		require.NoError(t, err)
		in.Links = 1
		require.NoError(t, fsys.SaveInode(in))
		last = in.Ino
	}
	assert.Equal(t, int32(60), last, "numbers stay sequential across the refill")
	assert.Equal(t, int32(61), sb.UsedInodes)
}

func TestNewInodeExhaustsToNoSpace(t *testing.T) {
	fsys := newTestFS(t, 16*1024, 512)
	sb := fsys.Superblock()

	for sb.UsedInodes < sb.NumInodes {
		in, err := fsys.NewInode()
		require.NoError(t, err)
		in.Links = 1
		require.NoError(t, fsys.SaveInode(in))
	}
	_, err := fsys.NewInode()
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestLoadInodeRejectsOutOfRange(t *testing.T) {
	fsys := defaultTestFS(t)
	_, err := fsys.LoadInode(-1)
	assert.ErrorIs(t, err, ErrInval)
	_, err = fsys.LoadInode(fsys.Superblock().NumInodes)
	assert.ErrorIs(t, err, ErrInval)
}
