package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grosfs/go-grosfs/internal/types"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Path:      filepath.Join(t.TempDir(), "test.img"),
		DiskSize:  64 * 1024,
		BlockSize: 512,
	}
}

func TestOpenCreatesAndExtends(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	require.NoError(t, err)
	defer dev.Close()

	stat, err := os.Stat(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DiskSize, stat.Size())
	assert.Equal(t, int32(128), dev.TotalBlocks())
	assert.Equal(t, cfg.BlockSize, dev.BlockSize())
	assert.Equal(t, cfg.DiskSize, dev.Size())

	// A fresh device reads as zeros.
	buf := make([]byte, cfg.BlockSize)
	require.NoError(t, dev.ReadBlock(0, buf))
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	require.NoError(t, err)
	defer dev.Close()

	out := make([]byte, cfg.BlockSize)
	for i := range out {
		out[i] = byte(i % 251)
	}
	require.NoError(t, dev.WriteBlock(7, out))

	in := make([]byte, cfg.BlockSize)
	require.NoError(t, dev.ReadBlock(7, in))
	assert.Equal(t, out, in)
}

func TestPersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	require.NoError(t, err)

	out := make([]byte, cfg.BlockSize)
	out[0] = 0xA5
	require.NoError(t, dev.WriteBlock(3, out))
	require.NoError(t, dev.Close())

	dev, err = Open(cfg)
	require.NoError(t, err)
	defer dev.Close()
	in := make([]byte, cfg.BlockSize)
	require.NoError(t, dev.ReadBlock(3, in))
	assert.Equal(t, out, in)
}

func TestBlockBounds(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	require.NoError(t, err)
	defer dev.Close()

	buf := make([]byte, cfg.BlockSize)
	assert.Error(t, dev.ReadBlock(-1, buf))
	assert.Error(t, dev.ReadBlock(dev.TotalBlocks(), buf))
	assert.Error(t, dev.WriteBlock(-1, buf))
	assert.Error(t, dev.WriteBlock(dev.TotalBlocks(), buf))

	assert.Error(t, dev.WriteBlock(0, buf[:10]), "buffer must be block-sized")
}

func TestConfigValidation(t *testing.T) {
	bad := &Config{Path: "x", DiskSize: 1000, BlockSize: 512}
	assert.Error(t, bad.Validate(), "disk size not a block multiple")

	bad = &Config{Path: "x", DiskSize: 1024, BlockSize: 512}
	assert.Error(t, bad.Validate(), "too small for superblock, inodes and data")

	bad = &Config{Path: "x", DiskSize: types.DefaultDiskSize, BlockSize: 50}
	assert.Error(t, bad.Validate(), "block cannot hold superblock header")

	good := &Config{Path: "x", DiskSize: types.DefaultDiskSize, BlockSize: types.DefaultBlockSize}
	assert.NoError(t, good.Validate())
}
