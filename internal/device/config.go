// File: internal/device/config.go
package device

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/grosfs/go-grosfs/internal/types"
)

// Config describes the backing device geometry.
type Config struct {
	Path      string `mapstructure:"device_path"`
	DiskSize  int64  `mapstructure:"disk_size"`
	BlockSize int32  `mapstructure:"block_size"`
}

// LoadConfig loads device configuration via Viper: defaults (4 MiB device,
// 4 KiB blocks), then an optional grosfs-config.yaml, then GROSFS_*
// environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("grosfs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.grosfs")
	v.AddConfigPath("/etc/grosfs")

	v.SetDefault("device_path", "grosfs.img")
	v.SetDefault("disk_size", types.DefaultDiskSize)
	v.SetDefault("block_size", types.DefaultBlockSize)

	v.SetEnvPrefix("GROSFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects geometries the on-disk format cannot express.
func (c *Config) Validate() error {
	if c.BlockSize < types.SuperblockHeaderSize+4 {
		return fmt.Errorf("block size %d cannot hold the superblock header", c.BlockSize)
	}
	if c.BlockSize%4 != 0 {
		return fmt.Errorf("block size %d is not a multiple of the pointer size", c.BlockSize)
	}
	if c.BlockSize < types.InodeSize {
		return fmt.Errorf("block size %d cannot hold an inode record", c.BlockSize)
	}
	if c.DiskSize < int64(c.BlockSize)*3 {
		return fmt.Errorf("disk size %d leaves no room for superblock, inodes and data", c.DiskSize)
	}
	if c.DiskSize%int64(c.BlockSize) != 0 {
		return fmt.Errorf("disk size %d is not a multiple of block size %d", c.DiskSize, c.BlockSize)
	}
	return nil
}
