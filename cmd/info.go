package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grosfs/go-grosfs/internal/device"
	"github.com/grosfs/go-grosfs/internal/fs"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show superblock geometry and usage counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadDeviceConfig()
		if err != nil {
			return err
		}
		dev, err := device.Open(cfg)
		if err != nil {
			return err
		}
		defer dev.Close()
		fsys, err := fs.Open(dev)
		if err != nil {
			return err
		}
		sb := fsys.Superblock()
		vol, _ := uuid.FromBytes(sb.UUID[:])
		fmt.Printf("volume UUID:      %s\n", vol)
		fmt.Printf("device size:      %d bytes\n", sb.DiskSize)
		fmt.Printf("block size:       %d bytes\n", sb.BlockSize)
		fmt.Printf("inode size:       %d bytes\n", sb.InodeSize)
		fmt.Printf("inodes:           %d used / %d total\n", sb.UsedInodes, sb.NumInodes)
		fmt.Printf("data blocks:      %d used / %d total\n", sb.UsedBlocks, sb.NumDataBlocks)
		fmt.Printf("block groups:     %d\n", sb.NumGroups)
		fmt.Printf("first data block: %d\n", sb.FirstDataBlock)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
