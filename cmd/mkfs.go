package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grosfs/go-grosfs/internal/device"
	"github.com/grosfs/go-grosfs/internal/fs"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format the backing file as a fresh filesystem",
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
		fsys, err := fs.Mkfs(dev, log)
		if err != nil {
			return err
		}
		sb := fsys.Superblock()
		log.WithField("device", cfg.Path).Infof("formatted: %d inodes, %d data blocks, %d groups",
			sb.NumInodes, sb.NumDataBlocks, sb.NumGroups)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mkfsCmd)
}
