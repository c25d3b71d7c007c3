package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grosfs/go-grosfs/internal/device"
	"github.com/grosfs/go-grosfs/internal/fs"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Check and repair filesystem metadata",
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
			// A superblock that fails validation stops everything.
			log.WithError(err).Error("superblock unusable, aborting")
			return err
		}
		res, err := fs.Fsck(fsys, log)
		if err != nil {
			return err
		}
		if res.Clean {
			log.Info("filesystem clean")
		} else {
			log.Infof("%d problems found, %d repaired", res.Problems, res.Repairs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fsckCmd)
}
