package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grosfs/go-grosfs/internal/device"
	"github.com/grosfs/go-grosfs/internal/fs"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory on the filesystem",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
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
		entries, err := fsys.ListPath(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			info, err := fsys.Stat(path + "/" + e.Name)
			if err != nil {
				fmt.Printf("%8d  ?  %s\n", e.Ino, e.Name)
				continue
			}
			fmt.Printf("%8d  %4o  %8d  %s\n", e.Ino, info.Perm, info.Size, e.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
