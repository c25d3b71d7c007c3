package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grosfs/go-grosfs/internal/device"
)

var (
	verbose    bool
	devicePath string
	log        = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "grosfs",
	Short: "Block filesystem living inside a single backing file",
	Long: `grosfs maintains a Unix-style filesystem inside one fixed-size file:
a superblock with a free-inode cache, an inode table, and bitmap-managed
block groups, with direct, single-, double- and triple-indirect block
addressing.

Commands:
  mkfs        Format the backing file
  fsck        Check and repair filesystem metadata
  info        Show superblock geometry and counters
  ls          List a directory`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "path to the backing file (overrides config)")
}

// loadDeviceConfig resolves the device configuration, letting the --device
// flag override whatever viper found.
func loadDeviceConfig() (*device.Config, error) {
	cfg, err := device.LoadConfig()
	if err != nil {
		return nil, err
	}
	if devicePath != "" {
		cfg.Path = devicePath
	}
	return cfg, nil
}
