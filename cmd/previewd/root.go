package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/previewd/internal/config"
)

var (
	cfgFile string
	verbose bool

	cfgMgr *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "previewd",
	Short: "Hover preview playback daemon",
	Long:  `previewd plays one short preview at a time as cards are hovered, crossfading between them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/previewd/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	if cfgFile != "" {
		cfgMgr = config.NewManagerFor(cfgFile)
	} else {
		dir, err := config.DefaultDir()
		if err != nil {
			return err
		}
		cfgMgr = config.NewManager(dir)
	}
	if err := cfgMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfgMgr.Get()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
