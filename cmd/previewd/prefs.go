package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/previewd/internal/prefs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read or change preview preferences",
	Long: `Reads and writes the preference file shared with the daemon.
A running daemon picks up changes immediately.`,
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show preferences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPrefs()
		if err != nil {
			return err
		}
		values := store.All()

		keys := prefs.Keys()
		if len(args) == 1 {
			if _, err := prefs.Normalize(args[0], ""); errors.Is(err, prefs.ErrUnknownKey) {
				return err
			}
			keys = args
		}
		for _, k := range keys {
			v, ok := values[k]
			if !ok {
				v = "(unset)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v)
		}
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPrefs()
		if err != nil {
			return err
		}
		if err := store.Set(args[0], args[1]); err != nil {
			return err
		}
		v, _ := store.Get(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], v)
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func openPrefs() (*prefs.Store, error) {
	c := Config().Prefs
	store := prefs.NewStore(c.Path, c.DefaultVolume)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return store, nil
}
