package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/previewd/internal/ipc"
)

var statusJSON bool

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's playback state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		client, err := ipc.Dial(ctx, Config().IPC.Socket)
		if err != nil {
			return fmt.Errorf("is previewd running? %w", err)
		}
		defer client.Close()

		resp, err := client.Call(ctx, ipc.CmdStatus, nil)
		if err != nil {
			return err
		}
		if !resp.Success {
			return errors.New(resp.Error)
		}

		if statusJSON {
			fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
			return nil
		}

		var st ipc.StatusResponse
		if err := json.Unmarshal(resp.Data, &st); err != nil {
			return fmt.Errorf("invalid status response: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderStatus(st))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusJSON, "json", "j", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func renderStatus(st ipc.StatusResponse) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	switch {
	case !st.Unlocked:
		row("State", warnStyle.Render("waiting for a gesture"))
	case st.Playing && st.IsFadingOut:
		row("State", playingStyle.Render("fading out"))
	case st.Playing:
		row("State", playingStyle.Render("playing"))
	default:
		row("State", idleStyle.Render("idle"))
	}

	if st.CurrentURL != "" {
		row("Card", valueStyle.Render(st.CurrentCard))
		row("Source", st.CurrentURL)
	}
	if st.NowPlaying != "" && st.Visible {
		row("Now", valueStyle.Render(st.NowPlaying))
	}

	gain := fmt.Sprintf("%.2f", st.Gain)
	switch {
	case st.Pref.Muted:
		gain += idleStyle.Render(" (muted)")
	case st.Ducked:
		gain += idleStyle.Render(" (ducked)")
	}
	row("Gain", gain)
	row("Volume", fmt.Sprintf("%.2f", st.Pref.Volume))

	if len(st.OpenCards) > 0 {
		row("Open", strings.Join(st.OpenCards, ", "))
	}
	row("Session", fmt.Sprintf("#%d", st.SessionToken))
	return b.String()
}
