package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/previewd/internal/audio"
	"github.com/austinkregel/local-media/previewd/internal/config"
	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/hover"
	"github.com/austinkregel/local-media/previewd/internal/ipc"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/media"
	"github.com/austinkregel/local-media/previewd/internal/prefs"
	"github.com/austinkregel/local-media/previewd/internal/session"
	"github.com/austinkregel/local-media/previewd/internal/tints"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Previews are decoded to stereo regardless of the source.
const outputChannels = 2

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, Config())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openLogger(c config.LogConfig) (*log.Logger, io.Closer, error) {
	level := c.Level
	if verbose {
		level = "debug"
	}
	if c.File == "" {
		return logging.New(os.Stderr, level), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(c.File), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logging.New(f, level), f, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, logFile, err := openLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger.Info("previewd starting", "version", Version, "config", cfgMgr.GetPath())

	loop := eventloop.New()

	out, err := audio.NewOutput(cfg.Playback.SampleRate, outputChannels)
	if err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}
	defer out.Close()

	decoder, err := audio.NewDecoder(cfg.Playback.Decoder)
	if err != nil {
		return fmt.Errorf("failed to initialize decoder: %w", err)
	}
	element := audio.NewElement(out, decoder, loop, logger)
	defer element.Close()

	store := prefs.NewStore(cfg.Prefs.Path, cfg.Prefs.DefaultVolume)
	if err := store.Load(); err != nil {
		logger.Warn("failed to load preferences, using defaults", "path", cfg.Prefs.Path, "err", err)
	}

	sync := visual.NewSync(cfg.VisualOptions())

	var tintSaver ipc.TintSaver
	tintStore, err := tints.Open(cfg.Tints.DBPath)
	if err != nil {
		logger.Warn("continuing without tint cache", "path", cfg.Tints.DBPath, "err", err)
	} else {
		defer tintStore.Close()
		tintSaver = tintStore
		saved, err := tintStore.All()
		if err != nil {
			logger.Warn("failed to read tint cache", "err", err)
		}
		for card, color := range saved {
			sync.RememberTint(card, color)
		}
		logger.Debug("loaded tints", "count", len(saved))
	}

	board := visual.NewBoard(nil)
	sess := session.New(element, loop, store, sync, board, cfg.SessionOptions(), logger)
	element.SetListener(sess)
	router := hover.New(sess, loop, board, cfg.HoverOptions(), logger)

	handler := ipc.NewHandler(ipc.Deps{
		Loop:    loop,
		Session: sess,
		Router:  router,
		Board:   board,
		Sync:    sync,
		Prefs:   store,
		Tints:   tintSaver,
	}, logger)
	server := ipc.NewServer(cfg.IPC.Socket, handler, cfg.IPC.GainPushRate, logger)

	publishers := visual.Publishers{server}
	if cfg.Media.MPRIS {
		ms, err := media.NewSession()
		if err != nil {
			// Not fatal: previews still play without OS integration.
			logger.Warn("continuing without OS media integration", "err", err)
		} else {
			bridge := media.NewBridge(ms, loop, sess.RequestStop, logger)
			defer bridge.Close()
			publishers = append(publishers, bridge)
		}
	}
	board.SetPublisher(publishers)

	if cfg.Prefs.Watch {
		go func() {
			err := store.Watch(ctx, func(p session.Preference) {
				logger.Debug("preferences changed", "muted", p.Muted, "volume", p.Volume)
				loop.Post(sess.PreferencesChanged)
			}, func(err error) {
				logger.Warn("preference watcher error", "err", err)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("preference watcher stopped", "err", err)
			}
		}()
	}

	go loop.Run(ctx)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server error: %w", err)
	}
	return nil
}
