package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/audio"
	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/daemon"
	"github.com/jmylchreest/regalert/internal/dbus"
	"github.com/jmylchreest/regalert/internal/notify"
	"github.com/jmylchreest/regalert/internal/session"
	"github.com/jmylchreest/regalert/internal/store"
)

var runOpts struct {
	noDesktop bool
	noSound   bool
	noReload  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Subscribe to the alert channel and raise notifications",
	Long: `Subscribe to the configured alert channel and handle alerts until
interrupted.

Alerts addressed to the configured user raise a desktop notification and a
sound cue (when enabled) and are recorded in the journal. The config file is
watched; toast timeout, sounds and volume apply without a restart.

Example systemd user unit:

  [Service]
  ExecStart=%h/.local/bin/regalert run
  Restart=on-failure`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.noDesktop, "no-desktop", false,
		"Do not raise desktop notifications")
	runCmd.Flags().BoolVar(&runOpts.noSound, "no-sound", false,
		"Do not play sound cues")
	runCmd.Flags().BoolVar(&runOpts.noReload, "no-reload", false,
		"Do not watch the config file for changes")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// pipeline holds the daemon and the surfaces it owns.
type pipeline struct {
	daemon  *daemon.Daemon
	store   *store.Store
	journal *store.JSONLJournal
	audio   *audio.Manager
	desktop *dbus.Notifier
	watcher *daemon.ConfigWatcher
}

// newPipeline builds a daemon for cfg with the desktop and sound surfaces
// registered on dispatcher according to config and flags.
func newPipeline(ctx context.Context, dispatcher *notify.Dispatcher, desktop, sound bool) (*pipeline, error) {
	if err := cfg.RequireServer(); err != nil {
		return nil, err
	}
	provider, err := session.FromConfig(cfg.Session)
	if err != nil {
		return nil, err
	}

	p := &pipeline{store: store.NewStore()}

	if desktop && cfg.Toast.Desktop {
		n := dbus.NewNotifier(cfg.Toast.AppName, cfg.Toast.DismissibleTimeout.Duration(), logger)
		if err := n.Connect(); err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			p.desktop = n
			dispatcher.Register("desktop", n)
		}
	}

	// Registered even when disabled so a reload can switch sounds on.
	if sound {
		p.audio = audio.NewManager(audio.SettingsFromConfig(cfg), logger)
		if err := p.audio.Start(ctx); err != nil {
			logger.Warn("sound cues unavailable", "error", err)
		}
		dispatcher.Register("audio", p.audio)
	}

	opts := daemon.Options{
		Config:     cfg,
		Session:    provider,
		Store:      p.store,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	j, err := openJournal()
	if err != nil {
		logger.Warn("journal disabled", "error", err)
	} else if j != nil {
		p.journal = j
		opts.Journal = j
	}

	p.daemon, err = daemon.New(opts)
	if err != nil {
		p.close()
		return nil, err
	}

	if p.desktop != nil {
		go p.dismissRemoved(ctx, p.store.Subscribe())
	}

	p.daemon.OnReload(func(c *config.Config) {
		if p.desktop != nil {
			p.desktop.SetTimeout(c.Toast.DismissibleTimeout.Duration())
		}
		if p.audio != nil {
			p.audio.Update(audio.SettingsFromConfig(c))
		}
	})
	return p, nil
}

// dismissRemoved closes a record's sticky desktop toast once the record is
// removed from the collection. It returns when the store is closed.
func (p *pipeline) dismissRemoved(ctx context.Context, changes <-chan store.ChangeEvent) {
	for ev := range changes {
		if ev.Kind != core.ChangeRemoved {
			continue
		}
		if err := p.desktop.Dismiss(ctx, ev.RecordID); err != nil {
			logger.Debug("failed to close desktop toast", "record_id", ev.RecordID, "error", err)
		}
	}
}

// watchConfig starts hot reload of the config file into the daemon.
func (p *pipeline) watchConfig() {
	w := daemon.NewConfigWatcher(globalOpts.configPath, logger)
	w.SetReloadCallback(p.daemon.Reload)
	w.SetErrorCallback(func(err error) {
		logger.Warn("keeping previous configuration", "error", err)
	})
	if err := w.Start(cfg); err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
		return
	}
	p.watcher = w
}

func (p *pipeline) close() {
	if p.watcher != nil {
		p.watcher.Stop()
	}
	if p.audio != nil {
		p.audio.Stop()
	}
	if p.desktop != nil {
		_ = p.desktop.Close()
	}
	if p.journal != nil {
		_ = p.journal.Close()
	}
	_ = p.store.Close()
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	dispatcher := notify.NewDispatcher(logger)
	dispatcher.Register("log", notify.LogSurface{Logger: logger})

	p, err := newPipeline(ctx, dispatcher, !runOpts.noDesktop, !runOpts.noSound)
	if err != nil {
		return err
	}
	defer p.close()

	if !runOpts.noReload {
		p.watchConfig()
	}

	logger.Info("starting regalert", "version", version, "endpoint", cfg.Endpoint(), "channel", cfg.Server.Channel)
	err = p.daemon.Run(ctx)
	if errors.Is(err, daemon.ErrStreamEnded) {
		return fmt.Errorf("server closed the subscription: %w", err)
	}
	return err
}
