package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/notify"
	"github.com/jmylchreest/regalert/internal/popover"
)

var watchOpts struct {
	desktop bool
	inline  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show active alerts in a terminal popover",
	Long: `Subscribe to the alert channel and show the active alerts for the
configured user in a terminal popover.

Toasts appear inline in the popover; pass --desktop to raise desktop
notifications as well. Press q or esc to close.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchOpts.desktop, "desktop", false,
		"Also raise desktop notifications")
	watchCmd.Flags().BoolVar(&watchOpts.inline, "inline", false,
		"Render inline instead of using the alternate screen")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	quietLogger()

	toasts := popover.NewToastSurface()
	dispatcher := notify.NewDispatcher(logger)
	dispatcher.Register("popover", toasts)

	p, err := newPipeline(ctx, dispatcher, watchOpts.desktop, true)
	if err != nil {
		return err
	}
	defer p.close()
	p.watchConfig()
	p.daemon.OnReload(func(c *config.Config) {
		toasts.SetTimeout(c.Toast.DismissibleTimeout.Duration())
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	daemonErr := make(chan error, 1)
	go func() {
		daemonErr <- p.daemon.Run(runCtx)
	}()

	m := popover.New(p.store, popover.Options{
		Header:           cfg.Popover.Header,
		Palette:          cfg.Popover.Palette,
		ToastTimeout:     cfg.Toast.DismissibleTimeout.Duration(),
		ClipboardCommand: cfg.Popover.ClipboardCommand,
		OnClose:          stop,
	})

	var progOpts []tea.ProgramOption
	if !watchOpts.inline {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	if err := popover.Run(runCtx, m, toasts, progOpts...); err != nil {
		return err
	}

	stop()
	if err := <-daemonErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
