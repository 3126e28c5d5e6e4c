package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/regalert/internal/channel"
	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
	"github.com/jmylchreest/regalert/internal/session"
	"github.com/jmylchreest/regalert/internal/store"
)

// ErrStreamEnded is returned by Run when the server ends the subscription.
var ErrStreamEnded = errors.New("event stream ended")

// disconnectTimeout bounds the /meta/disconnect sent on shutdown.
const disconnectTimeout = 5 * time.Second

// Options configures a Daemon. Config and Session are required.
type Options struct {
	Config     *config.Config
	Session    session.Provider
	Loader     *channel.Loader    // nil = long-polling HTTP transport
	Store      *store.Store       // nil = new empty store
	Dispatcher *notify.Dispatcher // nil = dispatcher with no surfaces
	Journal    store.Journal      // nil = no journal
	Logger     *slog.Logger
}

// Outcome describes what handling one alert did.
type Outcome struct {
	Relevant bool
	Toasted  bool
	Change   core.ChangeKind
}

// Daemon runs the alert pipeline for one user and one channel.
type Daemon struct {
	logger     *slog.Logger
	session    session.Provider
	client     *channel.Client
	store      *store.Store
	dispatcher *notify.Dispatcher
	journal    store.Journal
	channel    string

	mu        sync.RWMutex
	userID    string
	prefixLen int
	reloaders []func(*config.Config)

	now func() time.Time
}

// New creates a Daemon.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	if opts.Session == nil {
		return nil, errors.New("daemon: session provider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	loader := opts.Loader
	if loader == nil {
		loader = channel.NewLoader(channel.LongPollFactory(cfg.Server.PollTimeout.Duration()), logger)
	}
	st := opts.Store
	if st == nil {
		st = store.NewStore()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher(logger)
	}

	client := channel.NewClient(loader, channel.ClientConfig{
		Endpoint: cfg.Endpoint(),
		Retry: channel.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval.Duration(),
			MaxInterval:     cfg.Retry.MaxInterval.Duration(),
		},
	}, logger)

	return &Daemon{
		logger:     logger,
		session:    opts.Session,
		client:     client,
		store:      st,
		dispatcher: dispatcher,
		journal:    opts.Journal,
		channel:    cfg.Server.Channel,
		userID:     cfg.User.ID,
		prefixLen:  cfg.User.PrefixLength,
		now:        time.Now,
	}, nil
}

// Store returns the active alert collection.
func (d *Daemon) Store() *store.Store {
	return d.store
}

// Client returns the channel client.
func (d *Daemon) Client() *channel.Client {
	return d.client
}

// Run connects, subscribes and handles alerts until ctx ends or the server
// closes the stream. Session and handshake failures leave the daemon inert
// and are returned after being logged. Each run starts a new journal session.
func (d *Daemon) Run(ctx context.Context) error {
	d.recordSessionStart()

	token, err := d.session.Session(ctx)
	if err != nil {
		d.logger.Error("session unavailable", "error", err)
		return fmt.Errorf("session: %w", err)
	}

	if err := d.client.Connect(ctx, token); err != nil {
		return err
	}
	defer d.disconnect(ctx)

	events, err := d.client.Subscribe(ctx, d.channel)
	if err != nil {
		d.logger.Error("subscribe failed", "channel", d.channel, "error", err)
		return err
	}

	d.logger.Info("listening for alerts", "channel", d.channel)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamEnded
			}
			_, _ = d.HandleEvent(ctx, ev)
		}
	}
}

func (d *Daemon) disconnect(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if err := d.client.Close(closeCtx); err != nil {
		d.logger.Warn("disconnect failed", "error", err)
	}
}

// HandleEvent decodes an inbound event and handles the alert it carries.
// Malformed payloads are logged and skipped.
func (d *Daemon) HandleEvent(ctx context.Context, ev channel.Event) (Outcome, error) {
	a, err := model.DecodePayload(ev.Payload)
	if err != nil {
		d.logger.Warn("skipping malformed alert", "channel", ev.Channel, "replay_id", ev.ReplayID, "error", err)
		return Outcome{}, err
	}
	a.ReplayID = ev.ReplayID
	a.ReceivedAt = d.now().Unix()
	return d.Handle(ctx, a)
}

// Handle runs one alert through the pipeline: recipient filter, toast,
// collection update, journal append. Alerts for other users change nothing.
func (d *Daemon) Handle(ctx context.Context, a model.Alert) (Outcome, error) {
	d.mu.RLock()
	userID, prefixLen := d.userID, d.prefixLen
	d.mu.RUnlock()

	if !core.IsRecipient(userID, a.TargetUserID, prefixLen) {
		d.logger.Debug("alert is for another user", "record_id", a.RecordID)
		return Outcome{}, nil
	}

	out := Outcome{Relevant: true}
	out.Toasted = d.dispatcher.MaybeNotify(ctx, a)

	kind, err := d.store.Apply(a)
	if err != nil {
		return out, fmt.Errorf("apply %s %s: %w", a.Action, a.RecordID, err)
	}
	out.Change = kind
	d.logger.Debug("alert applied",
		"record_id", a.RecordID,
		"action", string(a.Action),
		"change", kind.String(),
		"active", d.store.Len(),
	)

	d.record(a)
	return out, nil
}

func (d *Daemon) record(a model.Alert) {
	if d.journal == nil {
		return
	}
	entry, err := model.NewEntry(d.channel, a)
	if err != nil {
		d.logger.Warn("journal entry failed", "error", err)
		return
	}
	if err := d.journal.Append(*entry); err != nil {
		d.logger.Warn("journal append failed", "record_id", a.RecordID, "error", err)
	}
}

// recordSessionStart marks the journal so readers replay only what this run
// has seen.
func (d *Daemon) recordSessionStart() {
	if d.journal == nil {
		return
	}
	entry, err := model.NewSessionEntry(d.channel)
	if err != nil {
		d.logger.Warn("journal entry failed", "error", err)
		return
	}
	if err := d.journal.Append(*entry); err != nil {
		d.logger.Warn("journal append failed", "error", err)
	}
}

// OnReload registers a hook run by Reload.
func (d *Daemon) OnReload(fn func(*config.Config)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloaders = append(d.reloaders, fn)
}

// Reload applies the settings that can change without reconnecting.
// Server, session and channel settings take effect on the next start.
func (d *Daemon) Reload(cfg *config.Config) {
	d.mu.Lock()
	d.userID = cfg.User.ID
	d.prefixLen = cfg.User.PrefixLength
	hooks := append([]func(*config.Config){}, d.reloaders...)
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(cfg)
	}
	d.logger.Info("configuration reloaded")
}
