package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
)

// ErrNotConnected is returned when a toast is sent before Connect.
var ErrNotConnected = errors.New("not connected to the session bus")

// Notifier is a notify.Surface backed by the desktop notification daemon.
type Notifier struct {
	logger  *slog.Logger
	appName string

	mu      sync.Mutex
	conn    *dbus.Conn
	obj     dbus.BusObject
	timeout time.Duration
	sticky  map[string]uint32 // record id -> notification id of its sticky toast
}

// NewNotifier creates a Notifier. Call Connect before sending toasts.
func NewNotifier(appName string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:  logger,
		appName: appName,
		timeout: timeout,
		sticky:  make(map[string]uint32),
	}
}

// Connect opens the session bus and looks up the notification daemon.
func (n *Notifier) Connect() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.obj = conn.Object(DBusBusName, DBusPath)
	n.mu.Unlock()

	if info, err := n.ServerInformation(context.Background()); err == nil {
		n.logger.Info("desktop notifications available", "server", info.Name, "vendor", info.Vendor, "version", info.Version)
	} else {
		n.logger.Warn("notification daemon did not answer", "error", err)
	}
	return nil
}

// SetTimeout changes the expiry used for dismissible toasts.
func (n *Notifier) SetTimeout(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timeout = d
}

// ShowToast implements notify.Surface. A new toast for a record replaces
// that record's previous sticky toast. A Remove's own toast is never tracked,
// so the Dismiss that follows the removal leaves it on screen.
func (n *Notifier) ShowToast(ctx context.Context, t notify.Toast) error {
	n.mu.Lock()
	obj := n.obj
	timeout := n.timeout
	replaces := n.sticky[t.RecordID]
	n.mu.Unlock()

	if obj == nil {
		return ErrNotConnected
	}

	notification := BuildNotification(n.appName, t, timeout)
	notification.ReplacesID = replaces

	call := obj.CallWithContext(ctx, DBusInterface+".Notify", 0, notification.Args()...)
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	n.mu.Lock()
	if t.Sticky() && t.RecordID != "" && t.Action != model.ActionRemove {
		n.sticky[t.RecordID] = id
	} else {
		delete(n.sticky, t.RecordID)
	}
	n.mu.Unlock()

	n.logger.Debug("desktop toast sent", "id", id, "record_id", t.RecordID, "urgency", notification.Urgency())
	return nil
}

// Dismiss closes the sticky toast shown for a record, if any.
func (n *Notifier) Dismiss(ctx context.Context, recordID string) error {
	n.mu.Lock()
	obj := n.obj
	id, ok := n.sticky[recordID]
	delete(n.sticky, recordID)
	n.mu.Unlock()

	if !ok {
		return nil
	}
	if obj == nil {
		return ErrNotConnected
	}
	return obj.CallWithContext(ctx, DBusInterface+".CloseNotification", 0, id).Err
}

// ServerInformation queries the notification daemon's identity.
func (n *Notifier) ServerInformation(ctx context.Context) (ServerInfo, error) {
	n.mu.Lock()
	obj := n.obj
	n.mu.Unlock()

	if obj == nil {
		return ServerInfo{}, ErrNotConnected
	}

	var info ServerInfo
	call := obj.CallWithContext(ctx, DBusInterface+".GetServerInformation", 0)
	if err := call.Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion); err != nil {
		return ServerInfo{}, err
	}
	return info, nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.obj = nil
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
