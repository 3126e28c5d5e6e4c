// Package notify turns relevant alerts into transient toast notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/regalert/internal/model"
)

// Toast defaults applied when the alert leaves a field empty.
const (
	DefaultTitle = "Alert"
	DefaultBody  = ""
)

// Toast is a fully resolved toast notification.
type Toast struct {
	RecordID string
	Action   model.Action // action of the alert that raised the toast
	Title    string
	Body     string
	Variant  model.Variant
	Mode     model.Mode
}

// Sticky reports whether the toast stays until dismissed.
func (t Toast) Sticky() bool {
	return t.Mode == model.ModeSticky
}

// Surface displays toasts somewhere: the desktop, a speaker, a terminal.
type Surface interface {
	ShowToast(ctx context.Context, t Toast) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, t Toast) error

// ShowToast implements Surface.
func (f SurfaceFunc) ShowToast(ctx context.Context, t Toast) error {
	return f(ctx, t)
}

// Derive resolves the toast for an alert, filling defaults.
// It returns false if the alert does not request a toast.
func Derive(a model.Alert) (Toast, bool) {
	if !a.Toast.Show {
		return Toast{}, false
	}
	t := Toast{
		RecordID: a.RecordID,
		Action:   a.Action,
		Title:    a.Toast.Title,
		Body:     a.Toast.Body,
		Variant:  a.Toast.Variant.OrDefault(),
		Mode:     model.ParseMode(a.Toast.Mode),
	}
	if t.Title == "" {
		t.Title = DefaultTitle
	}
	if t.Body == "" {
		t.Body = DefaultBody
	}
	return t, true
}

// Dispatcher fans toasts out to registered surfaces.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	surfaces map[string]Surface
	order    []string
}

// NewDispatcher creates a Dispatcher with no surfaces.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		surfaces: make(map[string]Surface),
	}
}

// Register adds or replaces the surface with the given name.
func (d *Dispatcher) Register(name string, s Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.surfaces[name]; !ok {
		d.order = append(d.order, name)
	}
	d.surfaces[name] = s
}

// Unregister removes a surface.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.surfaces[name]; !ok {
		return
	}
	delete(d.surfaces, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Surfaces returns the registered surface names in registration order.
func (d *Dispatcher) Surfaces() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// MaybeNotify emits a toast for a if it asks for one. Surface failures are
// logged and never returned. It reports whether a toast was emitted.
func (d *Dispatcher) MaybeNotify(ctx context.Context, a model.Alert) bool {
	t, ok := Derive(a)
	if !ok {
		return false
	}

	d.mu.RLock()
	names := append([]string(nil), d.order...)
	surfaces := make([]Surface, len(names))
	for i, n := range names {
		surfaces[i] = d.surfaces[n]
	}
	d.mu.RUnlock()

	for i, s := range surfaces {
		if err := s.ShowToast(ctx, t); err != nil {
			d.logger.Warn("toast surface failed", "surface", names[i], "record_id", t.RecordID, "error", err)
		}
	}
	return true
}

// LogSurface writes toasts to a logger.
type LogSurface struct {
	Logger *slog.Logger
}

// ShowToast implements Surface.
func (l LogSurface) ShowToast(_ context.Context, t Toast) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("toast",
		"record_id", t.RecordID,
		"action", t.Action,
		"title", t.Title,
		"body", t.Body,
		"variant", string(t.Variant),
		"mode", string(t.Mode),
	)
	return nil
}
