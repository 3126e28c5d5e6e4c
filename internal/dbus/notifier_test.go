package dbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
)

type call struct {
	method string
	args   []interface{}
}

// fakeBus records method calls. Only CallWithContext is implemented.
type fakeBus struct {
	dbus.BusObject
	calls  []call
	nextID uint32
	err    error
}

func (f *fakeBus) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.calls = append(f.calls, call{method: method, args: args})
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	switch method {
	case DBusInterface + ".Notify":
		f.nextID++
		return &dbus.Call{Body: []interface{}{f.nextID}}
	case DBusInterface + ".GetServerInformation":
		return &dbus.Call{Body: []interface{}{"mako", "emersion", "1.9", "1.2"}}
	default:
		return &dbus.Call{}
	}
}

func newTestNotifier(bus *fakeBus) *Notifier {
	n := NewNotifier("regalert", 3*time.Second, nil)
	n.obj = bus
	return n
}

func TestBuildNotification(t *testing.T) {
	tests := []struct {
		name      string
		toast     notify.Toast
		icon      string
		urgency   byte
		expire    int32
		transient bool
	}{
		{"error dismissible", notify.Toast{Title: "T", Variant: model.VariantError, Mode: model.ModeDismissible}, "dialog-error", UrgencyCritical, 3000, true},
		{"warning sticky", notify.Toast{Title: "T", Variant: model.VariantWarning, Mode: model.ModeSticky}, "dialog-warning", UrgencyNormal, 0, false},
		{"success", notify.Toast{Title: "T", Variant: model.VariantSuccess}, "emblem-ok-symbolic", UrgencyLow, 3000, true},
		{"unknown variant", notify.Toast{Title: "T", Variant: "loud"}, "dialog-information", UrgencyLow, 3000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := BuildNotification("regalert", tt.toast, 3*time.Second)
			assert.Equal(t, "regalert", n.AppName)
			assert.Equal(t, tt.icon, n.AppIcon)
			assert.Equal(t, tt.urgency, n.Urgency())
			assert.Equal(t, tt.expire, n.ExpireTimeout)
			_, transient := n.Hints["transient"]
			_, resident := n.Hints["resident"]
			assert.Equal(t, tt.transient, transient)
			assert.Equal(t, !tt.transient, resident)
		})
	}
}

func TestDesktopNotification_Args(t *testing.T) {
	n := DesktopNotification{AppName: "a", Summary: "s", ExpireTimeout: -1}
	args := n.Args()
	require.Len(t, args, 8)
	assert.Equal(t, []string{}, args[5])
	assert.Equal(t, map[string]dbus.Variant{}, args[6])
	assert.Equal(t, int32(-1), args[7])
	assert.Equal(t, UrgencyNormal, n.Urgency())
}

func TestNotifier_ShowToast(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(bus)

	err := n.ShowToast(context.Background(), notify.Toast{RecordID: "r1", Title: "Hello", Body: "World", Variant: model.VariantInfo, Mode: model.ModeDismissible})
	require.NoError(t, err)
	require.Len(t, bus.calls, 1)

	c := bus.calls[0]
	assert.Equal(t, DBusInterface+".Notify", c.method)
	assert.Equal(t, "regalert", c.args[0])
	assert.Equal(t, uint32(0), c.args[1])
	assert.Equal(t, "Hello", c.args[3])
	assert.Equal(t, "World", c.args[4])
	assert.Equal(t, int32(3000), c.args[7])
}

func TestNotifier_StickyReplacement(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(bus)
	ctx := context.Background()

	sticky := notify.Toast{RecordID: "r1", Title: "A", Mode: model.ModeSticky}
	require.NoError(t, n.ShowToast(ctx, sticky))
	require.NoError(t, n.ShowToast(ctx, sticky))

	// Second toast replaces the first notification id.
	assert.Equal(t, uint32(1), bus.calls[1].args[1])

	require.NoError(t, n.Dismiss(ctx, "r1"))
	assert.Equal(t, DBusInterface+".CloseNotification", bus.calls[2].method)
	assert.Equal(t, uint32(2), bus.calls[2].args[0])

	// Nothing left to dismiss.
	require.NoError(t, n.Dismiss(ctx, "r1"))
	assert.Len(t, bus.calls, 3)
}

func TestNotifier_RemoveToastSurvivesDismiss(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(bus)
	ctx := context.Background()

	require.NoError(t, n.ShowToast(ctx, notify.Toast{RecordID: "r1", Action: model.ActionAdd, Title: "Pending", Mode: model.ModeSticky}))

	// The removal's toast takes over the earlier sticky toast...
	resolved := notify.Toast{RecordID: "r1", Action: model.ActionRemove, Title: "Resolved", Mode: model.ModeSticky}
	require.NoError(t, n.ShowToast(ctx, resolved))
	assert.Equal(t, uint32(1), bus.calls[1].args[1])

	// ...and is not closed when the record leaves the collection.
	require.NoError(t, n.Dismiss(ctx, "r1"))
	require.Len(t, bus.calls, 2)
	for _, c := range bus.calls {
		assert.NotEqual(t, DBusInterface+".CloseNotification", c.method)
	}
}

func TestNotifier_RemoveToastWithoutPriorSticky(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(bus)
	ctx := context.Background()

	require.NoError(t, n.ShowToast(ctx, notify.Toast{RecordID: "r1", Action: model.ActionRemove, Title: "Resolved", Mode: model.ModeSticky}))
	require.NoError(t, n.Dismiss(ctx, "r1"))
	assert.Len(t, bus.calls, 1)
}

func TestNotifier_SetTimeout(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(bus)
	n.SetTimeout(10 * time.Second)

	require.NoError(t, n.ShowToast(context.Background(), notify.Toast{Title: "x"}))
	assert.Equal(t, int32(10000), bus.calls[0].args[7])
}

func TestNotifier_Errors(t *testing.T) {
	n := NewNotifier("regalert", time.Second, nil)
	assert.ErrorIs(t, n.ShowToast(context.Background(), notify.Toast{}), ErrNotConnected)

	bus := &fakeBus{err: errors.New("no daemon")}
	n = newTestNotifier(bus)
	assert.Error(t, n.ShowToast(context.Background(), notify.Toast{Title: "x"}))
}

func TestNotifier_ServerInformation(t *testing.T) {
	n := newTestNotifier(&fakeBus{})
	info, err := n.ServerInformation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ServerInfo{Name: "mako", Vendor: "emersion", Version: "1.9", SpecVersion: "1.2"}, info)
}

func TestNotifier_CloseWithoutConnect(t *testing.T) {
	n := NewNotifier("regalert", time.Second, nil)
	assert.NoError(t, n.Close())
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, UrgencyCritical, UrgencyFor(model.VariantError))
	assert.Equal(t, UrgencyNormal, UrgencyFor(model.VariantWarning))
	assert.Equal(t, UrgencyLow, UrgencyFor(model.VariantSuccess))
	assert.Equal(t, UrgencyLow, UrgencyFor(""))
}
