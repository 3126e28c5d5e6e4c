package dbus

import (
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name owned by the notification daemon.
	DBusBusName = "org.freedesktop.Notifications"
)

// Urgency levels of the freedesktop notifications protocol.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Category is sent as the category hint on every toast.
const Category = "x-regalert.alert"

// DesktopNotification holds the arguments of a Notify call.
type DesktopNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Args returns the Notify arguments in wire order.
func (n *DesktopNotification) Args() []interface{} {
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []interface{}{
		n.AppName,
		n.ReplacesID,
		n.AppIcon,
		n.Summary,
		n.Body,
		actions,
		hints,
		n.ExpireTimeout,
	}
}

// Urgency extracts the urgency hint. Returns UrgencyNormal if not set.
func (n *DesktopNotification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// UrgencyFor maps a toast variant to an urgency level.
func UrgencyFor(v model.Variant) byte {
	switch v.OrDefault() {
	case model.VariantError:
		return UrgencyCritical
	case model.VariantWarning:
		return UrgencyNormal
	default:
		return UrgencyLow
	}
}

// IconFor maps a toast variant to a freedesktop icon name.
func IconFor(v model.Variant) string {
	switch v.OrDefault() {
	case model.VariantError:
		return "dialog-error"
	case model.VariantWarning:
		return "dialog-warning"
	case model.VariantSuccess:
		return "emblem-ok-symbolic"
	default:
		return "dialog-information"
	}
}

// BuildNotification converts a toast into Notify arguments.
func BuildNotification(appName string, t notify.Toast, timeout time.Duration) DesktopNotification {
	n := DesktopNotification{
		AppName: appName,
		AppIcon: IconFor(t.Variant),
		Summary: t.Title,
		Body:    t.Body,
		Hints: map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(UrgencyFor(t.Variant)),
			"category":      dbus.MakeVariant(Category),
			"desktop-entry": dbus.MakeVariant(appName),
		},
	}

	if t.Sticky() {
		n.ExpireTimeout = 0
		n.Hints["resident"] = dbus.MakeVariant(true)
	} else {
		n.ExpireTimeout = int32(timeout.Milliseconds())
		n.Hints["transient"] = dbus.MakeVariant(true)
	}
	return n
}

// ServerInfo describes the notification daemon on the bus.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}
