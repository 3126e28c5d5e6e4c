// Package dbus sends toasts to the desktop through the
// org.freedesktop.Notifications D-Bus interface.
//
// regalert is a client of whatever notification daemon owns the bus name
// (mako, dunst, swaync, GNOME Shell). Variants map to urgency hints and icons;
// sticky toasts never expire and dismissible ones use the configured timeout.
package dbus
