// Package daemon wires the alert pipeline together.
// It fetches the session, connects and subscribes the channel client, and
// handles each inbound alert to completion before taking the next one:
// recipient filter, toast dispatch, collection update, journal append.
// It also reloads toast and sound settings when the config file changes.
package daemon
