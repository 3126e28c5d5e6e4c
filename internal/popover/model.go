// Package popover renders the active alert collection in the terminal.
//
// The popover only reflects state: it receives the alerts and a header,
// shows the latest toast, and emits a close signal when dismissed.
package popover

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
	"github.com/jmylchreest/regalert/internal/store"
	"github.com/jmylchreest/regalert/internal/theme"
)

// DefaultToastTimeout is how long a dismissible toast stays visible.
const DefaultToastTimeout = 3 * time.Second

// Source supplies the alerts to render.
type Source interface {
	All() []model.Alert
	Subscribe() <-chan store.ChangeEvent
}

// Options configures a Model.
type Options struct {
	Header           string
	Palette          theme.Palette
	ToastTimeout     time.Duration
	ClipboardCommand string
	OnClose          func()
}

// Model is the popover's bubbletea model.
type Model struct {
	source    Source
	refreshCh <-chan store.ChangeEvent

	header           string
	styles           *theme.Styles
	keys             KeyMap
	help             help.Model
	viewport         viewport.Model
	clipboardCommand string
	onClose          func()

	messages []model.Alert

	toast        *notify.Toast
	toastSeq     int
	toastTimeout time.Duration

	statusMsg string
	showHelp  bool
	ready     bool
	closed    bool
	width     int
	height    int

	now func() time.Time
}

// ToastMsg asks the popover to show a toast.
type ToastMsg struct {
	Toast notify.Toast
}

// ToastTimeoutMsg changes the dismissible toast timeout.
type ToastTimeoutMsg struct {
	Timeout time.Duration
}

type refreshMsg struct{}

type sourceClosedMsg struct{}

type toastExpiredMsg struct {
	seq int
}

type statusMsg struct {
	text string
}

type clearStatusMsg struct{}

// New creates a popover over source. A nil source shows an empty collection.
func New(source Source, opts Options) Model {
	header := opts.Header
	if header == "" {
		header = "Alerts"
	}
	timeout := opts.ToastTimeout
	if timeout <= 0 {
		timeout = DefaultToastTimeout
	}

	m := Model{
		source:           source,
		header:           header,
		styles:           theme.NewStyles(opts.Palette),
		keys:             DefaultKeyMap(),
		help:             help.New(),
		clipboardCommand: opts.ClipboardCommand,
		onClose:          opts.OnClose,
		toastTimeout:     timeout,
		now:              time.Now,
	}
	if source != nil {
		m.refreshCh = source.Subscribe()
		m.messages = source.All()
	}
	return m
}

// Messages returns the alerts currently shown.
func (m Model) Messages() []model.Alert {
	return m.messages
}

// HasMessage reports whether any alert is shown.
func (m Model) HasMessage() bool {
	return len(m.messages) > 0
}

// Toast returns the visible toast, or nil.
func (m Model) Toast() *notify.Toast {
	return m.toast
}

// Closed reports whether the close signal has been emitted.
func (m Model) Closed() bool {
	return m.closed
}

// Init starts listening for collection changes.
func (m Model) Init() tea.Cmd {
	return m.watchForChanges
}

// watchForChanges blocks until the source reports a change.
func (m Model) watchForChanges() tea.Msg {
	if m.refreshCh == nil {
		return nil
	}
	if _, ok := <-m.refreshCh; !ok {
		return sourceClosedMsg{}
	}
	return refreshMsg{}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport = viewport.New(msg.Width, max(1, msg.Height-4))
		m.ready = true
		m.viewport.SetContent(m.renderMessages())
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.watchForChanges

	case sourceClosedMsg:
		m.messages = nil
		m.refreshCh = nil
		m.syncViewport()
		return m, nil

	case ToastMsg:
		t := msg.Toast
		m.toastSeq++
		m.toast = &t
		if t.Sticky() {
			return m, nil
		}
		seq := m.toastSeq
		return m, tea.Tick(m.toastTimeout, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		})

	case ToastTimeoutMsg:
		if msg.Timeout > 0 {
			m.toastTimeout = msg.Timeout
		}
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if m.source != nil {
		m.messages = m.source.All()
	}
	m.syncViewport()
}

func (m *Model) syncViewport() {
	if m.ready {
		m.viewport.SetContent(m.renderMessages())
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Close):
		if !m.closed && m.onClose != nil {
			m.onClose()
		}
		m.closed = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.DismissToast):
		m.toast = nil
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyMessages()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) copyMessages() tea.Cmd {
	alerts := m.messages
	command := m.clipboardCommand
	return func() tea.Msg {
		text, err := alertsYAML(alerts)
		if err == nil {
			err = copyText(text, command)
		}
		if err != nil {
			return statusMsg{text: "Copy failed: " + err.Error()}
		}
		return statusMsg{text: "Copied to clipboard"}
	}
}

// View renders the popover.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header().Render(m.header))
	if n := len(m.messages); n > 0 {
		b.WriteString(m.styles.Muted().Render(" (" + humanize.Comma(int64(n)) + ")"))
	}
	b.WriteString("\n")

	if m.toast != nil {
		b.WriteString(m.renderToast(*m.toast))
		b.WriteString("\n")
	}

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.renderMessages())
	}
	b.WriteString("\n")

	if m.statusMsg != "" {
		b.WriteString(m.styles.Muted().Render(m.statusMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderToast(t notify.Toast) string {
	text := t.Title
	if t.Body != "" {
		text += ": " + t.Body
	}
	return m.styles.Toast(t.Variant).Render(text)
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return m.styles.Muted().Render("  No active alerts")
	}

	lines := make([]string, 0, len(m.messages))
	for _, a := range m.messages {
		line := m.styles.Class(a.Style).Render(a.Message)
		if a.ReceivedAt > 0 {
			line += m.styles.Muted().Render("  " + humanize.RelTime(a.ReceivedTime(), m.now(), "ago", "from now"))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
