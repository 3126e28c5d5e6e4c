package popover

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/regalert/internal/notify"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// maxPendingToasts bounds the messages held while no program is attached.
// The oldest are dropped first.
const maxPendingToasts = 16

// ToastSurface forwards toasts into a running popover. It is a notify.Surface.
// Messages sent while unattached are held and delivered in order once a
// program attaches.
type ToastSurface struct {
	mu       sync.Mutex
	sender   Sender
	pending  []tea.Msg
	flushing bool
}

// NewToastSurface creates an unattached surface.
func NewToastSurface() *ToastSurface {
	return &ToastSurface{}
}

// Attach connects the surface to a program. Pass nil to detach.
// Held messages are delivered from a separate goroutine, since a program
// accepts messages only once its event loop is running.
func (s *ToastSurface) Attach(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
	if sender != nil && len(s.pending) > 0 && !s.flushing {
		s.flushing = true
		go s.flush(sender)
	}
}

// flush drains pending into sender. New messages queue behind the backlog
// until it is empty.
func (s *ToastSurface) flush(sender Sender) {
	for {
		s.mu.Lock()
		if s.sender != sender || len(s.pending) == 0 {
			if s.sender != nil && s.sender != sender && len(s.pending) > 0 {
				go s.flush(s.sender)
			} else {
				s.flushing = false
			}
			s.mu.Unlock()
			return
		}
		msg := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		sender.Send(msg)
	}
}

// send delivers msg directly when attached with no backlog, and queues it
// otherwise.
func (s *ToastSurface) send(msg tea.Msg) {
	s.mu.Lock()
	if s.sender == nil || s.flushing {
		if len(s.pending) >= maxPendingToasts {
			s.pending = s.pending[1:]
		}
		s.pending = append(s.pending, msg)
		s.mu.Unlock()
		return
	}
	sender := s.sender
	s.mu.Unlock()

	sender.Send(msg)
}

// ShowToast implements notify.Surface.
func (s *ToastSurface) ShowToast(_ context.Context, t notify.Toast) error {
	s.send(ToastMsg{Toast: t})
	return nil
}

// SetTimeout changes the popover's dismissible toast timeout.
func (s *ToastSurface) SetTimeout(d time.Duration) {
	s.send(ToastTimeoutMsg{Timeout: d})
}

// Run shows the popover until it is closed or ctx ends.
func Run(ctx context.Context, m Model, surface *ToastSurface, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	if surface != nil {
		surface.Attach(p)
		defer surface.Attach(nil)
	}
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
