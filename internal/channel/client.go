package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// State is the lifecycle state of a Client.
type State int32

const (
	// StateUninit means Connect has not been called.
	StateUninit State = iota
	// StateConnecting means a handshake is in flight.
	StateConnecting
	// StateReady means the handshake succeeded.
	StateReady
	// StateFailed means the handshake failed. The client stays inert.
	StateFailed
	// StateClosed means Close has been called.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

var (
	// ErrNotReady is returned by Subscribe before a successful handshake.
	ErrNotReady = errors.New("channel client is not connected")
	// ErrAlreadySubscribed is returned by a second Subscribe call.
	ErrAlreadySubscribed = errors.New("channel client already has a subscription")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("channel client is closed")
)

// HandshakeError reports a failed or rejected handshake.
type HandshakeError struct {
	// Status is the server reply (or transport error text) as reported to the caller.
	Status string
	Err    error
}

func (e *HandshakeError) Error() string {
	return "handshake failed: " + e.Status
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// SubscribeError reports a rejected subscription.
type SubscribeError struct {
	Channel string
	Status  string
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe to %s failed: %s", e.Channel, e.Status)
}

// RetryPolicy controls handshake retries and the connect loop's error backoff.
// MaxAttempts 0 means a failed handshake is final.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	Retry    RetryPolicy
}

// Client is a Bayeux long-polling client with at most one subscription.
type Client struct {
	loader *Loader
	cfg    ClientConfig
	logger *slog.Logger

	connMu sync.Mutex // serializes Connect

	mu           sync.Mutex
	state        State
	err          error
	transport    Transport
	clientID     string
	advice       Advice
	subscription string
	cancel       context.CancelFunc
	done         chan struct{}

	msgID atomic.Uint64
}

// NewClient creates a Client that obtains its transport from loader.
func NewClient(loader *Loader, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		loader: loader,
		cfg:    cfg,
		logger: logger,
		advice: Advice{Reconnect: ReconnectRetry},
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the id assigned by the server, or "" before the handshake.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Connect loads the transport and performs the handshake.
// Only the first call does any work. Later calls return nil once ready, or
// the original error if the handshake failed. A Close that lands while the
// handshake is in flight wins: Connect returns ErrClosed and the client stays
// closed.
func (c *Client) Connect(ctx context.Context, token string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateFailed:
		err := c.err
		c.mu.Unlock()
		return err
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	transport, err := c.loader.Load(ctx, c.cfg.Endpoint, token)
	if err != nil {
		return c.fail(&HandshakeError{Status: "transport unavailable: " + err.Error(), Err: err})
	}

	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()

	if err := c.handshakeWithRetry(ctx); err != nil {
		var hsErr *HandshakeError
		if !errors.As(err, &hsErr) {
			err = &HandshakeError{Status: err.Error(), Err: err}
		}
		return c.fail(err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		clientID := c.clientID
		c.mu.Unlock()
		c.abandon(ctx, clientID)
		return ErrClosed
	}
	c.state = StateReady
	c.mu.Unlock()
	c.logger.Info("handshake successful", "endpoint", c.cfg.Endpoint, "client_id", c.ClientID())
	return nil
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateFailed
	c.err = err
	c.mu.Unlock()
	c.logger.Error("error in handshaking", "endpoint", c.cfg.Endpoint, "error", err)
	return err
}

// abandon releases a server session whose handshake finished after Close.
func (c *Client) abandon(ctx context.Context, clientID string) {
	if clientID == "" {
		return
	}
	if _, err := c.send(ctx, Message{Channel: MetaDisconnect, ID: c.nextID(), ClientID: clientID}); err != nil {
		c.logger.Debug("disconnect after close failed", "client_id", clientID, "error", err)
	}
}

func (c *Client) handshakeWithRetry(ctx context.Context) error {
	if c.cfg.Retry.MaxAttempts <= 0 {
		return c.handshake(ctx)
	}

	op := func() error {
		err := c.handshake(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.cfg.Retry.backOff(), uint64(c.cfg.Retry.MaxAttempts)), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Warn("handshake failed, retrying", "error", err, "wait", wait)
	})
}

func (c *Client) handshake(ctx context.Context) error {
	req := Message{
		Channel:                  MetaHandshake,
		ID:                       c.nextID(),
		Version:                  BayeuxVersion,
		MinimumVersion:           BayeuxVersion,
		SupportedConnectionTypes: []string{ConnectionTypeLongPolling},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return &HandshakeError{Status: err.Error(), Err: err}
	}

	reply, ok := findReply(resp, MetaHandshake)
	if !ok {
		return &HandshakeError{Status: "no handshake reply"}
	}
	if !reply.Successful || reply.ClientID == "" {
		return &HandshakeError{Status: statusText(reply)}
	}

	c.mu.Lock()
	c.clientID = reply.ClientID
	if reply.Advice != nil {
		c.advice = mergeAdvice(c.advice, *reply.Advice)
	}
	c.mu.Unlock()
	return nil
}

// Subscribe registers the client's single subscription and starts the
// connect loop. Events arrive in order on the returned channel, which is
// closed when ctx is cancelled, Close is called or the server advises
// against reconnecting.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return nil, ErrClosed
	case c.state != StateReady:
		c.mu.Unlock()
		return nil, ErrNotReady
	case c.subscription != "":
		c.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	c.subscription = channel
	c.mu.Unlock()

	pending, err := c.subscribe(ctx, channel)
	if err != nil {
		c.mu.Lock()
		c.subscription = ""
		c.mu.Unlock()
		return nil, err
	}
	c.logger.Info("subscribed", "channel", channel)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	out := make(chan Event)

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(loopCtx, channel, out, done, pending)
	return out, nil
}

func (c *Client) subscribe(ctx context.Context, channel string) ([]Message, error) {
	resp, err := c.send(ctx, Message{
		Channel:      MetaSubscribe,
		ID:           c.nextID(),
		ClientID:     c.ClientID(),
		Subscription: channel,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	reply, ok := findReply(resp, MetaSubscribe)
	if !ok {
		return nil, &SubscribeError{Channel: channel, Status: "no subscribe reply"}
	}
	if !reply.Successful {
		return nil, &SubscribeError{Channel: channel, Status: statusText(reply)}
	}
	return resp, nil
}

// run is the single producer for out. It owns the connect loop.
func (c *Client) run(ctx context.Context, channel string, out chan<- Event, done chan struct{}, pending []Message) {
	defer close(done)
	defer close(out)

	if !c.deliver(ctx, channel, out, pending) {
		return
	}

	errBackoff := c.cfg.Retry.backOff()
	for {
		advice := c.currentAdvice()
		if advice.Interval > 0 {
			if !sleep(ctx, time.Duration(advice.Interval)*time.Millisecond) {
				return
			}
		}

		resp, err := c.send(ctx, Message{
			Channel:        MetaConnect,
			ID:             c.nextID(),
			ClientID:       c.ClientID(),
			ConnectionType: ConnectionTypeLongPolling,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := errBackoff.NextBackOff()
			c.logger.Warn("connect failed", "error", err, "wait", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		errBackoff.Reset()

		if reply, ok := findReply(resp, MetaConnect); ok {
			if reply.Advice != nil {
				c.setAdvice(*reply.Advice)
			}
			if !reply.Successful {
				c.logger.Warn("connect rejected", "status", statusText(reply))
			}
		}

		if !c.deliver(ctx, channel, out, resp) {
			return
		}

		switch c.currentAdvice().Reconnect {
		case ReconnectNone:
			c.logger.Info("server advised not to reconnect", "channel", channel)
			return
		case ReconnectHandshake:
			more, err := c.rehandshake(ctx, channel)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Error("re-handshake failed", "error", err)
				}
				return
			}
			if !c.deliver(ctx, channel, out, more) {
				return
			}
		}
	}
}

func (c *Client) rehandshake(ctx context.Context, channel string) ([]Message, error) {
	c.logger.Info("server advised re-handshake", "channel", channel)
	c.mu.Lock()
	c.advice.Reconnect = ReconnectRetry
	c.mu.Unlock()

	if err := c.handshakeWithRetry(ctx); err != nil {
		return nil, err
	}
	return c.subscribe(ctx, channel)
}

// deliver forwards data messages for channel in order. It returns false if
// ctx ended before every event was accepted.
func (c *Client) deliver(ctx context.Context, channel string, out chan<- Event, msgs []Message) bool {
	for _, m := range msgs {
		if m.IsMeta() || m.Channel != channel {
			continue
		}
		ev, err := toEvent(m)
		if err != nil {
			c.logger.Warn("dropping undecodable event", "channel", m.Channel, "error", err)
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// Close stops the connect loop and sends /meta/disconnect if the handshake
// had succeeded. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	wasReady := c.state == StateReady
	c.state = StateClosed
	cancel, done := c.cancel, c.done
	clientID := c.clientID
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !wasReady {
		return nil
	}

	_, err := c.send(ctx, Message{Channel: MetaDisconnect, ID: c.nextID(), ClientID: clientID})
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	c.logger.Debug("disconnected", "client_id", clientID)
	return nil
}

func (c *Client) send(ctx context.Context, msg Message) ([]Message, error) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotReady
	}
	return t.Send(ctx, []Message{msg})
}

func (c *Client) currentAdvice() Advice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advice
}

func (c *Client) setAdvice(a Advice) {
	c.mu.Lock()
	c.advice = mergeAdvice(c.advice, a)
	c.mu.Unlock()
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.msgID.Add(1), 10)
}

// mergeAdvice overlays the fields the server sent onto the previous advice.
func mergeAdvice(prev, next Advice) Advice {
	if next.Reconnect != "" {
		prev.Reconnect = next.Reconnect
	}
	prev.Interval = next.Interval
	if next.Timeout > 0 {
		prev.Timeout = next.Timeout
	}
	return prev
}

func findReply(msgs []Message, channel string) (Message, bool) {
	for _, m := range msgs {
		if m.Channel == channel {
			return m, true
		}
	}
	return Message{}, false
}

func statusText(m Message) string {
	data, err := json.Marshal(m)
	if err != nil {
		return m.Error
	}
	return string(data)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
