package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenType is the authorization scheme sent with the session token.
const TokenType = "OAuth"

// Transport exchanges batches of Bayeux messages with the server.
type Transport interface {
	Send(ctx context.Context, msgs []Message) ([]Message, error)
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// LongPollTransport sends messages as JSON over HTTP POST.
// The endpoint is used as-is; message types are never appended to the URL.
type LongPollTransport struct {
	endpoint string
	client   *http.Client
}

// NewLongPollTransport creates a transport that authorizes every request with
// "Authorization: OAuth <token>". Cookies set by the server are kept for the
// lifetime of the transport.
func NewLongPollTransport(endpoint, token string, timeout time.Duration) (*LongPollTransport, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: TokenType})
	client := oauth2.NewClient(context.Background(), src)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client.Jar = jar
	client.Timeout = timeout

	return &LongPollTransport{endpoint: endpoint, client: client}, nil
}

// Endpoint returns the URL requests are posted to.
func (t *LongPollTransport) Endpoint() string {
	return t.endpoint
}

// Send implements Transport.
func (t *LongPollTransport) Send(ctx context.Context, msgs []Message) ([]Message, error) {
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	var out []Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Factory builds a transport for an endpoint and session token.
type Factory func(endpoint, token string) (Transport, error)

// LongPollFactory returns a Factory producing LongPollTransports.
func LongPollFactory(timeout time.Duration) Factory {
	return func(endpoint, token string) (Transport, error) {
		return NewLongPollTransport(endpoint, token, timeout)
	}
}

// Loader initializes the transport once and hands the same instance to every
// caller. A failed load is remembered and returned to later callers.
type Loader struct {
	factory Factory
	logger  *slog.Logger

	mu        sync.Mutex
	done      bool
	transport Transport
	err       error
}

// NewLoader creates a Loader around factory.
func NewLoader(factory Factory, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{factory: factory, logger: logger}
}

// Load resolves the transport. Only the first call invokes the factory.
func (l *Loader) Load(ctx context.Context, endpoint, token string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.transport, l.err
	}

	l.transport, l.err = l.factory(endpoint, token)
	l.done = true
	if l.err != nil {
		l.logger.Error("transport load failed", "endpoint", endpoint, "error", l.err)
	} else {
		l.logger.Debug("transport loaded", "endpoint", endpoint)
	}
	return l.transport, l.err
}

// Loaded reports whether Load has completed.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
