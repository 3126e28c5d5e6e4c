package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongPollTransport_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cometd/54.0/", r.URL.Path)
		assert.Equal(t, "OAuth session-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var msgs []Message
		require.NoError(t, json.Unmarshal(body, &msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, MetaHandshake, msgs[0].Channel)

		http.SetCookie(w, &http.Cookie{Name: "BAYEUX_BROWSER", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`[{"channel":"/meta/handshake","successful":true,"clientId":"xyz"}]`))
	}))
	defer srv.Close()

	tr, err := NewLongPollTransport(srv.URL+"/cometd/54.0/", "session-123", 5*time.Second)
	require.NoError(t, err)

	resp, err := tr.Send(context.Background(), []Message{{Channel: MetaHandshake, Version: BayeuxVersion}})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.True(t, resp[0].Successful)
	assert.Equal(t, "xyz", resp[0].ClientID)
}

func TestLongPollTransport_KeepsCookies(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "BAYEUX_BROWSER", Value: "abc", Path: "/"})
		} else {
			c, err := r.Cookie("BAYEUX_BROWSER")
			require.NoError(t, err)
			assert.Equal(t, "abc", c.Value)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tr, err := NewLongPollTransport(srv.URL+"/cometd/54.0/", "t", time.Second)
	require.NoError(t, err)

	for range 2 {
		_, err := tr.Send(context.Background(), []Message{{Channel: MetaConnect}})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestLongPollTransport_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "INVALID_SESSION_ID", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr, err := NewLongPollTransport(srv.URL+"/cometd/54.0/", "stale", time.Second)
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), []Message{{Channel: MetaHandshake}})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "INVALID_SESSION_ID")
}

func TestClient_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msgs []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
		switch msgs[0].Channel {
		case MetaHandshake:
			_, _ = w.Write([]byte(`[{"channel":"/meta/handshake","successful":true,"clientId":"c-http"}]`))
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	loader := NewLoader(LongPollFactory(time.Second), nil)
	c := NewClient(loader, ClientConfig{Endpoint: srv.URL + "/cometd/54.0/"}, nil)

	require.NoError(t, c.Connect(context.Background(), "tok"))
	assert.Equal(t, "c-http", c.ClientID())
}

func TestLoader_LoadsOnce(t *testing.T) {
	calls := 0
	ft := newFakeTransport()
	l := NewLoader(func(endpoint, token string) (Transport, error) {
		calls++
		assert.Equal(t, "https://x/cometd/54.0/", endpoint)
		return ft, nil
	}, nil)

	assert.False(t, l.Loaded())
	for range 3 {
		tr, err := l.Load(context.Background(), "https://x/cometd/54.0/", "tok")
		require.NoError(t, err)
		assert.Same(t, ft, tr)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, l.Loaded())
}

func TestLoader_RemembersFailure(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	l := NewLoader(func(_, _ string) (Transport, error) {
		calls++
		return nil, boom
	}, nil)

	_, err := l.Load(context.Background(), "e", "t")
	assert.ErrorIs(t, err, boom)
	_, err = l.Load(context.Background(), "e", "t")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(func(_, _ string) (Transport, error) {
		t.Fatal("factory should not run")
		return nil, nil
	}, nil)
	_, err := l.Load(ctx, "e", "t")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, l.Loaded())
}
