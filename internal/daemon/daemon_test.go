package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/regalert/internal/channel"
	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
	"github.com/jmylchreest/regalert/internal/session"
	"github.com/jmylchreest/regalert/internal/store"
	"github.com/jmylchreest/regalert/internal/theme"
)

const (
	currentUser = "005xx000001SvogAAC"
	otherUser   = "005xx000009ZzzzAAA"
	testChannel = "/event/Registration_Alert__e"
)

// scriptedServer answers the handshake and subscribe, then replays queued
// event batches on /meta/connect.
type scriptedServer struct {
	mu          sync.Mutex
	rejectHS    bool
	rejectSub   bool
	handshakes  int
	disconnects int
	batches     chan []channel.Message
}

func newScriptedServer() *scriptedServer {
	return &scriptedServer{batches: make(chan []channel.Message, 16)}
}

func (s *scriptedServer) Send(ctx context.Context, msgs []channel.Message) ([]channel.Message, error) {
	m := msgs[0]
	if m.Channel == channel.MetaConnect {
		select {
		case b := <-s.batches:
			return append([]channel.Message{{Channel: channel.MetaConnect, Successful: true}}, b...), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Channel {
	case channel.MetaHandshake:
		s.handshakes++
		if s.rejectHS {
			return []channel.Message{{Channel: channel.MetaHandshake, Error: "401::Authentication invalid"}}, nil
		}
		return []channel.Message{{Channel: channel.MetaHandshake, Successful: true, ClientID: "cid"}}, nil
	case channel.MetaSubscribe:
		if s.rejectSub {
			return []channel.Message{{Channel: channel.MetaSubscribe, Error: "403::Restricted channel", Subscription: m.Subscription}}, nil
		}
		return []channel.Message{{Channel: channel.MetaSubscribe, Successful: true, Subscription: m.Subscription}}, nil
	case channel.MetaDisconnect:
		s.disconnects++
		return []channel.Message{{Channel: channel.MetaDisconnect, Successful: true}}, nil
	}
	return nil, errors.New("unexpected " + m.Channel)
}

func (s *scriptedServer) push(t *testing.T, payloads ...map[string]any) {
	t.Helper()
	batch := make([]channel.Message, 0, len(payloads))
	for i, p := range payloads {
		data, err := json.Marshal(map[string]any{
			"payload": p,
			"event":   map[string]any{"replayId": i + 1},
		})
		require.NoError(t, err)
		batch = append(batch, channel.Message{Channel: testChannel, Data: data})
	}
	s.batches <- batch
}

type recordingSurface struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *recordingSurface) ShowToast(_ context.Context, t notify.Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
	return nil
}

func (r *recordingSurface) all() []notify.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Toast(nil), r.toasts...)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.InstanceURL = "https://acme.my.site.com"
	cfg.User.ID = currentUser
	return cfg
}

type fixture struct {
	daemon  *Daemon
	server  *scriptedServer
	surface *recordingSurface
	journal *store.JSONLJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal, err := store.NewJSONLJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	return newFixtureWithJournal(t, journal)
}

func newFixtureWithJournal(t *testing.T, journal *store.JSONLJournal) *fixture {
	t.Helper()
	srv := newScriptedServer()
	surface := &recordingSurface{}
	dispatcher := notify.NewDispatcher(nil)
	dispatcher.Register("test", surface)

	d, err := New(Options{
		Config:     testConfig(),
		Session:    session.Static("token"),
		Loader:     channel.NewLoader(func(_, _ string) (channel.Transport, error) { return srv, nil }, nil),
		Dispatcher: dispatcher,
		Journal:    journal,
	})
	require.NoError(t, err)
	return &fixture{daemon: d, server: srv, surface: surface, journal: journal}
}

func TestNew_RequiresConfigAndSession(t *testing.T) {
	_, err := New(Options{Session: session.Static("t")})
	assert.Error(t, err)
	_, err = New(Options{Config: testConfig()})
	assert.Error(t, err)
}

func TestHandle_AddThenRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.daemon.Handle(ctx, model.Alert{
		RecordID:     "r1",
		Action:       model.ActionAdd,
		Message:      "Service down",
		TargetUserID: currentUser,
		Toast:        model.Toast{Show: true, Variant: model.VariantError, Title: "Down", Body: "svc down"},
	})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Relevant: true, Toasted: true, Change: core.ChangeAdded}, out)

	toasts := f.surface.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, model.VariantError, toasts[0].Variant)
	assert.Equal(t, "Down", toasts[0].Title)

	st := f.daemon.Store()
	assert.True(t, st.HasMessage())
	require.Len(t, st.All(), 1)
	assert.Equal(t, "r1", st.All()[0].RecordID)
	assert.Equal(t, theme.ClassError, st.All()[0].Style)

	out, err = f.daemon.Handle(ctx, model.Alert{RecordID: "r1", Action: model.ActionRemove, TargetUserID: currentUser})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Relevant: true, Toasted: false, Change: core.ChangeRemoved}, out)
	assert.False(t, st.HasMessage())
	assert.Len(t, f.surface.all(), 1)

	entries, err := f.journal.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Empty(t, core.Replay(store.Alerts(entries)))
}

func TestHandle_OtherUserIsIgnored(t *testing.T) {
	f := newFixture(t)

	for _, action := range []model.Action{model.ActionAdd, model.ActionUpdate, model.ActionRemove, model.ActionToastOnly} {
		out, err := f.daemon.Handle(context.Background(), model.Alert{
			RecordID:     "r1",
			Action:       action,
			TargetUserID: otherUser,
			Toast:        model.Toast{Show: true},
		})
		require.NoError(t, err)
		assert.False(t, out.Relevant)
	}

	assert.Empty(t, f.surface.all())
	assert.Equal(t, 0, f.daemon.Store().Len())

	entries, err := f.journal.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandle_SharedPrefixIsRelevant(t *testing.T) {
	f := newFixture(t)

	// Same first 15 characters, different checksum suffix.
	out, err := f.daemon.Handle(context.Background(), model.Alert{
		RecordID:     "r1",
		Action:       model.ActionAdd,
		TargetUserID: currentUser[:15] + "XYZ",
	})
	require.NoError(t, err)
	assert.True(t, out.Relevant)
}

func TestHandle_ToastOnly(t *testing.T) {
	f := newFixture(t)
	out, err := f.daemon.Handle(context.Background(), model.Alert{
		RecordID:     "r1",
		Action:       model.ActionToastOnly,
		TargetUserID: currentUser,
		Toast:        model.Toast{Show: true},
	})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Relevant: true, Toasted: true, Change: core.ChangeNone}, out)
	assert.Equal(t, 0, f.daemon.Store().Len())
	assert.Equal(t, "Alert", f.surface.all()[0].Title)
}

func TestHandleEvent_Malformed(t *testing.T) {
	f := newFixture(t)

	_, err := f.daemon.HandleEvent(context.Background(), channel.Event{Channel: testChannel, Payload: json.RawMessage(`{"Action__c":"Add"}`)})
	assert.ErrorIs(t, err, model.ErrMissingRecordID)

	_, err = f.daemon.HandleEvent(context.Background(), channel.Event{Channel: testChannel, Payload: json.RawMessage(`{"Record_Id__c":"r1","User_Id__c":"` + currentUser + `","Action__c":"Explode"}`)})
	assert.ErrorIs(t, err, model.ErrUnknownAction)
	assert.Empty(t, f.surface.all())
}

func TestHandleEvent_StampsDelivery(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_760_000_000, 0)
	f.daemon.now = func() time.Time { return now }

	_, err := f.daemon.HandleEvent(context.Background(), channel.Event{
		Channel:  testChannel,
		ReplayID: 42,
		Payload:  json.RawMessage(`{"Record_Id__c":"r1","User_Id__c":"` + currentUser + `","Action__c":"Add","Message__c":"hi"}`),
	})
	require.NoError(t, err)

	got := f.daemon.Store().Get("r1")
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.ReplayID)
	assert.Equal(t, now.Unix(), got.ReceivedAt)
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := f.daemon.Store().Subscribe()

	errCh := make(chan error, 1)
	go func() { errCh <- f.daemon.Run(ctx) }()

	f.server.push(t, map[string]any{
		"Record_Id__c":     "r1",
		"Action__c":        "Add",
		"Message__c":       "Registration failed",
		"User_Id__c":       currentUser,
		"Show_Toast__c":    true,
		"Toast_Variant__c": "error",
		"Toast_Title__c":   "Down",
		"Toast_Message__c": "svc down",
	})

	select {
	case ev := <-changes:
		assert.Equal(t, core.ChangeAdded, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for add")
	}

	toasts := f.surface.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, model.VariantError, toasts[0].Variant)
	assert.Equal(t, "Down", toasts[0].Title)
	assert.Equal(t, "svc down", toasts[0].Body)
	assert.True(t, f.daemon.Store().HasMessage())

	f.server.push(t,
		map[string]any{"Record_Id__c": "r2", "Action__c": "Add", "User_Id__c": otherUser, "Show_Toast__c": true},
		map[string]any{"Record_Id__c": "r1", "Action__c": "Remove", "User_Id__c": currentUser},
	)

	select {
	case ev := <-changes:
		assert.Equal(t, core.ChangeRemoved, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remove")
	}
	assert.False(t, f.daemon.Store().HasMessage())
	assert.Len(t, f.surface.all(), 1)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	f.server.mu.Lock()
	assert.Equal(t, 1, f.server.disconnects)
	assert.Equal(t, 1, f.server.handshakes)
	f.server.mu.Unlock()
}

func TestRun_HandshakeFailureLeavesDaemonInert(t *testing.T) {
	f := newFixture(t)
	f.server.rejectHS = true

	err := f.daemon.Run(context.Background())
	var hsErr *channel.HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, channel.StateFailed, f.daemon.Client().State())
	assert.Equal(t, 0, f.daemon.Store().Len())
}

func TestRun_SubscribeFailureDisconnects(t *testing.T) {
	f := newFixture(t)
	f.server.rejectSub = true

	err := f.daemon.Run(context.Background())
	require.Error(t, err)

	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	assert.Equal(t, 1, f.server.handshakes)
	assert.Equal(t, 1, f.server.disconnects)
	assert.Equal(t, channel.StateClosed, f.daemon.Client().State())
}

func TestRun_RestartStartsNewJournalSession(t *testing.T) {
	first := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	changes := first.daemon.Store().Subscribe()

	errCh := make(chan error, 1)
	go func() { errCh <- first.daemon.Run(ctx) }()

	first.server.push(t, map[string]any{"Record_Id__c": "r1", "Action__c": "Add", "User_Id__c": currentUser})
	select {
	case ev := <-changes:
		assert.Equal(t, core.ChangeAdded, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for add")
	}
	cancel()
	require.NoError(t, <-errCh)

	// The first run ends without a Remove for r1.
	entries, err := first.journal.Load()
	require.NoError(t, err)
	require.Len(t, core.Replay(store.Alerts(store.CurrentSession(entries))), 1)

	second := newFixtureWithJournal(t, first.journal)
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go func() { errCh <- second.daemon.Run(ctx) }()

	require.Eventually(t, func() bool {
		return second.daemon.Client().State() == channel.StateReady
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, second.daemon.Store().Len())

	entries, err = first.journal.Load()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].IsSessionStart())
	assert.True(t, entries[2].IsSessionStart())

	// The full history still holds r1, the new session does not.
	assert.Len(t, core.Replay(store.Alerts(entries)), 1)
	assert.Empty(t, core.Replay(store.Alerts(store.CurrentSession(entries))))

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_SessionFailure(t *testing.T) {
	d, err := New(Options{Config: testConfig(), Session: session.Static("")})
	require.NoError(t, err)

	err = d.Run(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, channel.StateUninit, d.Client().State())
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	var seen *config.Config
	f.daemon.OnReload(func(c *config.Config) { seen = c })

	cfg := testConfig()
	cfg.User.ID = otherUser
	f.daemon.Reload(cfg)
	assert.Same(t, cfg, seen)

	out, err := f.daemon.Handle(context.Background(), model.Alert{RecordID: "r1", Action: model.ActionAdd, TargetUserID: otherUser})
	require.NoError(t, err)
	assert.True(t, out.Relevant)
}
