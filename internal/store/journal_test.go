package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/regalert/internal/model"
)

func testEntry(t *testing.T, a model.Alert) model.Entry {
	t.Helper()
	e, err := model.NewEntry("/event/Registration_Alert__e", a)
	require.NoError(t, err)
	return *e
}

func TestNewJSONLJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")

	j, err := NewJSONLJournal(path)
	require.NoError(t, err)
	defer j.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "regalert_schema_version")
	assert.Equal(t, path, j.Path())
}

func TestJSONLJournal_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := NewJSONLJournal(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionAdd, "r1"))))
	require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionRemove, "r1"))))

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionAdd, entries[0].Alert.Action)
	assert.Equal(t, model.ActionRemove, entries[1].Alert.Action)

	// Appending after a load still lands at the end.
	require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionAdd, "r2"))))
	require.NoError(t, j.Close())

	reopened, err := NewJSONLJournal(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err = reopened.Load()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "r2", entries[2].Alert.RecordID)
}

func TestJSONLJournal_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := NewJSONLJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionAdd, "r1"))))
	require.NoError(t, j.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	j, err = NewJSONLJournal(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONLJournal_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"regalert_schema_version":99,"created_at":1}`+"\n"), 0600))

	j, err := NewJSONLJournal(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Load()
	assert.Error(t, err)
}

func TestJSONLJournal_Closed(t *testing.T) {
	j, err := NewJSONLJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = j.Load()
	assert.ErrorIs(t, err, ErrJournalClosed)
	assert.ErrorIs(t, j.Append(model.Entry{ID: "x"}), ErrJournalClosed)
	assert.ErrorIs(t, j.Rewrite(nil), ErrJournalClosed)
	assert.NoError(t, j.Close())
}

func TestPrune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := NewJSONLJournal(path)
	require.NoError(t, err)
	defer j.Close()

	now := time.Now()
	old := testEntry(t, testAlert(model.ActionAdd, "old"))
	old.LoggedAt = now.Add(-72 * time.Hour).Unix()
	require.NoError(t, j.Append(old))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionAdd, id))))
	}

	removed, err := Prune(j, now.Add(-48*time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Alert.RecordID)
	assert.Equal(t, "c", entries[1].Alert.RecordID)

	removed, err = Prune(j, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestAlerts(t *testing.T) {
	entries := []model.Entry{
		testEntry(t, testAlert(model.ActionAdd, "r1")),
		testEntry(t, testAlert(model.ActionAdd, "r2")),
	}
	alerts := Alerts(entries)
	require.Len(t, alerts, 2)
	assert.Equal(t, "r1", alerts[0].RecordID)
	assert.Equal(t, "r2", alerts[1].RecordID)
}

func sessionEntry(t *testing.T) model.Entry {
	t.Helper()
	e, err := model.NewSessionEntry("/event/Registration_Alert__e")
	require.NoError(t, err)
	return *e
}

func TestAlerts_SkipsSessionMarkers(t *testing.T) {
	entries := []model.Entry{
		sessionEntry(t),
		testEntry(t, testAlert(model.ActionAdd, "r1")),
		sessionEntry(t),
	}
	alerts := Alerts(entries)
	require.Len(t, alerts, 1)
	assert.Equal(t, "r1", alerts[0].RecordID)
}

func TestCurrentSession(t *testing.T) {
	r1 := testEntry(t, testAlert(model.ActionAdd, "r1"))
	r2 := testEntry(t, testAlert(model.ActionAdd, "r2"))

	tests := []struct {
		name    string
		entries []model.Entry
		want    []string
	}{
		{"no marker", []model.Entry{r1, r2}, []string{"r1", "r2"}},
		{"marker first", []model.Entry{sessionEntry(t), r1, r2}, []string{"r1", "r2"}},
		{"last marker wins", []model.Entry{r1, sessionEntry(t), r2}, []string{"r2"}},
		{"marker last", []model.Entry{r1, r2, sessionEntry(t)}, nil},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, a := range Alerts(CurrentSession(tt.entries)) {
				got = append(got, a.RecordID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJournal_SessionMarkerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := NewJSONLJournal(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(testEntry(t, testAlert(model.ActionAdd, "r1"))))
	require.NoError(t, j.Append(sessionEntry(t)))

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsSessionStart())
	assert.True(t, entries[1].IsSessionStart())
	assert.Empty(t, CurrentSession(entries))
}

func TestJournalPath_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := JournalPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "regalert", "journal.jsonl"), path)
}
