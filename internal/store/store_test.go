package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/theme"
)

func testAlert(action model.Action, recordID string) model.Alert {
	return model.Alert{
		RecordID:     recordID,
		Action:       action,
		Message:      "msg " + recordID,
		TargetUserID: "005xx000001SvogAAC",
	}
}

func TestNewStore(t *testing.T) {
	s := NewStore()
	assert.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.HasMessage())
}

func TestStore_ApplyAddRemove(t *testing.T) {
	s := NewStore()
	defer s.Close()

	add := testAlert(model.ActionAdd, "r1")
	add.Toast.Variant = model.VariantError
	kind, err := s.Apply(add)
	require.NoError(t, err)
	assert.Equal(t, core.ChangeAdded, kind)
	assert.True(t, s.HasMessage())

	got := s.Get("r1")
	require.NotNil(t, got)
	assert.Equal(t, theme.ClassError, got.Style)

	kind, err = s.Apply(testAlert(model.ActionRemove, "r1"))
	require.NoError(t, err)
	assert.Equal(t, core.ChangeRemoved, kind)
	assert.False(t, s.HasMessage())
	assert.Nil(t, s.Get("r1"))
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	defer s.Close()

	_, _ = s.Apply(testAlert(model.ActionAdd, "r1"))
	all := s.All()
	all[0].Message = "tampered"

	assert.Equal(t, "msg r1", s.All()[0].Message)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	defer s.Close()

	ch := s.Subscribe()

	_, _ = s.Apply(testAlert(model.ActionAdd, "r1"))
	ev := <-ch
	assert.Equal(t, core.ChangeAdded, ev.Kind)
	assert.Equal(t, "r1", ev.RecordID)
	assert.Equal(t, 1, ev.Count)

	// No-op changes are not broadcast.
	_, _ = s.Apply(testAlert(model.ActionToastOnly, "r1"))
	_, _ = s.Apply(testAlert(model.ActionRemove, "r1"))
	ev = <-ch
	assert.Equal(t, core.ChangeRemoved, ev.Kind)
	assert.Equal(t, 0, ev.Count)

	s.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestStore_Close(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()
	_, _ = s.Apply(testAlert(model.ActionAdd, "r1"))
	<-ch

	require.NoError(t, s.Close())
	_, ok := <-ch
	assert.False(t, ok)

	_, err := s.Apply(testAlert(model.ActionAdd, "r2"))
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Equal(t, 0, s.Len())

	// Second close is a no-op.
	assert.NoError(t, s.Close())

	late := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
