package model

import (
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		input    string
		expected Action
		wantErr  bool
	}{
		{"Add", ActionAdd, false},
		{"Update", ActionUpdate, false},
		{"Remove", ActionRemove, false},
		{"ToastOnly", ActionToastOnly, false},
		{"Toast", ActionToastOnly, false},
		{" Add ", ActionAdd, false},
		{"add", "", true},
		{"", "", true},
		{"Delete", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownAction))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestVariant_OrDefault(t *testing.T) {
	assert.Equal(t, VariantError, VariantError.OrDefault())
	assert.Equal(t, VariantSuccess, VariantSuccess.OrDefault())
	assert.Equal(t, VariantInfo, Variant("").OrDefault())
	assert.Equal(t, VariantInfo, Variant("fatal").OrDefault())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSticky, ParseMode("sticky"))
	assert.Equal(t, ModeSticky, ParseMode("Sticky"))
	assert.Equal(t, ModeDismissible, ParseMode("dismissable"))
	assert.Equal(t, ModeDismissible, ParseMode("dismissible"))
	assert.Equal(t, ModeDismissible, ParseMode(""))
	assert.Equal(t, ModeDismissible, ParseMode("pester"))
}

func TestAlert_Validate(t *testing.T) {
	valid := Alert{RecordID: "r1", TargetUserID: "005xx0000012345AAA", Action: ActionAdd}
	require.NoError(t, valid.Validate())

	noRecord := valid
	noRecord.RecordID = ""
	assert.ErrorIs(t, noRecord.Validate(), ErrMissingRecordID)

	noUser := valid
	noUser.TargetUserID = ""
	assert.ErrorIs(t, noUser.Validate(), ErrMissingUserID)

	badAction := valid
	badAction.Action = "Explode"
	assert.ErrorIs(t, badAction.Validate(), ErrUnknownAction)
}

func TestAlert_MessageTruncated(t *testing.T) {
	a := Alert{Message: "Registration\n  failed   for event"}

	assert.Equal(t, "Registration failed for event", a.MessageTruncated(100))
	assert.Equal(t, "Registr...", a.MessageTruncated(10))
	assert.Equal(t, "Reg", a.MessageTruncated(3))
	assert.Equal(t, "", a.MessageTruncated(0))
}

func TestAlert_Clone(t *testing.T) {
	a := Alert{RecordID: "r1", Message: "hello", Toast: Toast{Show: true, Title: "t"}}
	c := a.Clone()
	c.Message = "changed"
	c.Toast.Title = "other"

	assert.Equal(t, "hello", a.Message)
	assert.Equal(t, "t", a.Toast.Title)
}

func TestNewEntry(t *testing.T) {
	a := Alert{RecordID: "r1", TargetUserID: "005", Action: ActionAdd}
	e, err := NewEntry("/event/Registration_Alert__e", a)
	require.NoError(t, err)

	_, err = ulid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, "/event/Registration_Alert__e", e.Channel)
	assert.Equal(t, "r1", e.Alert.RecordID)
	assert.Greater(t, e.LoggedAt, int64(0))
}
