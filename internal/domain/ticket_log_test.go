package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPayload_EncodeDecode(t *testing.T) {
	medium := TicketPriorityMedium
	assignee := "U9"
	name := "Broken printer"
	payload := LogPayload{
		Note:        "replaced toner",
		OldPriority: &medium,
		NewPriority: &medium,
		NewAssignee: &assignee,
		OldName:     &name,
		NewName:     &name,
		Changes: []Change{
			{Field: ChangeFieldStatus, From: 1, To: 2},
			{Field: ChangeFieldAssignee, From: nil, To: "U9"},
		},
	}

	raw, err := payload.Encode()
	require.NoError(t, err)
	assert.Contains(t, raw, `"version":1`)

	decoded, err := DecodeLogPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "replaced toner", decoded.Note)
	require.NotNil(t, decoded.NewAssignee)
	assert.Equal(t, "U9", *decoded.NewAssignee)
	assert.Equal(t, []Change{
		{Field: ChangeFieldStatus, From: 1, To: 2},
		{Field: ChangeFieldAssignee, From: nil, To: "U9"},
	}, decoded.Changes)
	assert.True(t, decoded.Has("old_assignee"), "null keys are still present")
}

func TestDecodeLogPayload_ToleratesMissingAndUnknownFields(t *testing.T) {
	decoded, err := DecodeLogPayload(`{"note":"legacy","extra":{"a":1}}`)
	require.NoError(t, err)
	assert.Equal(t, "legacy", decoded.Note)
	assert.Nil(t, decoded.NewPriority)
	assert.Empty(t, decoded.Changes)
	assert.False(t, decoded.Has("new_name"))
	assert.Equal(t, 0, decoded.Version)
}

func TestDecodeLogPayload_LenientOnWrongTypes(t *testing.T) {
	decoded, err := DecodeLogPayload(`{"note":"x","new_priority":"high","changes":[{"field":"priority","from":3,"to":1},"junk"]}`)
	require.NoError(t, err)
	assert.Equal(t, "x", decoded.Note)
	assert.Nil(t, decoded.NewPriority)
	assert.Equal(t, []Change{{Field: ChangeFieldPriority, From: 3, To: 1}}, decoded.Changes)
}

func TestDecodeLogPayload_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"just a note", "", "null", "[1,2]"} {
		_, err := DecodeLogPayload(raw)
		assert.Error(t, err, raw)
	}
}

func TestLogPayload_HasOnInMemoryPayload(t *testing.T) {
	assert.True(t, LogPayload{}.Has("new_name"))
}
