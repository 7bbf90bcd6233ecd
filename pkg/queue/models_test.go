package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	a := NewRequest("key-1", "  open the door ", "")
	b := NewRequest("key-1", "open the door", "")

	assert.Equal(t, "open the door", a.Action)
	assert.Len(t, a.RequestID, 26)
	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.False(t, a.EnqueuedAt.IsZero())
	require.NoError(t, a.Validate())

	tr := a.TurnRequest()
	assert.Equal(t, "key-1", tr.SessionKey)
	assert.Equal(t, "open the door", tr.Action)
	require.NoError(t, tr.Validate())
}

func TestRequest_JSON(t *testing.T) {
	req := NewRequest("key-1", "look", "gpt-4o-mini")
	data, err := req.ToJSON()
	require.NoError(t, err)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, req.Model, got.Model)
	assert.True(t, req.EnqueuedAt.Equal(got.EnqueuedAt))

	_, err = FromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestRequest_Validate(t *testing.T) {
	assert.Error(t, (&Request{Action: "look"}).Validate())
	assert.Error(t, (&Request{SessionKey: "k", Action: " "}).Validate())
}
