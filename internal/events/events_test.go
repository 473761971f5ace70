package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_EnvelopeShape(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	ev := New(TimeEntryStarted{ID: 7, UserID: 3, ProjectID: 1, StartTime: start}, &start)

	raw, err := ev.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Len(t, decoded, 3)
	assert.Equal(t, "time_entry_started", decoded["type"])
	assert.Equal(t, "2024-03-01T00:30:00Z", decoded["timestamp"])

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, data["id"])
	assert.Nil(t, data["task_id"])
}

func TestEncode_NullTimestamp(t *testing.T) {
	raw, err := New(UserStatusChange{UserID: 4, Status: UserOnline}, nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"user_status_change","data":{"user_id":4,"status":"online"},"timestamp":null}`,
		string(raw))
}

func TestEncode_MissingPayload(t *testing.T) {
	_, err := Event{Type: TypePong}.Encode()
	assert.Error(t, err)
}

func TestPayloadTypes(t *testing.T) {
	payloads := map[Type]Payload{
		TypeConnection:         Connected{},
		TypeTimeEntryStarted:   TimeEntryStarted{},
		TypeTimeEntryStopped:   TimeEntryStopped{},
		TypeActivityUpdate:     ActivityUpdate{},
		TypeScreenshotTaken:    ScreenshotTaken{},
		TypeProjectUpdate:      ProjectUpdate{},
		TypeTaskUpdate:         TaskUpdate{},
		TypeUserStatusChange:   UserStatusChange{},
		TypeSystemNotification: SystemNotification{},
		TypeProductivityAlert:  ProductivityAlert{},
		TypePong:               Pong{},
		TypeError:              Error{},
	}
	for want, p := range payloads {
		assert.Equal(t, want, New(p, nil).Type)
	}
}
