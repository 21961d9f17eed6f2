package notifications

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_EvictsOldest(t *testing.T) {
	inbox := NewInbox(3)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		inbox.Add(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 3, inbox.Len())
	assert.Equal(t, 5, inbox.Total())

	recent := inbox.Recent(0)
	require.Len(t, recent, 3)
	assert.JSONEq(t, `{"n":4}`, string(recent[0].Payload))
	assert.JSONEq(t, `{"n":2}`, string(recent[2].Payload))
	assert.NotEqual(t, recent[0].ID, recent[1].ID)
}

func TestInbox_Recent(t *testing.T) {
	inbox := NewInbox(10)
	for i := 0; i < 4; i++ {
		inbox.Add(json.RawMessage(fmt.Sprintf(`%d`, i)), time.Now())
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "all", limit: 0, want: 4},
		{name: "fewer", limit: 2, want: 2},
		{name: "more than stored", limit: 9, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(inbox.Recent(tt.limit)); got != tt.want {
				t.Errorf("len(Recent(%d)) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}

func TestInbox_CopiesPayload(t *testing.T) {
	inbox := NewInbox(0)
	payload := json.RawMessage(`{"a":1}`)
	inbox.Add(payload, time.Now())
	payload[2] = 'b'

	assert.JSONEq(t, `{"a":1}`, string(inbox.Recent(1)[0].Payload))

	inbox.Clear()
	assert.Equal(t, 0, inbox.Len())
	assert.Equal(t, 1, inbox.Total())
}
