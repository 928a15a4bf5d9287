package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventJSON(t *testing.T) {
	event := NewEvent(EventReservationCreated, 10, map[string]interface{}{"reservation_id": 42})
	assert.False(t, event.Timestamp.IsZero())

	data, err := event.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "reservation.created", decoded["type"])
	assert.Equal(t, float64(10), decoded["restaurant_id"])
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, EventPing, event.Type)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// Nobody is draining the broadcast queue; pushing past its capacity must
	// drop events instead of wedging the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(NewEvent(EventReservationUpdated, 10, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full broadcast queue")
	}
}

func TestWatcherCount(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.Zero(t, hub.WatcherCount(10))
}
