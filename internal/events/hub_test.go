package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/aoproc/internal/process"
)

func TestHubRingBufferOverwritesOldest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish("tick", map[string]int{"n": i})
	}

	all := h.SnapshotSince(0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(5), all[2].ID)

	since := h.SnapshotSince(4)
	require.Len(t, since, 1)
	assert.Equal(t, int64(5), since[0].ID)
	assert.JSONEq(t, `{"n":4}`, string(since[0].Data))
}

func TestHubSubscribe(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()

	h.Publish("state.cleared", nil)

	select {
	case ev := <-ch:
		assert.Equal(t, "state.cleared", ev.Type)
		assert.Equal(t, "{}", string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel must close the channel")
	cancel() // idempotent
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for j := 0; j < subscriberBuffer*2; j++ {
			h.Publish("spam", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestHubObservesProcessRecords(t *testing.T) {
	h := NewHub(0)
	h.Observe(process.Record{ID: "r1", Kind: process.KindMessageHandled, From: "alice", Action: "Get", ResponseAction: "Get-Response"})

	evs := h.SnapshotSince(0)
	require.Len(t, evs, 1)
	assert.Equal(t, process.KindMessageHandled, evs[0].Type)

	var rec process.Record
	require.NoError(t, json.Unmarshal(evs[0].Data, &rec))
	assert.Equal(t, "alice", rec.From)
	assert.Equal(t, "Get-Response", rec.ResponseAction)
}
