package records

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariel-x/gopresence/internal/models"
)

func TestChannelName(t *testing.T) {
	assert.Equal(t, "presence:s1:p1", ChannelName("s1", "p1"))
}

func TestRelay_EncodeDecode(t *testing.T) {
	local := NewRedisRelay(nil, "instance-a", nil)
	peer := NewRedisRelay(nil, "instance-b", nil)

	rec := models.AvailabilityRecord{
		SessionID:          "s1",
		ParticipantID:      "p1",
		IsAvailableForCall: false,
		ConversationState:  models.ConversationActive,
		UpdatedAt:          time.Unix(1_700_000_000, 0).UTC(),
	}

	payload, err := local.encode(rec)
	require.NoError(t, err)

	got, foreign, err := peer.decode(ChannelName("s1", "p1"), payload)
	require.NoError(t, err)
	assert.True(t, foreign)
	assert.Equal(t, rec.ConversationState, got.ConversationState)
	assert.False(t, got.IsAvailableForCall)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	_, foreign, err = local.decode(ChannelName("s1", "p1"), payload)
	require.NoError(t, err)
	assert.False(t, foreign, "own messages must not be replayed")
}

func TestRelay_DecodeRejectsMismatchedChannel(t *testing.T) {
	r := NewRedisRelay(nil, "instance-a", nil)

	payload, err := NewRedisRelay(nil, "instance-b", nil).encode(models.AvailabilityRecord{SessionID: "s1", ParticipantID: "p1"})
	require.NoError(t, err)

	_, _, err = r.decode(ChannelName("s1", "p2"), payload)
	assert.Error(t, err)

	_, _, err = r.decode(ChannelName("s1", "p1"), []byte("not json"))
	assert.Error(t, err)
}

func TestRelay_RunAppliesForeignRecordsOnly(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ConnectRedis(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	local := NewRedisRelay(client, "instance-a", nil)
	peer := NewRedisRelay(client, "instance-b", nil)

	var mu sync.Mutex
	var applied []models.AvailabilityRecord
	done := make(chan error, 1)
	go func() {
		done <- local.Run(ctx, func(rec models.AvailabilityRecord) {
			mu.Lock()
			applied = append(applied, rec)
			mu.Unlock()
		})
	}()

	sessionID := "relay-test-" + uuid.NewString()
	own := models.AvailabilityRecord{SessionID: sessionID, ParticipantID: "own", ConversationState: models.ConversationIdle}
	foreign := models.AvailabilityRecord{SessionID: sessionID, ParticipantID: "foreign", IsAvailableForCall: true, ConversationState: models.ConversationIdle}

	// The subscription starts asynchronously; publish until it is delivered.
	require.Eventually(t, func() bool {
		if local.Publish(ctx, own) != nil || peer.Publish(ctx, foreign) != nil {
			return false
		}

		mu.Lock()
		defer mu.Unlock()
		return len(applied) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	for _, rec := range applied {
		assert.Equal(t, "foreign", rec.ParticipantID, "own records must not be replayed")
		assert.True(t, rec.IsAvailableForCall)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("relay did not stop after cancel")
	}
}
