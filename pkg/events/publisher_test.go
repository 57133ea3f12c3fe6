package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store/jsonfile"
)

func newTestStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	s, err := jsonfile.New(filepath.Join(t.TempDir(), "events.json"))
	require.NoError(t, err)
	return s
}

func TestPublisherPersistsWithoutManager(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	pub := NewPublisher(s, nil)

	require.NoError(t, pub.Publish(ctx, models.RunEvent{RunID: "run-1", Name: models.StepSpecReady}))
	require.NoError(t, pub.Publish(ctx, models.RunEvent{RunID: "run-1", Name: models.StepSettingDone}))

	events, err := s.ListRunEvents(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Step)
	assert.Equal(t, 1, events[1].Step)
}

func TestPublisherBroadcastsAssignedOffsetToLiveSubscribers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	manager, server := setupTestManager(t, s)
	pub := NewPublisher(s, manager)

	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: RunChannel("run-1")})
	readJSON(t, conn) // subscription.confirmed

	require.Eventually(t, func() bool {
		return manager.subscriberCount(RunChannel("run-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pub.Publish(ctx, models.RunEvent{RunID: "run-1", Name: models.StepCMLDone}))

	msg := readJSON(t, conn)
	assert.Equal(t, string(models.StepCMLDone), msg["name"])
	assert.Equal(t, float64(0), msg["step"])
}
