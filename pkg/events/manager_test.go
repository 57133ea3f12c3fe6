package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

type fakeCatchupQuerier struct {
	events map[string][]models.RunEvent
	err    error
}

func (f *fakeCatchupQuerier) ListRunEvents(_ context.Context, runID string, fromOffset int) ([]models.RunEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	all := f.events[runID]
	if fromOffset >= len(all) {
		return nil, nil
	}
	return all[fromOffset:], nil
}

func setupTestManager(t *testing.T, catchup CatchupQuerier) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	if catchup == nil {
		catchup = &fakeCatchupQuerier{events: map[string][]models.RunEvent{}}
	}
	manager := NewConnectionManager(catchup, 5*time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(server.Close)
	return manager, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestConnectionManagerConnectionEstablished(t *testing.T) {
	_, server := setupTestManager(t, nil)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
}

func TestConnectionManagerSubscribeUnsubscribe(t *testing.T) {
	manager, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established

	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: RunChannel("run-1")})

	msg := readJSON(t, conn)
	assert.Equal(t, "subscription.confirmed", msg["type"])
	assert.Equal(t, RunChannel("run-1"), msg["channel"])

	require.Eventually(t, func() bool {
		return manager.subscriberCount(RunChannel("run-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: RunChannel("run-1")})
	require.Eventually(t, func() bool {
		return manager.subscriberCount(RunChannel("run-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionManagerBroadcastReachesSubscribers(t *testing.T) {
	manager, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established

	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: RunChannel("run-1")})
	readJSON(t, conn) // subscription.confirmed

	require.Eventually(t, func() bool {
		return manager.subscriberCount(RunChannel("run-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	manager.Broadcast(RunChannel("run-1"), []byte(`{"name":"cml_done"}`))

	msg := readJSON(t, conn)
	assert.Equal(t, "cml_done", msg["name"])
}

func TestConnectionManagerCatchupOnSubscribeReplaysHistory(t *testing.T) {
	catchup := &fakeCatchupQuerier{events: map[string][]models.RunEvent{
		"run-1": {
			{RunID: "run-1", Step: 0, Name: models.StepSpecReady},
			{RunID: "run-1", Step: 1, Name: models.StepSettingDone},
		},
	}}
	_, server := setupTestManager(t, catchup)
	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established

	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: RunChannel("run-1")})
	readJSON(t, conn) // subscription.confirmed

	first := readJSON(t, conn)
	assert.Equal(t, string(models.StepSpecReady), first["name"])
	second := readJSON(t, conn)
	assert.Equal(t, string(models.StepSettingDone), second["name"])
}

func TestConnectionManagerCatchupFromOffsetSkipsAlreadySeenEvents(t *testing.T) {
	catchup := &fakeCatchupQuerier{events: map[string][]models.RunEvent{
		"run-1": {
			{RunID: "run-1", Step: 0, Name: models.StepSpecReady},
			{RunID: "run-1", Step: 1, Name: models.StepSettingDone},
			{RunID: "run-1", Step: 2, Name: models.StepCastDone},
		},
	}}
	_, server := setupTestManager(t, catchup)
	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established

	offset := 0
	writeJSON(t, conn, ClientMessage{Action: "catchup", Channel: RunChannel("run-1"), LastOffset: &offset})

	msg := readJSON(t, conn)
	assert.Equal(t, string(models.StepSettingDone), msg["name"])
	msg = readJSON(t, conn)
	assert.Equal(t, string(models.StepCastDone), msg["name"])
}

func TestConnectionManagerPingPong(t *testing.T) {
	_, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established

	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestRunChannelFormatsRunID(t *testing.T) {
	assert.Equal(t, "run:abc-123", RunChannel("abc-123"))
}
