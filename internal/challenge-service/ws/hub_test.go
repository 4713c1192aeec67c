package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversOnlyToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	sub := dial(t, srv)
	other := dial(t, srv)
	require.NoError(t, sub.WriteJSON(ClientMsg{Type: "subscribe", ChallengeID: "c1"}))
	require.NoError(t, other.WriteJSON(ClientMsg{Type: "subscribe", ChallengeID: "c2"}))
	require.Eventually(t, func() bool {
		return hub.Subscribers("c1") == 1 && hub.Subscribers("c2") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(Update{ChallengeID: "c1", Payload: map[string]string{"status": "completed"}})

	_ = sub.SetReadDeadline(time.Now().Add(time.Second))
	var got Update
	require.NoError(t, sub.ReadJSON(&got))
	assert.Equal(t, "c1", got.ChallengeID)

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "c2 subscriber must not receive c1 updates")
}

func TestRedisSubscriberFeedsHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", ChallengeID: "c9"}))
	require.Eventually(t, func() bool { return hub.Subscribers("c9") == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRedisSubscriber(ctx, zap.NewNop(), rdb, "challenge_updates_broadcast", hub)

	require.Eventually(t, func() bool {
		n, _ := rdb.Publish(ctx, "challenge_updates_broadcast", `{"challengeId":"c9","payload":{"status":"ai-conflict"}}`).Result()
		return n > 0
	}, time.Second, 20*time.Millisecond)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Update
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "c9", got.ChallengeID)
}
