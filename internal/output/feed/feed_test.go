package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/util/backoff"
)

type weekPayload struct {
	Week     string `json:"week"`
	Decision string `json:"decision"`
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastToAll(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, wsURL(srv))
	b := dial(t, wsURL(srv))
	waitClients(t, hub, 2)

	require.NoError(t, hub.Broadcast("week_result", weekPayload{Week: "2024-W02", Decision: "TRADE_ALLOWED"}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "week_result", msg.Type)
		var p weekPayload
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, "2024-W02", p.Week)
		assert.False(t, msg.SentAt.IsZero())
	}
}

func TestHub_LateSubscriberGetsLastMessage(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	require.NoError(t, hub.Broadcast("week_result", weekPayload{Week: "2024-W01"}))
	require.NoError(t, hub.Broadcast("week_result", weekPayload{Week: "2024-W02"}))

	conn := dial(t, wsURL(srv))
	var p weekPayload
	require.NoError(t, json.Unmarshal(readMessage(t, conn).Data, &p))
	assert.Equal(t, "2024-W02", p.Week)
}

func TestHub_DisconnectAndClose(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, wsURL(srv))
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)

	hub.Close()
	assert.Error(t, hub.Broadcast("week_result", 1))
}

func TestHub_BroadcastEncodeError(t *testing.T) {
	hub := NewHub(nil)
	assert.Error(t, hub.Broadcast("bad", make(chan int)))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	hub := NewHub(nil)
	s, err := Listen("127.0.0.1:0", hub)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	conn := dial(t, "ws://"+s.Addr()+Path)
	waitClients(t, hub, 1)
	require.NoError(t, hub.Broadcast("week_result", weekPayload{Week: "2024-W05"}))
	assert.Equal(t, "week_result", readMessage(t, conn).Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_Routes(t *testing.T) {
	hub := NewHub(nil)
	s, err := Listen("127.0.0.1:0", hub)
	require.NoError(t, err)
	s.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("thetaguard_up 1\n"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	base := "http://" + s.Addr()
	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "thetaguard_up 1\n", string(body))

	// 只读端点拒绝写方法
	resp, err = http.Post(base+"/metrics", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(base + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubscriber_ReceivesAndReconnects(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	sub := NewSubscriber(wsURL(srv), nil)
	sub.backoff = backoff.New(time.Millisecond, 5*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	waitClients(t, hub, 1)
	require.NoError(t, hub.Broadcast("week_result", weekPayload{Week: "2024-W02"}))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "week_result", msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	// 服务端断开所有连接后，订阅端应重连并收到最近一条消息
	hub.mu.Lock()
	for c := range hub.clients {
		hub.removeLocked(c)
	}
	hub.mu.Unlock()

	select {
	case msg := <-sub.Messages():
		var p weekPayload
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, "2024-W02", p.Week)
	case <-time.After(3 * time.Second):
		t.Fatal("no message after reconnect")
	}
	assert.GreaterOrEqual(t, sub.Metrics().Reconnects, int64(1))
	assert.Equal(t, int64(2), sub.Metrics().Received)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, open := <-sub.Messages()
	assert.False(t, open)
}
