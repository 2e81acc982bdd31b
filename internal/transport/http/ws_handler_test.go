package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/auth"
	"github.com/nestline/hub-server/internal/config"
	"github.com/nestline/hub-server/internal/hub"
	"github.com/nestline/hub-server/internal/store/sqlite"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()

	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "nestline",
		Audience: "nestline-clients",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, st, jwtConfig)

	h := hub.New(authService, st, &logger, 16)

	server := NewServer(h, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func registerUser(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()

	resp := postJSON(t, ts, "/api/register", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}

	var body AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return body.Token
}

func createRoom(t *testing.T, ts *httptest.Server, token, name string, members ...string) int64 {
	t.Helper()

	resp := postJSON(t, ts, "/api/rooms", token, map[string]string{"name": name})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room: status %d", resp.StatusCode)
	}
	var room RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("decode room response: %v", err)
	}

	for _, member := range members {
		mresp := postJSON(t, ts, "/api/rooms/"+itoa(room.ID)+"/members", token, map[string]string{"username": member})
		mresp.Body.Close()
		if mresp.StatusCode != http.StatusNoContent {
			t.Fatalf("add member %s: status %d", member, mresp.StatusCode)
		}
	}
	return room.ID
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readFrameOfType reads frames until one of the wanted type arrives,
// skipping interleaved presence traffic.
func readFrameOfType(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	for {
		var f map[string]any
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame while waiting for %q: %v", typ, err)
		}
		if f["type"] == typ {
			return f
		}
	}
}

func authenticateWS(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) {
	t.Helper()

	if err := wsjson.Write(ctx, conn, map[string]any{"type": "authenticate", "token": token}); err != nil {
		t.Fatalf("write authenticate: %v", err)
	}
	f := readFrameOfType(t, ctx, conn, "auth")
	if f["status"] != "success" {
		t.Fatalf("expected auth success, got %+v", f)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWelcomeFrameOnConnect(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	f := readFrameOfType(t, ctx, conn, "connection")
	if f["status"] != "connected" {
		t.Fatalf("unexpected welcome frame: %+v", f)
	}
}

func TestPingWithoutAuth(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	if err := wsjson.Write(ctx, conn, map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	readFrameOfType(t, ctx, conn, "pong")
}

func TestPrivilegedFrameWithoutAuth(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	if err := wsjson.Write(ctx, conn, map[string]any{"type": "status_request"}); err != nil {
		t.Fatalf("write status_request: %v", err)
	}
	f := readFrameOfType(t, ctx, conn, "error")
	if data, _ := f["data"].(string); data != "not authenticated" {
		t.Fatalf("unexpected error frame: %+v", f)
	}
}

func TestRoomChatScenario(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")
	registerUser(t, ts, "carol")

	// Room 42-ish: alice, bob, carol are members; carol never connects.
	roomID := createRoom(t, ts, aliceToken, "trip-planning", "bob", "carol")

	aliceConn := dialWS(t, ctx, ts)
	bobConn := dialWS(t, ctx, ts)

	authenticateWS(t, ctx, aliceConn, aliceToken)
	authenticateWS(t, ctx, bobConn, bobToken)

	// Alice sees bob come online.
	status := readFrameOfType(t, ctx, aliceConn, "userStatus")
	if status["status"] != "online" {
		t.Fatalf("expected online announcement, got %+v", status)
	}

	if err := wsjson.Write(ctx, aliceConn, map[string]any{
		"type":    "message",
		"content": "hi",
		"roomId":  itoa(roomID),
	}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	msg := readFrameOfType(t, ctx, bobConn, "message")
	if msg["content"] != "hi" {
		t.Fatalf("unexpected message frame: %+v", msg)
	}
	sender, _ := msg["sender"].(map[string]any)
	if sender["username"] != "alice" {
		t.Fatalf("unexpected sender: %+v", msg)
	}

	// Exactly one copy: the next frame bob could get would be presence
	// traffic, not another message.
	shortCtx, shortCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer shortCancel()
	var extra map[string]any
	if err := wsjson.Read(shortCtx, bobConn, &extra); err == nil && extra["type"] == "message" {
		t.Fatalf("bob received a duplicate message: %+v", extra)
	}
}

func TestRoomMessageToNonexistentRoom(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := registerUser(t, ts, "alice")
	conn := dialWS(t, ctx, ts)
	authenticateWS(t, ctx, conn, token)

	if err := wsjson.Write(ctx, conn, map[string]any{
		"type":    "message",
		"content": "hello?",
		"roomId":  "999",
	}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	f := readFrameOfType(t, ctx, conn, "error")
	if data, _ := f["data"].(string); data != "room not found" {
		t.Fatalf("unexpected error frame: %+v", f)
	}
}

func TestDirectMessageEcho(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	aliceConn := dialWS(t, ctx, ts)
	bobConn := dialWS(t, ctx, ts)
	authenticateWS(t, ctx, aliceConn, aliceToken)
	authenticateWS(t, ctx, bobConn, bobToken)

	if err := wsjson.Write(ctx, aliceConn, map[string]any{
		"type":      "message",
		"content":   "direct hello",
		"recipient": "bob",
	}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	if msg := readFrameOfType(t, ctx, bobConn, "message"); msg["content"] != "direct hello" {
		t.Fatalf("unexpected message to bob: %+v", msg)
	}
	if echo := readFrameOfType(t, ctx, aliceConn, "message"); echo["content"] != "direct hello" {
		t.Fatalf("unexpected echo to alice: %+v", echo)
	}
}

func TestStatsOnlineAndNotifyEndpoints(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	aliceConn := dialWS(t, ctx, ts)
	authenticateWS(t, ctx, aliceConn, aliceToken)

	// Stats and online checks from another component (bob's token).
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/ws/stats", nil)
	req.Header.Set("Authorization", "Bearer "+bobToken)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("stats request: %v", err)
	}
	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()
	if stats.ConnectedUsers != 1 {
		t.Fatalf("expected 1 connected user, got %d", stats.ConnectedUsers)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/ws/online/alice", nil)
	req.Header.Set("Authorization", "Bearer "+bobToken)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("online request: %v", err)
	}
	var online OnlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&online); err != nil {
		t.Fatalf("decode online: %v", err)
	}
	resp.Body.Close()
	if !online.IsOnline {
		t.Fatal("alice should be reported online")
	}

	// Injection endpoint pushes a notification straight to alice's socket.
	nresp := postJSON(t, ts, "/api/ws/notify", bobToken, NotifyRequest{
		Username:         "alice",
		NotificationType: "report_resolved",
		Content:          "your report was handled",
	})
	var notify NotifyResponse
	if err := json.NewDecoder(nresp.Body).Decode(&notify); err != nil {
		t.Fatalf("decode notify: %v", err)
	}
	nresp.Body.Close()
	if !notify.Delivered {
		t.Fatal("expected delivery to connected user")
	}

	note := readFrameOfType(t, ctx, aliceConn, "notification")
	if note["notificationType"] != "report_resolved" {
		t.Fatalf("unexpected notification frame: %+v", note)
	}
}

func TestOnlineStatusPrivacyEndToEnd(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	// Bob hides his online status via the settings endpoint.
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings/online-status",
		bytes.NewReader([]byte(`{"showOnlineStatus":false}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bobToken)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("settings request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings update: status %d", resp.StatusCode)
	}

	aliceConn := dialWS(t, ctx, ts)
	bobConn := dialWS(t, ctx, ts)
	authenticateWS(t, ctx, aliceConn, aliceToken)
	authenticateWS(t, ctx, bobConn, bobToken)

	// Alice asks who is online; hidden bob must not appear.
	if err := wsjson.Write(ctx, aliceConn, map[string]any{"type": "status_request"}); err != nil {
		t.Fatalf("write status_request: %v", err)
	}
	snapshot := readFrameOfType(t, ctx, aliceConn, "status_response")
	if entries, _ := snapshot["data"].([]any); len(entries) != 0 {
		t.Fatalf("hidden user leaked into snapshot: %+v", snapshot)
	}
}
