package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/azerweys/panel/backend/internal/model/chat"
	"github.com/azerweys/panel/backend/internal/model/user"
	chatService "github.com/azerweys/panel/backend/internal/service/chat"
	"github.com/azerweys/panel/backend/internal/storage"
)

type cookieResolver map[string]user.Identity

func (c cookieResolver) Resolve(r *http.Request) (user.Identity, bool) {
	cookie, err := r.Cookie("sid")
	if err != nil {
		return user.Identity{}, false
	}
	id, ok := c[cookie.Value]
	return id, ok
}

var sessions = cookieResolver{
	"alice-sid": {Username: "alice", DisplayName: "Alice", Role: user.RoleOwner},
	"bob-sid":   {Username: "bob", DisplayName: "Bob", Role: "agent"},
}

type testServer struct {
	url     string
	chatSvc *chatService.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	messages, err := storage.NewMessageLog(db)
	require.NoError(t, err)

	chatSvc := chatService.NewService(messages, chatService.NewRegistry())
	router := chi.NewRouter()
	New(chatSvc, sessions, Options{WriteTimeout: time.Second}).RegisterRoutes(router)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		chatSvc.Shutdown()
		_ = messages.Close()
		_ = db.Close()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", chatSvc: chatSvc}
}

func (s *testServer) dial(t *testing.T, sid string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", "sid="+sid)
	conn, resp, err := websocket.DefaultDialer.Dial(s.url, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readHistory(t *testing.T, conn *websocket.Conn) []chat.Message {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, chat.FrameHistory, f.Type)
	var history []chat.Message
	require.NoError(t, json.Unmarshal(f.Data, &history))
	return history
}

func readMessage(t *testing.T, conn *websocket.Conn) chat.Message {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, chat.FrameMessage, f.Type)
	var msg chat.Message
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	return msg
}

func TestUpgrade_WithoutSessionIsDroppedWithoutResponse(t *testing.T) {
	srv := newTestServer(t)

	for _, sid := range []string{"", "forged"} {
		header := http.Header{}
		if sid != "" {
			header.Set("Cookie", "sid="+sid)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(srv.url, header)
		require.Error(t, err)
		require.Nil(t, conn)
		require.Nil(t, resp, "no HTTP response is written")
	}
	require.Zero(t, srv.chatSvc.Registry().Len())
}

func TestChat_BroadcastReachesEveryoneIncludingSender(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	alice := srv.dial(t, "alice-sid")
	req.Empty(readHistory(t, alice))
	bob := srv.dial(t, "bob-sid")
	req.Empty(readHistory(t, bob))

	req.NoError(alice.WriteJSON(map[string]string{"text": "hi"}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readMessage(t, conn)
		req.Equal("Alice", msg.Sender)
		req.Equal("owner", msg.Role)
		req.Equal("hi", msg.Text)
		_, err := time.Parse(time.RFC3339, msg.Timestamp)
		req.NoError(err)
	}

	late := srv.dial(t, "bob-sid")
	history := readHistory(t, late)
	req.Len(history, 1)
	req.Equal("hi", history[0].Text)
}

func TestChat_MalformedFrameIsIgnored(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := srv.dial(t, "alice-sid")
	readHistory(t, alice)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"foo":"bar"}`)))
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	req.NoError(alice.WriteJSON(map[string]string{"text": "still here"}))

	req.Equal("still here", readMessage(t, alice).Text)
}

func TestChat_DisconnectUnregisters(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "alice-sid")
	readHistory(t, alice)
	bob := srv.dial(t, "bob-sid")
	readHistory(t, bob)
	require.Equal(t, 2, srv.chatSvc.Registry().Len())

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return srv.chatSvc.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]string{"text": "anyone?"}))
	require.Equal(t, "anyone?", readMessage(t, alice).Text)
}

func TestChat_ShutdownClosesClients(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "alice-sid")
	readHistory(t, alice)

	srv.chatSvc.Shutdown()

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := alice.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Zero(t, srv.chatSvc.Registry().Len())
}
