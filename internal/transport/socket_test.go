package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blobparty/internal/pkg/errs"
)

// newFakeRealtimeServer stands up a websocket endpoint that answers every
// request frame and echoes match data frames back as pushes.
func newFakeRealtimeServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" || r.URL.Query().Get("token") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		reply := func(env envelope) {
			frame, err := json.Marshal(env)
			if err != nil {
				t.Errorf("fake server failed to marshal frame: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.Logf("fake server write failed: %v", err)
			}
		}

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var env envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				continue
			}

			switch {
			case env.MatchJoin != nil:
				if env.MatchJoin.MatchID == "locked" {
					reply(envelope{CID: env.CID, Error: &socketError{Code: 2104, Message: "match is full"}})
					continue
				}
				reply(envelope{CID: env.CID, Match: &matchInfo{
					MatchID: env.MatchJoin.MatchID,
					Presences: []UserPresence{
						{UserID: "u1", Username: "one"},
						{UserID: "u2", Username: "two"},
					},
				}})

			case env.ChannelJoin != nil:
				reply(envelope{CID: env.CID, Channel: &channelInfo{ChannelID: "chan-" + env.ChannelJoin.Target}})

			case env.MatchLeave != nil, env.ChannelLeave != nil:
				reply(envelope{CID: env.CID})

			case env.RPC != nil:
				reply(envelope{CID: env.CID, RPC: &rpcMessage{ID: env.RPC.ID, Payload: "world-1"}})

			case env.ChannelMessageSend != nil:
				reply(envelope{CID: env.CID})
				reply(envelope{ChannelMessage: &ChannelMessage{
					ChannelID: env.ChannelMessageSend.ChannelID,
					SenderID:  "server",
					Username:  "server",
					Content:   env.ChannelMessageSend.Content,
				}})

			case env.MatchData != nil:
				reply(envelope{MatchData: env.MatchData})
			}
		}
	}))

	t.Cleanup(server.Close)
	return server
}

func dialTestSocket(t *testing.T) *Socket {
	t.Helper()

	server := newFakeRealtimeServer(t)

	socket, customErr := DialSocket(context.Background(), server.URL, "tok")
	if customErr != nil {
		t.Fatalf("DialSocket failed: %v", customErr)
	}
	t.Cleanup(func() { socket.Close() })

	return socket
}

func TestSocketRequestResponse(t *testing.T) {
	socket := dialTestSocket(t)
	ctx := context.Background()

	payload, customErr := socket.RPC(ctx, "get_world_id")
	if customErr != nil {
		t.Fatalf("RPC failed: %v", customErr)
	}
	if payload != "world-1" {
		t.Fatalf("rpc payload = %q", payload)
	}

	presences, customErr := socket.JoinMatch(ctx, "world-1")
	if customErr != nil {
		t.Fatalf("JoinMatch failed: %v", customErr)
	}
	if len(presences) != 2 {
		t.Fatalf("presences = %d, want 2", len(presences))
	}

	channelID, customErr := socket.JoinChannel(ctx, "world")
	if customErr != nil {
		t.Fatalf("JoinChannel failed: %v", customErr)
	}
	if channelID != "chan-world" {
		t.Fatalf("channel id = %q", channelID)
	}

	if customErr := socket.LeaveChannel(ctx, channelID); customErr != nil {
		t.Fatalf("LeaveChannel failed: %v", customErr)
	}
	if customErr := socket.LeaveMatch(ctx, "world-1"); customErr != nil {
		t.Fatalf("LeaveMatch failed: %v", customErr)
	}
}

func TestSocketServerErrorFrame(t *testing.T) {
	socket := dialTestSocket(t)

	_, customErr := socket.JoinMatch(context.Background(), "locked")
	if customErr == nil || customErr.Code != 2104 {
		t.Fatalf("JoinMatch(locked) = %v, want the server error verbatim", customErr)
	}
}

func TestSocketPushDelivery(t *testing.T) {
	socket := dialTestSocket(t)

	matchData := make(chan MatchData, 1)
	chatMessages := make(chan ChannelMessage, 1)

	socket.SetHandlers(Handlers{
		MatchData:      func(md MatchData) { matchData <- md },
		ChannelMessage: func(cm ChannelMessage) { chatMessages <- cm },
	})

	// The fake server echoes match data back as a push.
	if customErr := socket.SendMatchData("world-1", 1, []byte(`{"id":"me","pos":{"x":1,"y":2}}`)); customErr != nil {
		t.Fatalf("SendMatchData failed: %v", customErr)
	}

	select {
	case md := <-matchData:
		if md.OpCode != 1 || md.MatchID != "world-1" {
			t.Fatalf("pushed frame = %+v", md)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the echoed match data push")
	}

	if customErr := socket.SendChannelMessage(context.Background(), "chan-world", []byte(`{"msg":"hi"}`)); customErr != nil {
		t.Fatalf("SendChannelMessage failed: %v", customErr)
	}

	select {
	case cm := <-chatMessages:
		if string(cm.Content) != `{"msg":"hi"}` {
			t.Fatalf("pushed chat content = %s", cm.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the chat push")
	}
}

func TestSocketClosedHandler(t *testing.T) {
	server := newFakeRealtimeServer(t)

	socket, customErr := DialSocket(context.Background(), server.URL, "tok")
	if customErr != nil {
		t.Fatalf("DialSocket failed: %v", customErr)
	}

	closed := make(chan struct{})
	socket.SetHandlers(Handlers{
		Closed: func(error) { close(closed) },
	})

	server.CloseClientConnections()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Closed handler was not invoked after the server dropped the connection")
	}

	// Requests after shutdown fail cleanly.
	if _, customErr := socket.RPC(context.Background(), "get_world_id"); customErr == nil {
		t.Fatal("RPC succeeded on a closed socket")
	}
}

func TestCloseSendsCloseFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closeCodes := make(chan int, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					closeCodes <- closeErr.Code
				}
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	socket, customErr := DialSocket(context.Background(), server.URL, "tok")
	if customErr != nil {
		t.Fatalf("DialSocket failed: %v", customErr)
	}

	// Keep data frames flowing while the close lands; the write loop is the
	// only goroutine touching the connection, so this must not race.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if customErr := socket.SendMatchData("world-1", 1, []byte(`{"id":"me"}`)); customErr != nil {
				return
			}
		}
	}()

	socket.Close()
	<-done

	select {
	case code := <-closeCodes:
		if code != websocket.CloseNormalClosure {
			t.Fatalf("close code = %d, want %d", code, websocket.CloseNormalClosure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the close frame")
	}
}

func TestSocketCallContextCancellation(t *testing.T) {
	upgrader := websocket.Upgrader{}

	// A server that never answers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	socket, customErr := DialSocket(context.Background(), server.URL, "tok")
	if customErr != nil {
		t.Fatalf("DialSocket failed: %v", customErr)
	}
	t.Cleanup(func() { socket.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, customErr = socket.RPC(ctx, "get_world_id")
	if customErr == nil || customErr.Code != errs.ErrTransportUnavailable {
		t.Fatalf("RPC with expired context = %v, want ErrTransportUnavailable", customErr)
	}
}

func TestDialSocketRejectedUpgrade(t *testing.T) {
	server := newFakeRealtimeServer(t)

	_, customErr := DialSocket(context.Background(), server.URL, "")
	if customErr == nil || customErr.Code != errs.ErrTransportUnavailable {
		t.Fatalf("DialSocket without token = %v, want ErrTransportUnavailable", customErr)
	}
}
