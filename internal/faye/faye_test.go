package faye

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a tiny Bayeux endpoint: it answers handshake, subscribe and
// disconnect, holds connect requests, and can push data frames.
type fakeServer struct {
	t      *testing.T
	srv    *httptest.Server
	refuse map[string]bool

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Message
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{t: t, refuse: map[string]bool{}}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faye" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		go f.serve(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msgs, err := decodeFrame(frame)
		if err != nil {
			return
		}
		for _, m := range msgs {
			f.mu.Lock()
			f.received = append(f.received, m)
			f.mu.Unlock()

			reply := Message{Channel: m.Channel, ID: m.ID, Successful: true}
			switch m.Channel {
			case ChannelHandshake:
				reply.ClientID = "client-1"
			case ChannelSubscribe:
				reply.Subscription = m.Subscription
				if f.refuse[m.Subscription] {
					reply.Successful = false
					reply.Error = "403::forbidden"
				}
			case ChannelConnect:
				continue
			}
			f.write(conn, reply)
		}
	}
}

func (f *fakeServer) write(conn *websocket.Conn, m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := json.Marshal([]Message{m})
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (f *fakeServer) publish(channel string, msg models.Message) {
	data, _ := json.Marshal(msg)
	f.mu.Lock()
	conns := append([]*websocket.Conn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		f.write(c, Message{Channel: channel, Data: data})
	}
}

func (f *fakeServer) frames(channel string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.received {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeServer) options() Options {
	return Options{ServiceURL: f.srv.URL, AppToken: "app-tok", AppUserID: "u1"}
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("https://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/faye", u)

	u, err = WebsocketURL("http://127.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9000/faye", u)

	_, err = WebsocketURL("ftp://x")
	assert.Error(t, err)
}

func TestInit_SubscribesAndForwardsToBus(t *testing.T) {
	f := newFakeServer(t)
	bus := vent.New()

	got := make(chan models.Message, 4)
	bus.Subscribe(vent.ReceiveMessage, func(p any) { got <- p.(models.Message) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Init(ctx, f.options(), "c1", bus)
	require.NoError(t, err)
	defer client.Disconnect()
	assert.Equal(t, "client-1", client.ClientID())

	f.publish("/conversations/c1", models.Message{ID: "m1", AuthorID: "agent", Text: "hello", Received: 10.2})
	f.publish("/conversations/other", models.Message{ID: "m2"})

	select {
	case m := <-got:
		assert.Equal(t, "m1", m.ID)
		assert.Equal(t, "hello", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message not forwarded")
	}
	select {
	case m := <-got:
		t.Fatalf("unexpected message %s", m.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInit_AuthOnlyOnSubscribeFrames(t *testing.T) {
	f := newFakeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Init(ctx, f.options(), "c1", vent.New())
	require.NoError(t, err)
	client.Disconnect()

	subs := f.frames(ChannelSubscribe)
	require.Len(t, subs, 1)
	assert.Equal(t, "app-tok", subs[0].AppToken)
	assert.Equal(t, "u1", subs[0].AppUserID)
	assert.Equal(t, "/conversations/c1", subs[0].Subscription)

	hs := f.frames(ChannelHandshake)
	require.Len(t, hs, 1)
	assert.Empty(t, hs[0].AppToken)
	assert.Empty(t, hs[0].AppUserID)

	assert.Eventually(t, func() bool { return len(f.frames(ChannelDisconnect)) == 1 }, time.Second, 10*time.Millisecond)
}

func TestInit_SubscribeRefused(t *testing.T) {
	f := newFakeServer(t)
	f.refuse["/conversations/c1"] = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Init(ctx, f.options(), "c1", vent.New())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "403::forbidden")
}

func TestInit_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Init(ctx, Options{ServiceURL: "http://127.0.0.1:1"}, "c1", vent.New())
	assert.Error(t, err)
}

func TestClient_DisconnectIsIdempotent(t *testing.T) {
	f := newFakeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Init(ctx, f.options(), "c1", vent.New())
	require.NoError(t, err)

	client.Disconnect()
	client.Disconnect()

	select {
	case <-client.Done():
	default:
		t.Fatal("client not closed")
	}
}
