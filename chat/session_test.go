package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeChat is a websocket server that hands each accepted conn to the test.
type fakeChat struct {
	*httptest.Server
	conns chan *websocket.Conn
}

func newFakeChat(t *testing.T) *fakeChat {
	t.Helper()
	f := &fakeChat{conns: make(chan *websocket.Conn, 1)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- c
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeChat) url() string { return "ws" + strings.TrimPrefix(f.URL, "http") }

func (f *fakeChat) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func readCall(t *testing.T, c *websocket.Conn) methodCall {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m methodCall
	if err := c.ReadJSON(&m); err != nil {
		t.Fatalf("read client frame: %v", err)
	}
	return m
}

func send(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

const welcome = `{"type":"event","event":"WelcomeEvent","data":{}}`

func TestSessionAuthenticatesOnWelcomeOnly(t *testing.T) {
	f := newFakeChat(t)
	events := make(chan Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Dial(ctx, f.url(), Handshake{ChannelID: 42, UserID: 7, AuthKey: "key"}, func(_ context.Context, ev Event) {
		events <- ev
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()
	srv := f.accept(t)

	send(t, srv, welcome)
	auth := readCall(t, srv)
	if auth.Type != "method" || auth.Method != "auth" {
		t.Fatalf("first frame = %+v, want auth method", auth)
	}
	args, _ := json.Marshal(auth.Arguments)
	if string(args) != `[42,7,"key"]` {
		t.Errorf("auth arguments = %s", args)
	}

	send(t, srv, `{"type":"reply","error":null,"id":`+jsonInt(auth.ID)+`,"data":{"authenticated":true}}`)
	send(t, srv, welcome)
	send(t, srv, `{"type":"event","event":"ChatMessage","data":{"user_name":"alice","message":{"message":[{"type":"text","text":"hi"}]}}}`)

	var kinds []Kind
	for len(kinds) < 4 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("events so far = %v", kinds)
		}
	}
	want := []Kind{KindWelcome, KindReply, KindWelcome, KindChatMessage}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event order = %v, want %v", kinds, want)
		}
	}
	if !s.Authenticated() {
		t.Error("Authenticated() = false after successful reply")
	}

	// A second Welcome must not trigger a second auth; the next frame is our msg.
	if err := s.Send(ctx, "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	msg := readCall(t, srv)
	if msg.Method != "msg" || len(msg.Arguments) != 1 || msg.Arguments[0] != "hello" {
		t.Errorf("frame after second welcome = %+v, want msg hello", msg)
	}
	if msg.ID <= auth.ID {
		t.Errorf("ids not increasing: auth %d msg %d", auth.ID, msg.ID)
	}
}

func TestSessionSilentUntilWelcome(t *testing.T) {
	f := newFakeChat(t)
	s, err := Dial(context.Background(), f.url(), Handshake{ChannelID: 1, UserID: 2, AuthKey: "k"}, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()
	srv := f.accept(t)
	_ = srv.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, b, err := srv.ReadMessage(); err == nil {
		t.Fatalf("client wrote %s before WelcomeEvent", b)
	}
}

func TestSessionSendAfterClose(t *testing.T) {
	f := newFakeChat(t)
	s, err := Dial(context.Background(), f.url(), Handshake{}, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	f.accept(t)
	if err := s.Close(); err != nil {
		t.Logf("close: %v", err)
	}
	<-s.Done()
	if err := s.Send(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() after close = %v, want ErrNotConnected", err)
	}
	if s.Err() != nil {
		t.Errorf("Err() after local close = %v, want nil", s.Err())
	}
	if s.Connected() {
		t.Error("Connected() = true after close")
	}
}

func TestSessionRemoteCloseReportsError(t *testing.T) {
	f := newFakeChat(t)
	s, err := Dial(context.Background(), f.url(), Handshake{}, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()
	srv := f.accept(t)
	_ = srv.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not notice remote close")
	}
	if s.Err() == nil {
		t.Error("Err() = nil after remote close")
	}
	if err := s.Send(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() = %v, want ErrNotConnected", err)
	}
}

func TestSessionContextCancelCloses(t *testing.T) {
	f := newFakeChat(t)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := Dial(ctx, f.url(), Handshake{}, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	f.accept(t)
	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session still open after cancel")
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), Handshake{}, nil); err == nil {
		t.Error("Dial() to non-websocket endpoint succeeded")
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
