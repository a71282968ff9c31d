package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/ezclip/telemetry"
)

// ErrNotConnected is returned by Send once the connection is closed.
var ErrNotConnected = errors.New("chat: not connected")

const writeTimeout = 10 * time.Second

// Handshake carries the auth method arguments.
type Handshake struct {
	ChannelID int64
	UserID    int64
	AuthKey   string
}

// Handler receives every decoded event on the read goroutine.
type Handler func(ctx context.Context, ev Event)

// Session is one live chat connection.
type Session struct {
	conn    *websocket.Conn
	hs      Handshake
	handler Handler

	wmu      sync.Mutex
	seq      atomic.Int64
	authID   atomic.Int64
	authSent atomic.Bool
	authed   atomic.Bool
	closed   atomic.Bool

	done    chan struct{}
	errMu   sync.Mutex
	err     error
	closeMu sync.Once
}

// Dialer is used by Dial.
var Dialer = websocket.DefaultDialer

// Dial connects to endpoint and starts the read loop. The connection closes
// when ctx is cancelled or Close is called.
func Dial(ctx context.Context, endpoint string, hs Handshake, h Handler) (*Session, error) {
	conn, resp, err := Dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial chat %s: %w", endpoint, err)
	}
	if h == nil {
		h = func(context.Context, Event) {}
	}
	s := &Session{conn: conn, hs: hs, handler: h, done: make(chan struct{})}
	s.authID.Store(-1)
	telemetry.SetChatConnected(true)
	slog.Info("chat connected", slog.String("endpoint", endpoint))

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	go s.readLoop(ctx)
	return s, nil
}

// Done is closed when the connection ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the connection ended; nil for a local Close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Connected reports whether the connection is still open.
func (s *Session) Connected() bool { return !s.closed.Load() }

// Authenticated reports whether the server accepted our auth call.
func (s *Session) Authenticated() bool { return s.authed.Load() }

// Close shuts the connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeMu.Do(func() {
		s.closed.Store(true)
		s.wmu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.wmu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Send posts text to the channel.
func (s *Session) Send(ctx context.Context, text string) error {
	_, err := s.call(ctx, "msg", text)
	return err
}

func (s *Session) call(ctx context.Context, method string, args ...any) (int64, error) {
	if s.closed.Load() {
		return 0, ErrNotConnected
	}
	id := s.seq.Add(1) - 1
	b, err := json.Marshal(methodCall{Type: "method", Method: method, Arguments: args, ID: id})
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", method, err)
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed.Load() {
		return 0, ErrNotConnected
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return 0, fmt.Errorf("write %s: %w", method, err)
	}
	return id, nil
}

func (s *Session) authenticate(ctx context.Context) {
	if !s.authSent.CompareAndSwap(false, true) {
		slog.Warn("ignoring repeated WelcomeEvent")
		return
	}
	id, err := s.call(ctx, "auth", s.hs.ChannelID, s.hs.UserID, s.hs.AuthKey)
	if err != nil {
		slog.Error("chat auth send failed", slog.Any("err", err))
		return
	}
	s.authID.Store(id)
}

func (s *Session) readLoop(ctx context.Context) {
	defer func() {
		s.closed.Store(true)
		_ = s.conn.Close()
		telemetry.SetChatConnected(false)
		close(s.done)
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closedLocally() {
				s.errMu.Lock()
				s.err = err
				s.errMu.Unlock()
				slog.Warn("chat connection closed", slog.Any("err", err))
			}
			return
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			slog.Debug("skipping undecodable chat frame", slog.Any("err", err))
			continue
		}
		switch ev.Kind {
		case KindWelcome:
			s.authenticate(ctx)
		case KindReply:
			s.handleReply(ev.Reply)
		case KindChatMessage:
			telemetry.Inc(telemetry.ChatMessages)
		}
		s.handler(ctx, ev)
	}
}

func (s *Session) handleReply(r *Reply) {
	if int64(r.ID) != s.authID.Load() {
		if r.Failed() {
			slog.Warn("chat method failed", slog.Int("id", r.ID), slog.String("error", string(r.Error)))
		}
		return
	}
	if r.Failed() {
		slog.Error("chat auth rejected", slog.String("error", string(r.Error)))
		return
	}
	var d struct {
		Authenticated bool `json:"authenticated"`
	}
	_ = json.Unmarshal(r.Data, &d)
	s.authed.Store(d.Authenticated)
	slog.Info("chat authenticated", slog.Bool("authenticated", d.Authenticated))
}

func (s *Session) closedLocally() bool {
	return s.closed.Load()
}
