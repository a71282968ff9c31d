// Package bot wires authentication, identity, chat and clip creation together
// and runs the process lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/ezclip/chat"
	"github.com/onnwee/ezclip/clips"
	"github.com/onnwee/ezclip/mixerapi"
	"github.com/onnwee/ezclip/oauth"
	"github.com/onnwee/ezclip/telemetry"
	"github.com/onnwee/ezclip/tokenstore"
)

// Identity is the authenticated account and its channel. Resolved once per
// chat start; read-only afterwards.
type Identity struct {
	UserID      int64
	ChannelName string
	ChannelID   int64
}

// TokenStore is the startup half of tokenstore.Store.
type TokenStore interface {
	Ensure() (existed bool, err error)
	Load() (tokenstore.TokenPair, bool)
}

// Authenticator is implemented by *auth.Session.
type Authenticator interface {
	RunDeviceCodeFlow(ctx context.Context) (tokenstore.TokenPair, error)
	Refresh(ctx context.Context) (tokenstore.TokenPair, error)
	Restore(tokenstore.TokenPair)
	AccessToken() string
}

// API is the REST surface the bot needs.
type API interface {
	clips.API
	CurrentUser(ctx context.Context) (*mixerapi.User, error)
	ChatEndpoints(ctx context.Context, channelID int64) (*mixerapi.ChatEndpoints, error)
}

// Conn is a live chat connection.
type Conn interface {
	Send(ctx context.Context, text string) error
	Done() <-chan struct{}
	Err() error
	Close() error
	Connected() bool
}

// DialFunc opens a chat connection.
type DialFunc func(ctx context.Context, endpoint string, hs chat.Handshake, h chat.Handler) (Conn, error)

// DialChat adapts chat.Dial to DialFunc.
func DialChat(ctx context.Context, endpoint string, hs chat.Handshake, h chat.Handler) (Conn, error) {
	s, err := chat.Dial(ctx, endpoint, hs, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Bot is the single-account orchestrator.
type Bot struct {
	Store TokenStore
	Auth  Authenticator
	API   API
	Dial  DialFunc

	WebBase         string
	DefaultDuration int
	MessageMode     string
	RefreshInterval time.Duration

	// Reconnect redials after the chat connection drops.
	Reconnect    bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	mu       sync.RWMutex
	identity Identity
	conn     Conn
	clips    *clips.Service
}

// Run authenticates, connects to chat and blocks until ctx is cancelled.
// Only authorization and the first identity/chat resolution are fatal.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Authenticate(ctx); err != nil {
		return err
	}
	conn, err := b.connect(ctx)
	if err != nil {
		return err
	}
	slog.Info("bot started", slog.String("channel", b.Identity().ChannelName))

	done := oauth.StartRefresher(ctx, b.RefreshInterval, func(ctx context.Context) error {
		_, err := b.Auth.Refresh(ctx)
		return err
	})
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		case <-conn.Done():
		}
		if err := conn.Err(); err != nil {
			slog.Error("chat connection lost", slog.Any("err", err))
		} else {
			slog.Warn("chat connection closed")
		}
		if !b.Reconnect {
			slog.Info("chat reconnect disabled; waiting for shutdown")
			<-ctx.Done()
			return nil
		}
		conn = b.reconnect(ctx)
		if conn == nil {
			return nil
		}
	}
}

// Authenticate follows the startup decision tree: no token file or no usable
// tokens run the device-code flow; stored tokens are refreshed once, falling
// back to the stale pair when that refresh fails.
func (b *Bot) Authenticate(ctx context.Context) error {
	existed, err := b.Store.Ensure()
	if err != nil {
		slog.Error("failed to create token file", slog.Any("err", err))
	}
	if !existed {
		slog.Info("no token file found; starting authorization")
		_, err := b.Auth.RunDeviceCodeFlow(ctx)
		return err
	}
	p, ok := b.Store.Load()
	if !ok {
		slog.Info("no usable tokens on file; starting authorization")
		_, err := b.Auth.RunDeviceCodeFlow(ctx)
		return err
	}
	b.Auth.Restore(p)
	if _, err := b.Auth.Refresh(ctx); err != nil {
		slog.Warn("startup refresh failed; continuing with stored tokens", slog.Any("err", err))
	}
	return nil
}

// ResolveIdentity looks up the token owner and its channel.
func (b *Bot) ResolveIdentity(ctx context.Context) (Identity, error) {
	u, err := b.API.CurrentUser(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return Identity{UserID: u.ID, ChannelName: u.Channel.Token, ChannelID: u.Channel.ID}, nil
}

// Identity returns the resolved identity.
func (b *Bot) Identity() Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity
}

// Authenticated reports whether an access token is held.
func (b *Bot) Authenticated() bool {
	return b.Auth != nil && b.Auth.AccessToken() != ""
}

// ChatConnected reports whether the current chat connection is open.
func (b *Bot) ChatConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil && b.conn.Connected()
}

// Send posts text on the current connection.
func (b *Bot) Send(ctx context.Context, text string) error {
	b.mu.RLock()
	c := b.conn
	b.mu.RUnlock()
	if c == nil {
		return chat.ErrNotConnected
	}
	return c.Send(ctx, text)
}

func (b *Bot) connect(ctx context.Context) (Conn, error) {
	id, err := b.ResolveIdentity(ctx)
	if err != nil {
		return nil, err
	}
	ce, err := b.API.ChatEndpoints(ctx, id.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve chat endpoint: %w", err)
	}

	// Events can arrive before dial returns; replies wait for this conn.
	r := &connReplier{ready: make(chan struct{})}
	b.mu.Lock()
	b.identity = id
	b.clips = &clips.Service{API: b.API, Replier: r, WebBase: b.WebBase, ChannelName: id.ChannelName}
	b.mu.Unlock()

	dial := b.Dial
	if dial == nil {
		dial = DialChat
	}
	hs := chat.Handshake{ChannelID: id.ChannelID, UserID: id.UserID, AuthKey: ce.AuthKey}
	conn, err := dial(ctx, ce.Endpoints[0], hs, b.HandleEvent)
	r.bind(conn)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return conn, nil
}

// connReplier sends on the connection dialed alongside it.
type connReplier struct {
	ready chan struct{}
	conn  Conn
}

func (r *connReplier) bind(c Conn) {
	r.conn = c
	close(r.ready)
}

func (r *connReplier) Send(ctx context.Context, text string) error {
	select {
	case <-r.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.conn == nil {
		return chat.ErrNotConnected
	}
	return r.conn.Send(ctx, text)
}

// reconnect retries connect with exponential backoff until it succeeds or ctx ends.
func (b *Bot) reconnect(ctx context.Context) Conn {
	delay := b.ReconnectMin
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := b.ReconnectMax
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	for {
		slog.Info("reconnecting to chat", slog.Duration("in", delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		conn, err := b.connect(ctx)
		if err == nil {
			return conn
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		slog.Warn("chat reconnect failed", slog.Any("err", err))
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// HandleEvent runs on the chat read goroutine. A !clip command is handled to
// completion before the next event is read.
func (b *Bot) HandleEvent(ctx context.Context, ev chat.Event) {
	if ev.Kind != chat.KindChatMessage || ev.Message == nil {
		return
	}
	cmd, ok := chat.ParseCommand(*ev.Message, chat.ParseOptions{DefaultDuration: b.DefaultDuration, Mode: b.MessageMode})
	if !ok {
		return
	}
	telemetry.Inc(telemetry.ClipCommands)
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	telemetry.LoggerWithCorr(ctx).Info("clip command",
		slog.String("user", ev.Message.UserName),
		slog.Int("duration", cmd.Duration),
		slog.String("title", cmd.Title))

	b.mu.RLock()
	svc := b.clips
	b.mu.RUnlock()
	if svc == nil {
		return
	}
	svc.Create(ctx, cmd.Duration, cmd.Title)
}
