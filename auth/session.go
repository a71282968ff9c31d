// Package auth owns the bot's OAuth session: the shortcode (device-code)
// authorization handshake and the refresh-token exchange. The current token
// pair lives here and is mirrored to the token store on every change.
//
// States:
//
//	Unauthenticated -> AwaitingUserAcceptance -> Authenticated
//	Authenticated   -> RefreshFailed (tokens kept) -> Authenticated (next good refresh)
//
// An expired shortcode restarts the handshake without limit; a human is on the
// other side, so there is no backoff. Any other handshake error is returned as
// *AuthError.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/ezclip/mixerapi"
	"github.com/onnwee/ezclip/telemetry"
	"github.com/onnwee/ezclip/tokenstore"
)

// Sentinel handshake outcomes.
var (
	ErrShortCodeExpired = mixerapi.ErrShortcodeExpired
	ErrAccessDenied     = mixerapi.ErrShortcodeDenied
)

// State of the session.
type State int

const (
	Unauthenticated State = iota
	AwaitingUserAcceptance
	Authenticated
	RefreshFailed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingUserAcceptance:
		return "awaiting_user_acceptance"
	case Authenticated:
		return "authenticated"
	case RefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// AuthError is a fatal handshake failure.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return "authorization failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// RefreshError is a failed refresh; the previous tokens stay in place.
type RefreshError struct{ Err error }

func (e *RefreshError) Error() string { return "token refresh failed: " + e.Err.Error() }
func (e *RefreshError) Unwrap() error { return e.Err }

// ShortcodeAPI is the handshake half of mixerapi.Client.
type ShortcodeAPI interface {
	RequestShortcode(ctx context.Context, clientID, clientSecret, scope string) (*mixerapi.Shortcode, error)
	CheckShortcode(ctx context.Context, handle string) (string, error)
}

// Persister stores the token pair. Failures are logged, never fatal.
type Persister interface {
	Save(tokenstore.TokenPair) error
}

// Session holds the current token pair.
type Session struct {
	API        ShortcodeAPI
	OAuth      *oauth2.Config
	HTTPClient *http.Client
	Store      Persister
	WebBase    string

	// PollInterval between shortcode checks; 2s when zero.
	PollInterval time.Duration
	// MaxFlowDuration bounds RunDeviceCodeFlow in wall-clock time; 0 means unbounded.
	MaxFlowDuration time.Duration
	// OpenBrowser is tried with the acceptance URL; nil skips it.
	OpenBrowser func(url string) error
	// Out receives the user prompt; os.Stdout when nil.
	Out io.Writer

	mu     sync.RWMutex
	tokens tokenstore.TokenPair
	state  State
}

// Restore seeds the session with tokens loaded from the store.
func (s *Session) Restore(p tokenstore.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = p
	if p.AccessToken != "" {
		s.state = Authenticated
	}
}

// AccessToken returns the current bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// Tokens returns a copy of the current pair.
func (s *Session) Tokens() tokenstore.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) update(p tokenstore.TokenPair) {
	s.mu.Lock()
	s.tokens = p
	s.state = Authenticated
	s.mu.Unlock()
	if s.Store == nil {
		return
	}
	if err := s.Store.Save(p); err != nil {
		slog.Error("failed to write new tokens to file", slog.Any("err", err))
	}
}

// RunDeviceCodeFlow performs the shortcode handshake until the user accepts.
func (s *Session) RunDeviceCodeFlow(ctx context.Context) (tokenstore.TokenPair, error) {
	if s.MaxFlowDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.MaxFlowDuration)
		defer cancel()
	}
	for attempt := 1; ; attempt++ {
		code, err := s.awaitAcceptance(ctx)
		if errors.Is(err, ErrShortCodeExpired) {
			slog.Info("shortcode expired before acceptance; requesting a new one", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.setState(Unauthenticated)
			return tokenstore.TokenPair{}, &AuthError{Err: err}
		}

		tok, err := mixerapi.ExchangeCode(ctx, s.OAuth, s.HTTPClient, code)
		if err != nil {
			s.setState(Unauthenticated)
			return tokenstore.TokenPair{}, &AuthError{Err: err}
		}
		p := tokenstore.TokenPair{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresIn:    mixerapi.ExpiresInSeconds(tok),
		}
		if p.AccessToken == "" {
			s.setState(Unauthenticated)
			return tokenstore.TokenPair{}, &AuthError{Err: errors.New("empty access_token in token response")}
		}
		s.update(p)
		slog.Info("authorization complete", slog.Int("attempts", attempt))
		return p, nil
	}
}

// awaitAcceptance requests one shortcode and polls it to a terminal outcome.
func (s *Session) awaitAcceptance(ctx context.Context) (string, error) {
	clientID, secret, scope := s.OAuth.ClientID, s.OAuth.ClientSecret, strings.Join(s.OAuth.Scopes, " ")
	sc, err := s.API.RequestShortcode(ctx, clientID, secret, scope)
	if err != nil {
		return "", err
	}
	telemetry.Inc(telemetry.ShortcodeAttempts)
	s.setState(AwaitingUserAcceptance)

	acceptURL := mixerapi.AcceptURL(s.WebBase, sc.Code)
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Please accept the authentication window that should be open in your browser.\nCode: %s\nURL:  %s\n", sc.Code, acceptURL)
	if s.OpenBrowser != nil {
		if err := s.OpenBrowser(acceptURL); err != nil {
			slog.Warn("could not open browser", slog.Any("err", err))
		}
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var deadline time.Time
	if sc.ExpiresIn > 0 {
		deadline = time.Now().Add(time.Duration(sc.ExpiresIn) * time.Second)
	}
	for {
		code, err := s.API.CheckShortcode(ctx, sc.Handle)
		switch {
		case err == nil:
			return code, nil
		case !errors.Is(err, mixerapi.ErrShortcodePending):
			return "", err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return "", ErrShortCodeExpired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Refresh exchanges the refresh token for a new pair. On failure the state
// becomes RefreshFailed, the old pair is returned unchanged along with a *RefreshError.
func (s *Session) Refresh(ctx context.Context) (tokenstore.TokenPair, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAuthRefresh)
	old := s.Tokens()
	tok, err := mixerapi.RefreshToken(ctx, s.OAuth, s.HTTPClient, old.RefreshToken)
	telemetry.RecordRefresh(err)
	if err != nil {
		s.setState(RefreshFailed)
		rerr := &RefreshError{Err: err}
		telemetry.EndSpan(span, rerr)
		return old, rerr
	}
	p := tokenstore.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    mixerapi.ExpiresInSeconds(tok),
	}
	if p.RefreshToken == "" {
		p.RefreshToken = old.RefreshToken
	}
	s.update(p)
	telemetry.EndSpan(span, nil)
	slog.Info("tokens refreshed", slog.Int("expires_in", p.ExpiresIn))
	return p, nil
}
