package mixerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Shortcode check outcomes.
var (
	ErrShortcodePending = errors.New("shortcode not yet accepted")
	ErrShortcodeDenied  = errors.New("shortcode authorization denied")
	ErrShortcodeExpired = errors.New("shortcode expired")
)

// Shortcode is a pending device-code grant. Code is shown to the user, Handle is polled.
type Shortcode struct {
	Code      string `json:"code"`
	Handle    string `json:"handle"`
	ExpiresIn int    `json:"expires_in"`
}

type shortcodeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope"`
}

// RequestShortcode starts a shortcode grant.
func (c *Client) RequestShortcode(ctx context.Context, clientID, clientSecret, scope string) (*Shortcode, error) {
	if clientID == "" {
		return nil, errors.New("missing clientID for shortcode request")
	}
	var sc Shortcode
	in := shortcodeRequest{ClientID: clientID, ClientSecret: clientSecret, Scope: scope}
	if _, err := c.do(ctx, "shortcode request", http.MethodPost, "/oauth/shortcode", false, in, &sc); err != nil {
		return nil, err
	}
	if sc.Code == "" || sc.Handle == "" {
		return nil, errors.New("mixer shortcode request: empty code or handle")
	}
	return &sc, nil
}

// CheckShortcode polls a grant once. It returns the authorization code once the
// user accepted, or one of ErrShortcodePending, ErrShortcodeDenied, ErrShortcodeExpired.
func (c *Client) CheckShortcode(ctx context.Context, handle string) (string, error) {
	var body struct {
		Code string `json:"code"`
	}
	status, err := c.do(ctx, "shortcode check", http.MethodGet, "/oauth/shortcode/check/"+url.PathEscape(handle), false, nil, &body)
	switch {
	case status == http.StatusNoContent:
		return "", ErrShortcodePending
	case status == http.StatusForbidden:
		return "", ErrShortcodeDenied
	case status == http.StatusNotFound:
		return "", ErrShortcodeExpired
	case err != nil:
		return "", err
	case body.Code == "":
		return "", ErrShortcodePending
	}
	return body.Code, nil
}

// AcceptURL is the page where the user confirms a shortcode.
func AcceptURL(webBase, code string) string {
	return strings.TrimRight(webBase, "/") + "/go?code=" + url.QueryEscape(code)
}

// OAuthConfig returns the token endpoint configuration. Client credentials are
// sent in the form body, which is what the refresh contract expects.
func OAuthConfig(baseURL, clientID, clientSecret, scopes string) *oauth2.Config {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       strings.Fields(scopes),
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(baseURL, "/") + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ExchangeCode trades an accepted shortcode's authorization code for tokens.
func ExchangeCode(ctx context.Context, cfg *oauth2.Config, hc *http.Client, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	tok, err := cfg.Exchange(withHTTPClient(ctx, hc), code)
	if err != nil {
		return nil, fmt.Errorf("mixer auth code exchange failed: %w", err)
	}
	return tok, nil
}

// RefreshToken exchanges a refresh token for a new access/refresh pair.
func RefreshToken(ctx context.Context, cfg *oauth2.Config, hc *http.Client, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("missing refresh token")
	}
	tok, err := cfg.TokenSource(withHTTPClient(ctx, hc), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("mixer refresh failed: %w", err)
	}
	return tok, nil
}

// ExpiresInSeconds reports the token lifetime, preferring the server's expires_in.
func ExpiresInSeconds(tok *oauth2.Token) int {
	if tok.ExpiresIn > 0 {
		return int(tok.ExpiresIn)
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return int(time.Until(tok.Expiry).Round(time.Second) / time.Second)
}

func withHTTPClient(ctx context.Context, hc *http.Client) context.Context {
	if hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}
