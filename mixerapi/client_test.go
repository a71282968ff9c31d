package mixerapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/onnwee/ezclip/testutil"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newClient(srv *testutil.MockMixerServer) *Client {
	return &Client{BaseURL: srv.BaseURL(), Tokens: staticToken("tok-1")}
}

func TestCurrentUser(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.MockCurrentUser(7, "streamer", 42)
	u, err := newClient(srv).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if u.ID != 7 || u.Channel.ID != 42 || u.Channel.Token != "streamer" {
		t.Errorf("user = %+v", u)
	}
	req, _ := srv.LastRequest("/users/current")
	if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestCurrentUserIncomplete(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.Handle("/users/current", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"id": 7})
	})
	if _, err := newClient(srv).CurrentUser(context.Background()); err == nil {
		t.Error("expected error for user without channel")
	}
}

func TestChatEndpoints(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.MockChatEndpoints("42", []string{"wss://chat1", "wss://chat2"}, "ak")
	ce, err := newClient(srv).ChatEndpoints(context.Background(), 42)
	if err != nil {
		t.Fatalf("ChatEndpoints() error = %v", err)
	}
	if len(ce.Endpoints) != 2 || ce.Endpoints[0] != "wss://chat1" || ce.AuthKey != "ak" {
		t.Errorf("endpoints = %+v", ce)
	}

	srv.MockChatEndpoints("43", nil, "ak")
	if _, err := newClient(srv).ChatEndpoints(context.Background(), 43); err == nil {
		t.Error("expected error for empty endpoint list")
	}
}

func TestCurrentBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*testutil.MockMixerServer)
		wantID  string
		wantErr error
		status  int
	}{
		{"live", func(m *testutil.MockMixerServer) { m.MockBroadcast("b-1") }, "b-1", nil, 0},
		{"not live", func(m *testutil.MockMixerServer) { m.MockNoBroadcast() }, "", ErrNoActiveBroadcast, 0},
		{"empty id", func(m *testutil.MockMixerServer) { m.MockBroadcast("") }, "", ErrNoActiveBroadcast, 0},
		{"server error", func(m *testutil.MockMixerServer) {
			m.Handle("/broadcasts/current", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})
		}, "", nil, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMockMixerServer(t)
			tt.setup(srv)
			b, err := newClient(srv).CurrentBroadcast(context.Background())
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			case tt.status != 0:
				if !IsStatus(err, tt.status) {
					t.Errorf("error = %v, want status %d", err, tt.status)
				}
			default:
				if err != nil || b.ID != tt.wantID {
					t.Errorf("broadcast = %+v, err = %v", b, err)
				}
			}
		})
	}
}

func TestCreateClip(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.MockClipResponses([]int{http.StatusOK}, []string{"abc"})
	clip, err := newClient(srv).CreateClip(context.Background(), ClipRequest{
		BroadcastID: "b-1", HighlightTitle: "big play", ClipDurationInSeconds: 45,
	})
	if err != nil {
		t.Fatalf("CreateClip() error = %v", err)
	}
	if clip.ShareableID != "abc" {
		t.Errorf("shareableId = %q", clip.ShareableID)
	}

	req, _ := srv.LastRequest("/clips/create")
	if req.Method != http.MethodPost || req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("request = %s %q", req.Method, req.Header.Get("Content-Type"))
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["broadcastId"] != "b-1" || body["highlightTitle"] != "big play" || body["clipDurationInSeconds"] != float64(45) {
		t.Errorf("body = %v", body)
	}
}

func TestCreateClipEmptyTitleIsSent(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.MockClipResponses([]int{http.StatusOK}, []string{"abc"})
	if _, err := newClient(srv).CreateClip(context.Background(), ClipRequest{BroadcastID: "b", ClipDurationInSeconds: 1}); err != nil {
		t.Fatal(err)
	}
	req, _ := srv.LastRequest("/clips/create")
	if !strings.Contains(string(req.Body), `"highlightTitle":""`) {
		t.Errorf("body = %s, want explicit empty title", req.Body)
	}
}

func TestCreateClipFailures(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.MockClipResponses([]int{http.StatusBadRequest, http.StatusOK}, []string{"", ""})
	c := newClient(srv)
	_, err := c.CreateClip(context.Background(), ClipRequest{BroadcastID: "b"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest || !strings.Contains(se.Body, "clip failed") {
		t.Errorf("error = %v, want 400 StatusError with body", err)
	}
	if _, err := c.CreateClip(context.Background(), ClipRequest{BroadcastID: "b"}); err == nil {
		t.Error("expected error for empty shareableId")
	}
}

func TestShortcodeRequestAndCheck(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.Handle("/oauth/shortcode", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"code": "ABC123", "handle": "hdl", "expires_in": 120})
	})
	c := &Client{BaseURL: srv.BaseURL()}
	sc, err := c.RequestShortcode(context.Background(), "client-1", "", "chat:chat chat:connect")
	if err != nil {
		t.Fatalf("RequestShortcode() error = %v", err)
	}
	if sc.Code != "ABC123" || sc.Handle != "hdl" || sc.ExpiresIn != 120 {
		t.Errorf("shortcode = %+v", sc)
	}
	req, _ := srv.LastRequest("/oauth/shortcode")
	var body map[string]any
	_ = json.Unmarshal(req.Body, &body)
	if body["client_id"] != "client-1" || body["scope"] != "chat:chat chat:connect" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["client_secret"]; ok {
		t.Error("empty client_secret should be omitted")
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("shortcode request must not carry a bearer token")
	}

	if _, err := c.RequestShortcode(context.Background(), "", "", "x"); err == nil {
		t.Error("expected error without client id")
	}
}

func TestCheckShortcodeOutcomes(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
		want    string
	}{
		{http.StatusOK, nil, "authcode"},
		{http.StatusNoContent, ErrShortcodePending, ""},
		{http.StatusForbidden, ErrShortcodeDenied, ""},
		{http.StatusNotFound, ErrShortcodeExpired, ""},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := testutil.NewMockMixerServer(t)
			srv.Handle("/oauth/shortcode/check/hdl", func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusOK {
					testutil.WriteJSON(w, http.StatusOK, map[string]any{"code": "authcode"})
					return
				}
				w.WriteHeader(tt.status)
			})
			code, err := (&Client{BaseURL: srv.BaseURL()}).CheckShortcode(context.Background(), "hdl")
			if !errors.Is(err, tt.wantErr) || code != tt.want {
				t.Errorf("CheckShortcode() = %q, %v; want %q, %v", code, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestCheckShortcodeUnexpectedStatus(t *testing.T) {
	srv := testutil.NewMockMixerServer(t)
	srv.Handle("/oauth/shortcode/check/hdl", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := (&Client{BaseURL: srv.BaseURL()}).CheckShortcode(context.Background(), "hdl")
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("error = %v, want 500 StatusError", err)
	}
}

func TestAcceptURL(t *testing.T) {
	if got := AcceptURL("https://mixer.com/", "AB CD"); got != "https://mixer.com/go?code=AB+CD" {
		t.Errorf("AcceptURL() = %q", got)
	}
}

func TestOAuthConfig(t *testing.T) {
	cfg := OAuthConfig("", "id", "secret", "chat:chat  chat:connect")
	if cfg.Endpoint.TokenURL != DefaultBaseURL+"/oauth/token" {
		t.Errorf("TokenURL = %q", cfg.Endpoint.TokenURL)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[1] != "chat:connect" {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
}

func TestRefreshTokenRequiresToken(t *testing.T) {
	if _, err := RefreshToken(context.Background(), OAuthConfig("", "id", "", ""), nil, ""); err == nil {
		t.Error("expected error for empty refresh token")
	}
	if _, err := ExchangeCode(context.Background(), OAuthConfig("", "id", "", ""), nil, ""); err == nil {
		t.Error("expected error for empty code")
	}
}
