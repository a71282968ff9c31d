// Package testutil provides an httptest-backed stand-in for the Mixer REST API.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// APIPrefix is the path prefix of every mocked endpoint.
const APIPrefix = "/api/v1"

// MockMixerServer creates a test server that mocks Mixer REST responses.
type MockMixerServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	calls    map[string]int
	requests []Recorded
}

// Recorded is a captured request.
type Recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewMockMixerServer creates a new mock Mixer API server.
func NewMockMixerServer(t *testing.T) *MockMixerServer {
	t.Helper()
	m := &MockMixerServer{
		Handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		m.mu.Lock()
		m.calls[key]++
		m.requests = append(m.requests, Recorded{Method: r.Method, Path: key, Header: r.Header.Clone(), Body: body})
		handler, ok := m.Handlers[key]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// BaseURL is the REST root to hand to clients.
func (m *MockMixerServer) BaseURL() string { return m.URL + APIPrefix }

// Handle registers handler for an API path such as "/users/current".
func (m *MockMixerServer) Handle(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[APIPrefix+path] = handler
}

// Calls returns how many requests hit an API path.
func (m *MockMixerServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[APIPrefix+path]
}

// LastRequest returns the most recent request for an API path.
func (m *MockMixerServer) LastRequest(path string) (Recorded, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].Path == APIPrefix+path {
			return m.requests[i], true
		}
	}
	return Recorded{}, false
}

// MockCurrentUser adds a handler for /users/current.
func (m *MockMixerServer) MockCurrentUser(userID int64, channelName string, channelID int64) {
	m.Handle("/users/current", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"id":      userID,
			"channel": map[string]any{"id": channelID, "token": channelName},
		})
	})
}

// MockChatEndpoints adds a handler for /chats/{channelID}.
func (m *MockMixerServer) MockChatEndpoints(channelID string, endpoints []string, authKey string) {
	m.Handle("/chats/"+channelID, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints, "authkey": authKey})
	})
}

// MockBroadcast adds a handler for /broadcasts/current returning id.
func (m *MockMixerServer) MockBroadcast(id string) {
	m.Handle("/broadcasts/current", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"id": id, "online": true})
	})
}

// MockNoBroadcast makes /broadcasts/current answer 404.
func (m *MockMixerServer) MockNoBroadcast() {
	m.Handle("/broadcasts/current", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found"})
	})
}

// MockClipResponses answers successive /clips/create calls with the given
// status codes; 200 replies carry shareableIds. The last entry repeats.
func (m *MockMixerServer) MockClipResponses(statuses []int, shareableIDs []string) {
	var mu sync.Mutex
	n := 0
	m.Handle("/clips/create", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := n
		n++
		mu.Unlock()
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if statuses[i] != http.StatusOK {
			WriteJSON(w, statuses[i], map[string]any{"error": "clip failed"})
			return
		}
		id := ""
		if i < len(shareableIDs) {
			id = shareableIDs[i]
		}
		WriteJSON(w, http.StatusOK, map[string]any{"shareableId": id})
	})
}

// MockOAuthTokenResponse adds a handler for /oauth/token.
func (m *MockMixerServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handle("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "Bearer",
		})
	})
}

// MockOAuthTokenError makes /oauth/token fail with status.
func (m *MockMixerServer) MockOAuthTokenError(status int) {
	m.Handle("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, map[string]any{"error": "invalid_grant"})
	})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
