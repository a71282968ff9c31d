package mixerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrNoActiveBroadcast means the channel is not live.
var ErrNoActiveBroadcast = errors.New("no active broadcast")

// User is the authenticated account together with its channel.
type User struct {
	ID      int64 `json:"id"`
	Channel struct {
		ID    int64  `json:"id"`
		Token string `json:"token"`
	} `json:"channel"`
}

// ChatEndpoints is the chat connection info for a channel. AuthKey is single use.
type ChatEndpoints struct {
	Endpoints []string `json:"endpoints"`
	AuthKey   string   `json:"authkey"`
}

// Broadcast is the live stream session clips are cut from.
type Broadcast struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}

// CurrentUser resolves the token owner.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if _, err := c.do(ctx, "current user", http.MethodGet, "/users/current", true, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 || u.Channel.ID == 0 {
		return nil, fmt.Errorf("mixer current user: incomplete response")
	}
	return &u, nil
}

// ChatEndpoints returns the websocket endpoints and auth key for channelID.
func (c *Client) ChatEndpoints(ctx context.Context, channelID int64) (*ChatEndpoints, error) {
	var ce ChatEndpoints
	if _, err := c.do(ctx, "chat endpoints", http.MethodGet, "/chats/"+strconv.FormatInt(channelID, 10), true, nil, &ce); err != nil {
		return nil, err
	}
	if len(ce.Endpoints) == 0 {
		return nil, fmt.Errorf("mixer chat endpoints: none returned for channel %d", channelID)
	}
	return &ce, nil
}

// CurrentBroadcast returns the live broadcast or ErrNoActiveBroadcast.
func (c *Client) CurrentBroadcast(ctx context.Context) (*Broadcast, error) {
	var b Broadcast
	status, err := c.do(ctx, "current broadcast", http.MethodGet, "/broadcasts/current", true, nil, &b)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %v", ErrNoActiveBroadcast, err)
		}
		return nil, err
	}
	if b.ID == "" {
		return nil, ErrNoActiveBroadcast
	}
	return &b, nil
}
