package mixerapi

import (
	"context"
	"fmt"
	"net/http"
)

// ClipRequest is the body of a clip creation call.
type ClipRequest struct {
	BroadcastID           string `json:"broadcastId"`
	HighlightTitle        string `json:"highlightTitle"`
	ClipDurationInSeconds int    `json:"clipDurationInSeconds"`
}

// Clip is the subset of the created clip the bot needs.
type Clip struct {
	ShareableID string `json:"shareableId"`
}

// CreateClip asks the platform to cut a clip from the broadcast buffer.
func (c *Client) CreateClip(ctx context.Context, req ClipRequest) (*Clip, error) {
	var clip Clip
	if _, err := c.do(ctx, "create clip", http.MethodPost, "/clips/create", true, req, &clip); err != nil {
		return nil, err
	}
	if clip.ShareableID == "" {
		return nil, fmt.Errorf("mixer create clip: empty shareableId")
	}
	return &clip, nil
}
