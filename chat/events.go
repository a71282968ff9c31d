package chat

import (
	"encoding/json"
	"fmt"
)

// Kind tags a decoded Event.
type Kind int

const (
	KindOther Kind = iota
	KindWelcome
	KindChatMessage
	KindReply
)

// Wire event names.
const (
	EventWelcome     = "WelcomeEvent"
	EventChatMessage = "ChatMessage"
)

// Segment is one piece of a structured chat message (text, emoticon, link, ...).
type Segment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatMessage is a message posted by a viewer.
type ChatMessage struct {
	UserName string
	UserID   int64
	Segments []Segment
}

// Reply answers one of our method calls.
type Reply struct {
	ID    int
	Error json.RawMessage
	Data  json.RawMessage
}

// Failed reports whether the reply carries a non-null error.
func (r *Reply) Failed() bool {
	return len(r.Error) > 0 && string(r.Error) != "null"
}

// Event is a decoded inbound packet.
type Event struct {
	Kind    Kind
	Name    string
	Message *ChatMessage
	Reply   *Reply
	Raw     json.RawMessage
}

type packet struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	ID    int             `json:"id"`
	Error json.RawMessage `json:"error"`
	Data  json.RawMessage `json:"data"`
}

type chatMessageData struct {
	UserName string `json:"user_name"`
	UserID   int64  `json:"user_id"`
	Message  struct {
		Message []Segment `json:"message"`
	} `json:"message"`
}

type methodCall struct {
	Type      string `json:"type"`
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
	ID        int64  `json:"id"`
}

// DecodeEvent parses one inbound websocket frame.
func DecodeEvent(b []byte) (Event, error) {
	var p packet
	if err := json.Unmarshal(b, &p); err != nil {
		return Event{}, fmt.Errorf("decode chat packet: %w", err)
	}
	ev := Event{Name: p.Event, Raw: b}
	switch {
	case p.Type == "reply":
		ev.Kind = KindReply
		ev.Reply = &Reply{ID: p.ID, Error: p.Error, Data: p.Data}
	case p.Event == EventWelcome:
		ev.Kind = KindWelcome
	case p.Event == EventChatMessage:
		var d chatMessageData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return Event{}, fmt.Errorf("decode chat message: %w", err)
		}
		ev.Kind = KindChatMessage
		ev.Message = &ChatMessage{UserName: d.UserName, UserID: d.UserID, Segments: d.Message.Message}
	default:
		ev.Kind = KindOther
	}
	return ev, nil
}
