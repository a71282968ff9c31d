package chat

import (
	"errors"
	"strconv"
	"strings"
)

// Message reconstruction modes.
const (
	// ModeJoin concatenates every segment's text.
	ModeJoin = "join"
	// ModeFirst uses only the first segment's text.
	ModeFirst = "first"
)

// ClipCommandName is the recognized command token.
const ClipCommandName = "!clip"

// ParseOptions controls ParseCommand.
type ParseOptions struct {
	DefaultDuration int
	Mode            string
}

// Command is a recognized !clip request. Duration is not yet clamped.
type Command struct {
	Duration int
	Title    string
}

// BuildMessage turns structured segments into plain text.
func BuildMessage(segments []Segment, mode string) string {
	if mode == ModeFirst {
		if len(segments) == 0 {
			return ""
		}
		return segments[0].Text
	}
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// ParseCommand recognizes "!clip [seconds] [title...]".
//
// Without a numeric second token the default duration is used and the title is
// "Clip by <user>". With one, the remaining tokens form the title, which may be
// empty; an empty title makes the platform use the current stream title.
func ParseCommand(msg ChatMessage, opts ParseOptions) (Command, bool) {
	tokens := strings.Fields(strings.TrimSpace(BuildMessage(msg.Segments, opts.Mode)))
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], ClipCommandName) {
		return Command{}, false
	}
	if len(tokens) > 1 {
		// Out-of-range integers saturate to the int bounds and clamp later.
		if n, err := strconv.Atoi(tokens[1]); err == nil || errors.Is(err, strconv.ErrRange) {
			return Command{Duration: n, Title: strings.Join(tokens[2:], " ")}, true
		}
	}
	return Command{Duration: opts.DefaultDuration, Title: "Clip by " + msg.UserName}, true
}
