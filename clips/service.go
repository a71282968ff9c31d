// Package clips turns a !clip request into a created clip and a single chat reply.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/ezclip/mixerapi"
	"github.com/onnwee/ezclip/telemetry"
)

// Duration bounds in seconds.
const (
	MinDuration = 1
	MaxDuration = 300
)

// Chat replies.
const (
	CreatedPrefix = "Clip created: "
	FailedMessage = "Failed to generate clip :("
)

// Status is the outcome of Create.
type Status int

const (
	// StatusNoBroadcast: the broadcast lookup failed; nothing was created or sent.
	StatusNoBroadcast Status = iota
	StatusCreated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNoBroadcast:
		return "no_broadcast"
	case StatusCreated:
		return "created"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// API is the subset of mixerapi.Client the service calls.
type API interface {
	CurrentBroadcast(ctx context.Context) (*mixerapi.Broadcast, error)
	CreateClip(ctx context.Context, req mixerapi.ClipRequest) (*mixerapi.Clip, error)
}

// Replier posts a chat message.
type Replier interface {
	Send(ctx context.Context, text string) error
}

// Service creates clips for one channel.
type Service struct {
	API         API
	Replier     Replier
	WebBase     string
	ChannelName string
}

// Result describes what Create did.
type Result struct {
	Status   Status
	URL      string
	Attempts int
	Err      error
}

// Clamp bounds d to [MinDuration, MaxDuration].
func Clamp(d int) int {
	if d < MinDuration {
		return MinDuration
	}
	if d > MaxDuration {
		return MaxDuration
	}
	return d
}

// ShareURL is the public link for a created clip.
func ShareURL(webBase, channelName, shareableID string) string {
	return fmt.Sprintf("%s/%s?clip=%s", strings.TrimRight(webBase, "/"), channelName, shareableID)
}

// Create cuts a clip of the live broadcast. A failed create call is retried
// once with no delay. Exactly one reply is sent for StatusCreated and
// StatusFailed; a reply send error is logged and does not change the status.
func (s *Service) Create(ctx context.Context, duration int, title string) Result {
	duration = Clamp(duration)
	log := telemetry.LoggerWithCorr(ctx)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanClipCreate,
		attribute.Int("clip.duration_seconds", duration),
		attribute.String("channel", s.ChannelName))

	var res Result
	telemetry.TimeFunc(telemetry.ClipDuration, func() {
		res = s.create(ctx, log, duration, title)
	})
	span.SetAttributes(attribute.String("clip.status", res.Status.String()), attribute.Int("clip.attempts", res.Attempts))
	telemetry.EndSpan(span, res.Err)
	return res
}

func (s *Service) create(ctx context.Context, log *slog.Logger, duration int, title string) Result {
	b, err := s.API.CurrentBroadcast(ctx)
	if err != nil {
		telemetry.Inc(telemetry.ClipsNoBroadcast)
		if errors.Is(err, mixerapi.ErrNoActiveBroadcast) {
			log.Info("clip skipped: channel is not live")
		} else {
			log.Warn("clip skipped: broadcast lookup failed", slog.Any("err", err))
		}
		return Result{Status: StatusNoBroadcast, Err: err}
	}

	req := mixerapi.ClipRequest{BroadcastID: b.ID, HighlightTitle: title, ClipDurationInSeconds: duration}
	var (
		clip     *mixerapi.Clip
		attempts int
	)
	for attempts < 2 {
		attempts++
		if attempts > 1 {
			telemetry.Inc(telemetry.ClipRetries)
			log.Warn("clip creation failed, retrying", slog.Any("err", err))
		}
		clip, err = s.API.CreateClip(ctx, req)
		if err == nil {
			break
		}
	}

	if err != nil {
		telemetry.Inc(telemetry.ClipsFailed)
		log.Error("clip creation failed", slog.Int("attempts", attempts), slog.Any("err", err))
		s.reply(ctx, log, FailedMessage)
		return Result{Status: StatusFailed, Attempts: attempts, Err: err}
	}

	url := ShareURL(s.WebBase, s.ChannelName, clip.ShareableID)
	telemetry.Inc(telemetry.ClipsCreated)
	log.Info("clip created", slog.String("url", url), slog.Int("duration", duration), slog.Int("attempts", attempts))
	s.reply(ctx, log, CreatedPrefix+url)
	return Result{Status: StatusCreated, URL: url, Attempts: attempts}
}

func (s *Service) reply(ctx context.Context, log *slog.Logger, text string) {
	if s.Replier == nil {
		return
	}
	if err := s.Replier.Send(ctx, text); err != nil {
		log.Warn("failed to send chat reply", slog.Any("err", err))
	}
}
