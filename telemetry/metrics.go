// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatMessages      prometheus.Counter
	ClipCommands      prometheus.Counter
	ClipsCreated      prometheus.Counter
	ClipsFailed       prometheus.Counter
	ClipRetries       prometheus.Counter
	ClipsNoBroadcast  prometheus.Counter
	TokenRefreshes    *prometheus.CounterVec
	ShortcodeAttempts prometheus.Counter

	// Histograms (seconds)
	ClipDuration prometheus.Observer

	// Gauges
	ChatConnectedGauge prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_chat_messages_total", Help: "Chat messages received"})
		ClipCommands = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_clip_commands_total", Help: "!clip commands recognized"})
		ClipsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_clips_created_total", Help: "Clips created successfully"})
		ClipsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_clips_failed_total", Help: "Clip commands that failed after retry"})
		ClipRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_clip_retries_total", Help: "Clip creation retries"})
		ClipsNoBroadcast = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_clips_no_broadcast_total", Help: "Clip commands skipped because the channel was offline"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ezclip_token_refresh_total", Help: "Token refresh attempts by result"}, []string{"result"})
		ShortcodeAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "ezclip_shortcode_attempts_total", Help: "Shortcode codes requested during authorization"})
		ClipDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "ezclip_clip_duration_seconds", Help: "Clip command handling duration seconds", Buckets: prometheus.DefBuckets})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "ezclip_chat_connected", Help: "Chat connection open=1 closed=0"})
	})
}

// Inc increments c if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// RecordRefresh counts a refresh attempt as "ok" or "error".
func RecordRefresh(err error) {
	if TokenRefreshes == nil {
		return
	}
	if err != nil {
		TokenRefreshes.WithLabelValues("error").Inc()
		return
	}
	TokenRefreshes.WithLabelValues("ok").Inc()
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(connected bool) {
	if ChatConnectedGauge == nil {
		return
	}
	if connected {
		ChatConnectedGauge.Set(1)
	} else {
		ChatConnectedGauge.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
