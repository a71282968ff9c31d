// Command ezclip is a single-account chat bot that creates clips of the live
// broadcast when a viewer types !clip. It:
//   - Loads configuration and initializes structured logging.
//   - Authorizes through the shortcode (device-code) flow, or refreshes stored tokens.
//   - Connects to the channel's chat and answers !clip commands.
//   - Refreshes tokens on a fixed interval and checks once for a newer release.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/ezclip/auth"
	"github.com/onnwee/ezclip/bot"
	"github.com/onnwee/ezclip/config"
	"github.com/onnwee/ezclip/crypto"
	"github.com/onnwee/ezclip/mixerapi"
	"github.com/onnwee/ezclip/server"
	"github.com/onnwee/ezclip/telemetry"
	"github.com/onnwee/ezclip/tokenstore"
	"github.com/onnwee/ezclip/version"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing(telemetry.TracingConfig{
		ServiceName:    "ezclip",
		ServiceVersion: version.CurrentVersion,
		Endpoint:       cfg.TracingEndpoint,
		SampleRatio:    cfg.TracingSampleRatio,
	})
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var enc crypto.Encryptor
	if cfg.TokenEncryptionKey != "" {
		aes, err := crypto.NewAESEncryptor(cfg.TokenEncryptionKey)
		if err != nil {
			slog.Error("invalid TOKEN_ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
		enc = aes
		slog.Info("token encryption enabled")
	}
	store := tokenstore.New(cfg.TokenFile, enc)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	api := &mixerapi.Client{BaseURL: cfg.APIBase, HTTPClient: httpClient}
	session := &auth.Session{
		API:             api,
		OAuth:           mixerapi.OAuthConfig(cfg.APIBase, cfg.ClientID, cfg.ClientSecret, cfg.Scopes),
		HTTPClient:      httpClient,
		Store:           store,
		WebBase:         cfg.WebBase,
		MaxFlowDuration: cfg.AuthFlowTimeout,
	}
	if cfg.OpenBrowser {
		session.OpenBrowser = auth.OpenBrowser
	}
	api.Tokens = session

	b := &bot.Bot{
		Store:           store,
		Auth:            session,
		API:             api,
		WebBase:         cfg.WebBase,
		DefaultDuration: cfg.DefaultClipDuration,
		MessageMode:     cfg.MessageMode,
		RefreshInterval: cfg.RefreshInterval,
		Reconnect:       cfg.ChatReconnect,
	}

	go version.Notify(ctx, httpClient, cfg.VersionCheckURL)

	if cfg.HTTPAddr != "" {
		go func() {
			if err := server.Start(ctx, cfg.HTTPAddr, b); err != nil {
				slog.Error("http server stopped", slog.Any("err", err))
			}
		}()
	}

	if err := b.Run(ctx); err != nil {
		slog.Error("bot startup failed", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
