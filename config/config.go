// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run with nothing but a browser for the
// first authorization. Call Validate (Load does) before using the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Message reconstruction modes for chat commands.
const (
	MessageModeJoin  = "join"
	MessageModeFirst = "first"
)

// DefaultClientID is the public OAuth client registered for EzClip.
const DefaultClientID = "6a2af2fab374b9303f7d562a3a7b942d779729d831ddd852"

type Config struct {
	// OAuth client
	ClientID     string
	ClientSecret string
	Scopes       string

	// Platform endpoints
	APIBase string
	WebBase string

	// Token persistence
	TokenFile          string
	TokenEncryptionKey string

	// Session lifecycle
	RefreshInterval time.Duration
	AuthFlowTimeout time.Duration
	OpenBrowser     bool
	ChatReconnect   bool
	HTTPTimeout     time.Duration

	// Clip command
	DefaultClipDuration int
	MessageMode         string

	// Ops
	HTTPAddr        string
	VersionCheckURL string

	// Tracing; an empty endpoint disables export.
	TracingEndpoint    string
	TracingSampleRatio float64
}

// Load reads environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ClientID:           getEnv("MIXER_CLIENT_ID", DefaultClientID),
		ClientSecret:       os.Getenv("MIXER_CLIENT_SECRET"),
		Scopes:             getEnv("MIXER_SCOPES", "channel:clip:create:self chat:chat chat:connect"),
		APIBase:            strings.TrimRight(getEnv("MIXER_API_BASE", "https://mixer.com/api/v1"), "/"),
		WebBase:            strings.TrimRight(getEnv("MIXER_WEB_BASE", "https://mixer.com"), "/"),
		TokenFile:          getEnv("TOKEN_FILE", "./authTokens.json"),
		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),
		OpenBrowser:        getEnvBool("AUTH_OPEN_BROWSER", true),
		ChatReconnect:      getEnvBool("CHAT_RECONNECT", false),
		MessageMode:        strings.ToLower(getEnv("CLIP_MESSAGE_MODE", MessageModeJoin)),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		VersionCheckURL:    getEnv("VERSION_CHECK_URL", "https://api.github.com/repos/NickParks/EzClip/releases/latest"),
		TracingEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if strings.EqualFold(cfg.HTTPAddr, "off") {
		cfg.HTTPAddr = ""
	}
	if strings.EqualFold(cfg.VersionCheckURL, "off") {
		cfg.VersionCheckURL = ""
	}

	var err error
	if cfg.RefreshInterval, err = getEnvDuration("TOKEN_REFRESH_INTERVAL", 5*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AuthFlowTimeout, err = getEnvDuration("AUTH_FLOW_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.TracingSampleRatio = 1
	if v := os.Getenv("OTEL_TRACES_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
		}
		cfg.TracingSampleRatio = f
	}

	cfg.DefaultClipDuration = 60
	if v := os.Getenv("CLIP_DEFAULT_DURATION"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid CLIP_DEFAULT_DURATION: %w", err)
		}
		cfg.DefaultClipDuration = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values Load cannot default away.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("MIXER_CLIENT_ID cannot be empty")
	}
	if c.APIBase == "" || c.WebBase == "" {
		return fmt.Errorf("MIXER_API_BASE and MIXER_WEB_BASE cannot be empty")
	}
	if c.TokenFile == "" {
		return fmt.Errorf("TOKEN_FILE cannot be empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_INTERVAL must be > 0")
	}
	if c.AuthFlowTimeout < 0 {
		return fmt.Errorf("AUTH_FLOW_TIMEOUT must be >= 0")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.DefaultClipDuration < 1 || c.DefaultClipDuration > 300 {
		return fmt.Errorf("CLIP_DEFAULT_DURATION must be within 1..300, got %d", c.DefaultClipDuration)
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be within 0..1, got %v", c.TracingSampleRatio)
	}
	switch c.MessageMode {
	case MessageModeJoin, MessageModeFirst:
	default:
		return fmt.Errorf("CLIP_MESSAGE_MODE must be %q or %q, got %q", MessageModeJoin, MessageModeFirst, c.MessageMode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
