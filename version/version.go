// Package version performs the advisory startup check against the latest
// published release.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// CurrentVersion is the running release.
const CurrentVersion = "1.3"

// DefaultURL is the releases endpoint queried when none is configured.
const DefaultURL = "https://api.github.com/repos/NickParks/EzClip/releases/latest"

const userAgent = "EzClip"

// Release is the subset of the releases payload we read.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result of a check.
type Result struct {
	Latest   Release
	Outdated bool
}

// Check fetches the latest release and compares its tag with current.
// Any tag that differs counts as outdated; ordering is not interpreted.
func Check(ctx context.Context, hc *http.Client, url, current string) (Result, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := hc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("version check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("version check: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Result{}, fmt.Errorf("version check: decode: %w", err)
	}
	tag := strings.TrimPrefix(strings.TrimSpace(rel.TagName), "v")
	return Result{Latest: rel, Outdated: tag != "" && tag != current}, nil
}

// Notify runs Check and logs the outcome. Errors are logged only.
func Notify(ctx context.Context, hc *http.Client, url string) {
	if url == "" {
		return
	}
	res, err := Check(ctx, hc, url, CurrentVersion)
	if err != nil {
		slog.Warn("version check failed", slog.Any("err", err))
		return
	}
	if res.Outdated {
		slog.Warn("a new version is available",
			slog.String("current", CurrentVersion),
			slog.String("latest", res.Latest.TagName),
			slog.String("url", res.Latest.HTMLURL))
		return
	}
	slog.Info("running the latest version", slog.String("version", CurrentVersion))
}
