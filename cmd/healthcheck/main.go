// Command healthcheck probes the bot's /healthz endpoint and exits non-zero
// when it is unreachable or unhealthy. Intended for container HEALTHCHECK use.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	os.Exit(run(probeURL(os.Getenv("HTTP_ADDR"))))
}

// probeURL maps HTTP_ADDR (":8080", "0.0.0.0:9000", ...) to a localhost URL.
func probeURL(addr string) string {
	if addr == "" {
		addr = ":8080"
	}
	port := addr[strings.LastIndex(addr, ":")+1:]
	return "http://localhost:" + port + "/healthz"
}

func run(url string) int {
	client := &http.Client{Timeout: 3 * time.Second}
	ctx := context.Background()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
