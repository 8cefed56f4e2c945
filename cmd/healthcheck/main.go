// Command healthcheck probes the bot's liveness endpoint and exits non-zero
// unless it answers 200. It is meant for container HEALTHCHECK directives.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	url := pflag.String("url", "http://localhost:8080/healthz", "endpoint to probe")
	timeout := pflag.Duration("timeout", 3*time.Second, "request timeout")
	pflag.Parse()
	os.Exit(probe(*url, *timeout))
}

func probe(url string, timeout time.Duration) int {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
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
