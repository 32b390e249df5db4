// Command healthcheck is a tiny probe binary for container liveness and
// readiness checks against the validation server.
// Usage: healthcheck [-timeout 5s] [url]
// The url defaults to http://localhost:8080/healthz. Exits 0 when the
// endpoint answers 2xx within the timeout, 1 otherwise.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	url := "http://localhost:8080/healthz"
	if flag.NArg() > 0 {
		url = flag.Arg(0)
	}

	if err := probe(url, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
