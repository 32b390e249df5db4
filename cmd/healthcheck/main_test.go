package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if err := probe(healthy.URL, time.Second); err != nil {
		t.Fatalf("probe against healthy server: %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	if err := probe(failing.URL, time.Second); err == nil {
		t.Fatal("probe against failing server returned nil error")
	}

	if err := probe("http://127.0.0.1:1/healthz", 100*time.Millisecond); err == nil {
		t.Fatal("probe against unreachable address returned nil error")
	}
}
