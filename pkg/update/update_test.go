package update

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/deevcs/dee/pkg/logging"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		current string
		newer   bool
	}{
		{"plain newer", `{"version":"0.2.0"}`, "0.1.11", true},
		{"package index form", `{"info":{"version":"0.1.12"}}`, "0.1.11", true},
		{"same", `{"version":"v0.1.11"}`, "0.1.11", false},
		{"older", `{"version":"0.1.9"}`, "0.1.11", false},
		{"prerelease is older", `{"version":"0.2.0-rc.1"}`, "0.2.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Check(context.Background(), nil, serve(t, http.StatusOK, tt.body), tt.current)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Newer() != tt.newer {
				t.Errorf("Newer() = %v, want %v (latest %s, current %s)", res.Newer(), tt.newer, res.Latest, res.Current)
			}
		})
	}
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		current string
	}{
		{"bad status", http.StatusInternalServerError, `{"version":"1.0.0"}`, "0.1.0"},
		{"not json", http.StatusOK, `<html>`, "0.1.0"},
		{"no version", http.StatusOK, `{}`, "0.1.0"},
		{"bad latest", http.StatusOK, `{"version":"banana"}`, "0.1.0"},
		{"bad current", http.StatusOK, `{"version":"1.0.0"}`, "dev-build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Check(context.Background(), nil, serve(t, tt.status, tt.body), tt.current); err == nil {
				t.Fatal("Check succeeded")
			}
		})
	}
}

func TestCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := Check(ctx, nil, srv.URL, "0.1.0"); err == nil {
		t.Fatal("Check succeeded against a hung server")
	}
	if elapsed := time.Since(start); elapsed > Timeout {
		t.Errorf("Check took %v", elapsed)
	}
}

func TestNotify(t *testing.T) {
	var out bytes.Buffer
	Notify(context.Background(), &out, serve(t, http.StatusOK, `{"version":"9.0.0"}`), "0.1.11")
	if !strings.Contains(out.String(), "9.0.0 is available") {
		t.Errorf("notice = %q", out.String())
	}

	out.Reset()
	Notify(context.Background(), &out, serve(t, http.StatusOK, `{"version":"0.1.0"}`), "0.1.11")
	if out.Len() != 0 {
		t.Errorf("unexpected notice %q", out.String())
	}
}

func TestNotify_FailureOnlyLogs(t *testing.T) {
	var logs bytes.Buffer
	logging.SetOutput(&logs)
	defer logging.SetOutput(os.Stderr)

	var out bytes.Buffer
	Notify(context.Background(), &out, serve(t, http.StatusBadGateway, ""), "0.1.11")
	if out.Len() != 0 {
		t.Errorf("failure printed %q", out.String())
	}
	if !strings.Contains(logs.String(), "version check failed") {
		t.Errorf("log = %q, want version check warning", logs.String())
	}

	Notify(context.Background(), &out, "", "0.1.11")
	if out.Len() != 0 {
		t.Error("empty url produced output")
	}
}
