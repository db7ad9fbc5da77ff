// Package update checks a release endpoint for a newer dee version. The
// check is advisory: it is bounded by a short timeout and its failures are
// logged, never returned to the user.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/deevcs/dee/pkg/logging"
)

// Timeout bounds a whole check.
const Timeout = 3 * time.Second

const maxResponseBytes = 1 << 20

// Result compares the running version with the latest release.
type Result struct {
	Current *semver.Version
	Latest  *semver.Version
}

// Newer reports whether the latest release is ahead of the running version.
func (r *Result) Newer() bool {
	return r.Latest.GreaterThan(r.Current)
}

// release accepts {"version": "..."} and the package-index form
// {"info": {"version": "..."}}.
type release struct {
	Version string `json:"version"`
	Info    struct {
		Version string `json:"version"`
	} `json:"info"`
}

// Check fetches the latest version from url and compares it with current.
func Check(ctx context.Context, client *http.Client, url, current string) (*Result, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("current version %q: %w", current, err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("version endpoint returned %s", resp.Status)
	}

	var rel release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode version response: %w", err)
	}
	latestRaw := strings.TrimSpace(rel.Version)
	if latestRaw == "" {
		latestRaw = strings.TrimSpace(rel.Info.Version)
	}
	if latestRaw == "" {
		return nil, errors.New("version response has no version")
	}
	latest, err := semver.NewVersion(latestRaw)
	if err != nil {
		return nil, fmt.Errorf("latest version %q: %w", latestRaw, err)
	}
	return &Result{Current: cur, Latest: latest}, nil
}

// Notify runs Check and writes a one-line notice to w when a newer release
// exists. An empty url disables the check.
func Notify(ctx context.Context, w io.Writer, url, current string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	res, err := Check(ctx, nil, url, current)
	if err != nil {
		logging.WarnErr("version check failed", err, "url", url)
		return
	}
	if res.Newer() {
		fmt.Fprintf(w, "dee %s is available (you have %s)\n", res.Latest, res.Current)
	}
}
