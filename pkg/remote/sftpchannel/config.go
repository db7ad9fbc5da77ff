package sftpchannel

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultPort = "22"

// Config locates the SFTP server and the credentials used to reach it.
type Config struct {
	Addr       string // host:port
	User       string
	Root       string // remote directory holding per-repository bundle dirs
	KeyPath    string // private key; empty tries the usual ~/.ssh keys
	KnownHosts string // known_hosts file; empty means ~/.ssh/known_hosts
	Timeout    time.Duration
}

// ParseURL reads sftp://[user@]host[:port]/root into a Config.
func ParseURL(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse transfer url %q: %w", raw, err)
	}
	if u.Scheme != "sftp" {
		return Config{}, fmt.Errorf("transfer url %q: scheme must be sftp", raw)
	}
	if u.Hostname() == "" {
		return Config{}, fmt.Errorf("transfer url %q: host is required", raw)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	cfg := Config{
		Addr: net.JoinHostPort(u.Hostname(), port),
		Root: u.Path,
	}
	if u.User != nil {
		cfg.User = u.User.Username()
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

// IsURL reports whether s names an SFTP location rather than a local
// directory.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "sftp://")
}

func expandUserPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}

// resolveKeyPath returns the configured key or the first default key that
// exists. An empty result means no key is available.
func resolveKeyPath(p string) (string, error) {
	if p = strings.TrimSpace(p); p != "" {
		return expandUserPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

func resolveKnownHosts(p string) (string, error) {
	if p = strings.TrimSpace(p); p != "" {
		return expandUserPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ssh", "known_hosts"), nil
}
