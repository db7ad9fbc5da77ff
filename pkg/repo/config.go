package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultIgnore is the ignore set written into a fresh repository config.
var DefaultIgnore = []string{".venv", "venv", ".vscode", ".env", "env", "__pycache__", ".git", MetaDirName}

// Config stores repository-local settings.
type Config struct {
	Core   CoreConfig   `toml:"core"`
	Remote RemoteConfig `toml:"remote"`
}

// CoreConfig holds settings for local operations.
type CoreConfig struct {
	// Ignore lists path segments skipped by add. A path is ignored when any
	// of its segments equals an entry exactly.
	Ignore []string `toml:"ignore"`
}

// RemoteConfig holds the link to the remote repository entity.
type RemoteConfig struct {
	ID string `toml:"id,omitempty"`
}

// DefaultConfig returns the config written by Init.
func DefaultConfig() *Config {
	ignore := make([]string, len(DefaultIgnore))
	copy(ignore, DefaultIgnore)
	return &Config{Core: CoreConfig{Ignore: ignore}}
}

// ReadConfig reads .dee/config.toml. Missing config returns the defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(r.configPath(), cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, storageErr("read config", r.configPath(), err)
	}
	return cfg, nil
}

// WriteConfig atomically writes .dee/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	return writeFileAtomic(r.configPath(), buf.Bytes(), 0o644)
}

// RemoteLink returns the persisted remote repository id, or "" when the
// repository has never been pushed or pulled.
func (r *Repo) RemoteLink() (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.Remote.ID), nil
}

// SetRemoteLink persists the remote repository id.
func (r *Repo) SetRemoteLink(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("set remote link: remote id is required")
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	if cfg.Remote.ID == id {
		return nil
	}
	cfg.Remote.ID = id
	return r.WriteConfig(cfg)
}
