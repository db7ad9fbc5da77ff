package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
	"github.com/deevcs/dee/pkg/remote"
	"github.com/deevcs/dee/pkg/remote/dirchannel"
	"github.com/deevcs/dee/pkg/remote/sftpchannel"
	"github.com/deevcs/dee/pkg/remote/sqlregistry"
	"github.com/deevcs/dee/pkg/repo"
)

const (
	keyRegistry   = "registry"
	keyTransfer   = "transfer"
	keySSHKey     = "ssh_key"
	keyKnownHosts = "known_hosts"
	keyTimeout    = "timeout"
	keyRetries    = "retries"
	keyUpdateURL  = "update_url"
	keyVerbose    = "verbose"
	keyLogLevel   = "log_level"
)

// bindSettings registers the global flags and binds each to a viper key
// that can also come from DEE_<KEY> in the environment.
func bindSettings(root *cobra.Command, v *viper.Viper) {
	flags := root.PersistentFlags()
	flags.String("registry", "", "path to the shared registry database")
	flags.String("transfer", "", "bundle store: a directory or sftp://user@host[:port]/path")
	flags.String("ssh-key", "", "SSH private key for sftp transfers")
	flags.String("known-hosts", "", "known_hosts file for sftp transfers")
	flags.Duration("timeout", remote.DefaultTimeout, "bound on each push, pull or clone")
	flags.Int("retries", 2, "extra attempts for failed transfers")
	flags.String("update-url", "", "release endpoint for the version check (empty disables)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("log-level", "", "minimum log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		keyRegistry:   "registry",
		keyTransfer:   "transfer",
		keySSHKey:     "ssh-key",
		keyKnownHosts: "known-hosts",
		keyTimeout:    "timeout",
		keyRetries:    "retries",
		keyUpdateURL:  "update-url",
		keyVerbose:    "verbose",
		keyLogLevel:   "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	v.SetEnvPrefix("DEE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// remoteSession holds the adapters behind a remote.Client.
type remoteSession struct {
	Client   *remote.Client
	Registry *sqlregistry.Registry
	channel  remote.Channel
}

func (s *remoteSession) Close() {
	if err := s.channel.Close(); err != nil {
		logging.WarnErr("close transfer channel", err)
	}
	if err := s.Registry.Close(); err != nil {
		logging.WarnErr("close registry", err)
	}
}

func openRegistry(v *viper.Viper) (*sqlregistry.Registry, error) {
	p := strings.TrimSpace(v.GetString(keyRegistry))
	if p == "" {
		return nil, errors.New("registry not configured (use --registry or DEE_REGISTRY)")
	}
	p, err := expandUserPath(p)
	if err != nil {
		return nil, err
	}
	return sqlregistry.Open(p)
}

func openChannel(v *viper.Viper) (remote.Channel, error) {
	target := strings.TrimSpace(v.GetString(keyTransfer))
	if target == "" {
		return nil, errors.New("transfer location not configured (use --transfer or DEE_TRANSFER)")
	}
	if sftpchannel.IsURL(target) {
		cfg, err := sftpchannel.ParseURL(target)
		if err != nil {
			return nil, err
		}
		cfg.KeyPath = v.GetString(keySSHKey)
		cfg.KnownHosts = v.GetString(keyKnownHosts)
		cfg.Timeout = v.GetDuration(keyTimeout)
		return sftpchannel.New(cfg), nil
	}
	dir, err := expandUserPath(target)
	if err != nil {
		return nil, err
	}
	return dirchannel.New(dir), nil
}

// openRemote builds a sync client for r (nil for clone).
func openRemote(v *viper.Viper, r *repo.Repo) (*remoteSession, error) {
	reg, err := openRegistry(v)
	if err != nil {
		return nil, err
	}
	ch, err := openChannel(v)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	opts := remote.Options{
		Timeout: v.GetDuration(keyTimeout),
		Retries: v.GetInt(keyRetries),
	}
	return &remoteSession{
		Client:   remote.NewClient(r, reg, ch, opts),
		Registry: reg,
		channel:  ch,
	}, nil
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

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
