// Package sftpchannel implements remote.Channel over SFTP.
//
// The server's host key must be listed in known_hosts. The client offers
// its SSH key when one is configured or found in ~/.ssh, then the
// repository access token as a password.
package sftpchannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/remote"
)

// Channel is an SFTP-backed remote.Channel. Authenticate opens the
// connection; every other call requires it.
type Channel struct {
	cfg Config

	conn   io.Closer // underlying transport, closed on cancel
	client *sftp.Client
}

var _ remote.Channel = (*Channel)(nil)

// New returns an unconnected Channel.
func New(cfg Config) *Channel {
	return &Channel{cfg: cfg}
}

// Authenticate dials the server and starts an SFTP session. Calling it on
// a connected Channel is a no-op.
func (c *Channel) Authenticate(ctx context.Context, token string) error {
	if c.client != nil {
		return nil
	}
	clientCfg, err := c.clientConfig(token)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: c.cfg.Timeout}
	nc, err := d.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()

	sc, chans, reqs, err := ssh.NewClientConn(nc, c.cfg.Addr, clientCfg)
	if err != nil {
		nc.Close()
		return errors.Join(fmt.Errorf("ssh handshake %s: %w", c.cfg.Addr, err), ctx.Err())
	}
	sshClient := ssh.NewClient(sc, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("start sftp session: %w", err)
	}

	c.conn = sshClient
	c.client = client
	logging.Debug("sftp connected", "addr", c.cfg.Addr, "user", c.cfg.User)
	return nil
}

func (c *Channel) clientConfig(token string) (*ssh.ClientConfig, error) {
	knownHostsPath, err := resolveKnownHosts(c.cfg.KnownHosts)
	if err != nil {
		return nil, err
	}
	hostKeys, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %q: %w", knownHostsPath, err)
	}

	var auth []ssh.AuthMethod
	keyPath, err := resolveKeyPath(c.cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	if keyPath != "" {
		raw, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %q: %w", keyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %q: %w", keyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if token = strings.TrimSpace(token); token != "" {
		auth = append(auth, ssh.Password(token))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh key or access token available")
	}

	return &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         c.cfg.Timeout,
	}, nil
}

func (c *Channel) EnsureDir(ctx context.Context, remotePath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	return c.withCancel(ctx, func() error {
		return c.client.MkdirAll(c.remote(remotePath))
	})
}

// Upload writes to a .part file and renames it over remotePath.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest := c.remote(remotePath)
	tmp := dest + ".part"
	return c.withCancel(ctx, func() error {
		f, err := c.client.Create(tmp)
		if err != nil {
			return fmt.Errorf("create %s: %w", tmp, err)
		}
		n, err := io.Copy(f, src)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = c.client.Remove(tmp)
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := c.rename(tmp, dest); err != nil {
			_ = c.client.Remove(tmp)
			return err
		}
		logging.Debug("sftp upload", "path", dest, "bytes", n)
		return nil
	})
}

func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	src := c.remote(remotePath)
	return c.withCancel(ctx, func() error {
		f, err := c.client.Open(src)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		defer f.Close()

		out, err := os.Create(localPath)
		if err != nil {
			return err
		}
		n, err := io.Copy(out, f)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		logging.Debug("sftp download", "path", src, "bytes", n)
		return nil
	})
}

// Close ends the session and the connection.
func (c *Channel) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}
	c.client, c.conn = nil, nil
	return err
}

func (c *Channel) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.client == nil {
		return errors.New("sftp: not authenticated")
	}
	return nil
}

// withCancel runs fn, tearing the connection down if ctx ends first so
// blocked reads and writes return.
func (c *Channel) withCancel(ctx context.Context, fn func() error) error {
	stop := context.AfterFunc(ctx, func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
	defer stop()
	if err := fn(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		return err
	}
	return nil
}

// rename prefers the atomic posix-rename extension and falls back to
// remove+rename on servers without it.
func (c *Channel) rename(from, to string) error {
	if err := c.client.PosixRename(from, to); err == nil {
		return nil
	}
	if err := c.client.Remove(to); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", to, err)
	}
	if err := c.client.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	return nil
}

func (c *Channel) remote(p string) string {
	return path.Join(c.cfg.Root, path.Clean("/" + p)[1:])
}
