// Package dirchannel implements remote.Channel on a directory, usually a
// network share mounted on every client.
package dirchannel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/remote"
)

// Channel stores bundles below Root.
type Channel struct {
	Root string

	authed bool
}

var _ remote.Channel = (*Channel)(nil)

// New returns a Channel rooted at root.
func New(root string) *Channel {
	return &Channel{Root: root}
}

// Authenticate checks that the root is a reachable directory. Access
// control is left to the filesystem; the token only has to be present.
func (c *Channel) Authenticate(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("dirchannel: empty access token")
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("dirchannel: root %s: %w", c.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("dirchannel: root %s is not a directory", c.Root)
	}
	c.authed = true
	return nil
}

func (c *Channel) EnsureDir(ctx context.Context, remotePath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	dir, err := c.local(remotePath)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Upload copies localPath next to its destination and renames it into
// place, so readers never see a partial bundle.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	dest, err := c.local(remotePath)
	if err != nil {
		return err
	}
	return copyInto(localPath, dest)
}

func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	src, err := c.local(remotePath)
	if err != nil {
		return err
	}
	return copyInto(src, localPath)
}

func (c *Channel) Close() error {
	c.authed = false
	return nil
}

func (c *Channel) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.authed {
		return errors.New("dirchannel: not authenticated")
	}
	return nil
}

// local maps a slash-separated remote path below Root. Paths with ".."
// segments are rejected.
func (c *Channel) local(remotePath string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(remotePath), "/") {
		if seg == ".." {
			return "", fmt.Errorf("dirchannel: remote path %q escapes root", remotePath)
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	return filepath.Join(c.Root, filepath.FromSlash(clean)), nil
}

func copyInto(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("dirchannel: %s is a directory", src)
	}

	tmp := dest + ".part"
	if err := copy.Copy(src, tmp, copy.Options{Sync: true}); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	logging.Debug("copied bundle", "from", src, "to", dest, "bytes", info.Size())
	return nil
}
