package repo

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deevcs/dee/pkg/logging"
)

const (
	hookPreCheckout  = "pre-checkout"
	hookPostCheckout = "post-checkout"
)

// runHook executes .dee/hooks/<name> with args from the repository root.
// A missing or non-executable hook is not an error.
func (r *Repo) runHook(name string, args ...string) error {
	hookPath := filepath.Join(r.hooksDir(), name)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil
	}

	var out bytes.Buffer
	cmd := exec.Command(hookPath, args...)
	cmd.Dir = r.RootDir
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = append(os.Environ(), "DEE_DIR="+r.MetaDir)

	logging.Debug("running hook", "hook", name, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg != "" {
			return fmt.Errorf("%w: %s: %v: %s", ErrHookFailed, name, err, msg)
		}
		return fmt.Errorf("%w: %s: %v", ErrHookFailed, name, err)
	}
	return nil
}
