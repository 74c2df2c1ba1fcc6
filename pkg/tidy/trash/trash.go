// Package trash disposes of redundant duplicates without destroying them.
// Files go to the system trash where a desktop tool for it exists, and
// otherwise into a tidy-owned trash directory under a timestamped name.
// Nothing is ever deleted permanently.
package trash

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/naming"
)

// commandTimeout is the maximum time to wait for trash commands.
const commandTimeout = 30 * time.Second

// SystemTrash is returned as the destination when the system trash took the file.
const SystemTrash = "system trash"

// stampLayout prefixes files moved into the trash directory.
const stampLayout = "20060102T150405"

// DefaultDir returns $XDG_DATA_HOME/tidy/trash.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "tidy", "trash")
}

// Trash moves files out of the way.
type Trash struct {
	dir    string
	system bool
	now    func() time.Time
}

// Option configures a Trash.
type Option func(*Trash)

// WithSystemTrash enables or disables the desktop trash tools.
func WithSystemTrash(enabled bool) Option {
	return func(t *Trash) { t.system = enabled }
}

// WithClock overrides the time used for name prefixes.
func WithClock(now func() time.Time) Option {
	return func(t *Trash) { t.now = now }
}

// New returns a Trash that falls back to dir. An empty dir uses DefaultDir.
func New(dir string, opts ...Option) *Trash {
	if dir == "" {
		dir = DefaultDir()
	}
	t := &Trash{dir: dir, system: true, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dir returns the fallback trash directory.
func (t *Trash) Dir() string {
	return t.dir
}

// Dispose moves path to the trash and returns where it went: SystemTrash,
// or the file's new path inside the trash directory.
func (t *Trash) Dispose(path string) (string, error) {
	log := logging.Get("trash")

	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("cannot trash %q: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot trash %q: is a directory", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	if t.system && systemTrash(absPath) {
		log.Debug("moved to system trash", "path", absPath)
		return SystemTrash, nil
	}

	dest, err := t.moveToDir(absPath)
	if err != nil {
		return "", err
	}
	log.Debug("moved to trash directory", "path", absPath, "dest", dest)
	return dest, nil
}

func (t *Trash) moveToDir(path string) (string, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	name := t.now().UTC().Format(stampLayout) + "_" + filepath.Base(path)
	base := filepath.Join(t.dir, name)

	for n := 0; n < naming.MaxAttempts; n++ {
		dest := naming.Underscore.Candidate(base, n)
		err := executor.Relocate(path, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to trash %q: %w", path, err)
		}
	}
	return "", fmt.Errorf("failed to trash %q: %w", path, naming.ErrExhausted)
}

// systemTrash tries the platform's trash tool and reports whether it
// accepted the file.
func systemTrash(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
		return exec.CommandContext(ctx, "osascript", "-e", script).Run() == nil
	case "linux":
		if gio, err := exec.LookPath("gio"); err == nil {
			if exec.CommandContext(ctx, gio, "trash", path).Run() == nil {
				return true
			}
		}
		if put, err := exec.LookPath("trash-put"); err == nil {
			if exec.CommandContext(ctx, put, path).Run() == nil {
				return true
			}
		}
	}
	return false
}
