package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
)

// checkedRename refuses to replace an existing newpath. There is a window
// between the check and the rename; renameNoReplace closes it where the
// kernel allows.
func checkedRename(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldpath, newpath)
}

// copyFile copies src to a new file at dst, preserving permission bits and
// modification time. dst must not exist. A partial dst is removed on error.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// moveAcrossDevices copies src to dst then removes src. If src cannot be
// removed the copy is discarded so the entry stays a clean failure.
func moveAcrossDevices(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// Reference is the record written at the destination by index mode.
type Reference struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	IndexedAt time.Time `json:"indexed_at"`
}

// writeReference creates dst exclusively and writes a Reference to src.
func writeReference(src, dst string, now time.Time) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(Reference{
		ID:        uuid.NewString(),
		Source:    src,
		Size:      info.Size(),
		ModTime:   info.ModTime().UTC(),
		IndexedAt: now,
	}, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}

// ReadReference parses an index-mode reference record.
func ReadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("%s: not a reference record: %w", path, err)
	}
	if ref.ID == "" || ref.Source == "" {
		return nil, fmt.Errorf("%s: not a reference record", path)
	}
	return &ref, nil
}

// Relocate moves src to dst without ever replacing an existing dst,
// copying and removing when the two are on different devices. An occupied
// dst yields an error matching fs.ErrExist.
func Relocate(src, dst string) error {
	err := renameNoReplace(src, dst)
	if err != nil && isCrossDevice(err) {
		err = moveAcrossDevices(src, dst)
	}
	return err
}
