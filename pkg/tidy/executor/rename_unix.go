//go:build unix && !linux

package executor

import (
	"errors"

	"golang.org/x/sys/unix"
)

func renameNoReplace(oldpath, newpath string) error {
	return checkedRename(oldpath, newpath)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
