package store

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrInsecurePermissions matches every *PermissionError.
var ErrInsecurePermissions = errors.New("store: insecure file permissions")

// PermissionError reports a database file that others may write to.
type PermissionError struct {
	Path string
	Mode fs.FileMode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("store: %s is writable by others (mode %04o); run chmod o-w on it", e.Path, uint32(e.Mode))
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrInsecurePermissions
}
