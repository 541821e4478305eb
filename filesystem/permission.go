package filesystem

import (
	"fmt"

	"github.com/brettbedarf/webvfs"
)

// CheckDirectoryPermission gates directory creation: the requested permission
// must lie within User..MaxPermission.
//
// This is the only permission the core enforces. Whether an acting user may
// touch a node is left to callers ([webvfs.Permission.Allows]).
func CheckDirectoryPermission(p webvfs.Permission) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", webvfs.ErrPermissionOutOfRange, int(p))
	}
	return nil
}
