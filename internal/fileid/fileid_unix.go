//go:build unix

package fileid

import (
	"os"

	"golang.org/x/sys/unix"
)

// Of returns the identity of the object at path, following symlinks.
func Of(path string) (ID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return ID{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return ID{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}
