// Package fileid compares filesystem objects by (device, inode) rather than
// by how their paths are spelled. Symlinks, trailing slashes and relative
// spellings of the same directory all collapse to one ID.
package fileid

import "errors"

// ErrUnsupported is returned on platforms without inode identity.
var ErrUnsupported = errors.New("file identity is not supported on this platform")

// ID identifies a filesystem object on a single host.
type ID struct {
	Dev uint64
	Ino uint64
}

// Same reports whether a and b resolve to the same filesystem object.
// A path that cannot be stat'ed never matches anything.
func Same(a, b string) bool {
	ia, err := Of(a)
	if err != nil {
		return false
	}
	ib, err := Of(b)
	if err != nil {
		return false
	}
	return ia == ib
}
