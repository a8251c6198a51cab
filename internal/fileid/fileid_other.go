//go:build !unix

package fileid

// Of is not supported on non-unix platforms.
func Of(_ string) (ID, error) {
	return ID{}, ErrUnsupported
}
