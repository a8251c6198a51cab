// Package searchpath removes the shim's own directory from a PATH value so
// that looking up the runtime by name cannot land on the shim again.
package searchpath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/VikingOwl91/smallweb-shim/internal/fileid"
)

// Sanitize drops every entry of pathVar that is the same directory as the
// parent of selfPath, compared by (device, inode). Entries that cannot be
// stat'ed are kept. The removed entries are returned in PATH order.
//
// Sanitize is idempotent: feeding its output back in removes nothing.
func Sanitize(pathVar, selfPath string) (string, []string) {
	own, err := fileid.Of(filepath.Dir(selfPath))
	if err != nil {
		return pathVar, nil
	}

	entries := filepath.SplitList(pathVar)
	kept := make([]string, 0, len(entries))
	var removed []string
	for _, entry := range entries {
		if entry != "" {
			if id, err := fileid.Of(entry); err == nil && id == own {
				removed = append(removed, entry)
				continue
			}
		}
		kept = append(kept, entry)
	}
	if len(removed) == 0 {
		return pathVar, nil
	}

	return strings.Join(kept, string(os.PathListSeparator)), removed
}
