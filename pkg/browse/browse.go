// Package browse holds presentation helpers for directory navigation.
package browse

import (
	"sort"
	"strings"

	"github.com/netiface/nfsbridge/pkg/session"
)

// SortForDisplay orders entries directories first, then by case-insensitive
// name. The sort is stable so equal names keep server order.
func SortForDisplay(entries []session.FileInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// Parent returns the path before the last "/". Root, top-level entries and
// paths without a separator all resolve to "/".
func Parent(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
