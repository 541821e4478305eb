package util

import (
	"path"
	"strings"
)

// Pointer simply returns a pointer to the supplied value
func Pointer[T any](v T) *T {
	return &v
}

// SplitPath splits a slash separated path into its non-empty segments.
// "", "/" and "//" all yield no segments.
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	segs := parts[:0]
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// JoinPath joins segments into a rooted, cleaned slash path
func JoinPath(elem ...string) string {
	return path.Join(append([]string{"/"}, elem...)...)
}
