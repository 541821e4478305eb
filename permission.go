package webvfs

import "fmt"

// Permission is an ordinal access level, compared numerically
type Permission int

const (
	User Permission = iota
	Elevated
	System
)

// MaxPermission is the highest level a node may be created with
const MaxPermission = System

func (p Permission) String() string {
	switch p {
	case User:
		return "user"
	case Elevated:
		return "elevated"
	case System:
		return "system"
	default:
		return fmt.Sprintf("Permission(%d)", int(p))
	}
}

// Valid reports whether p is within User..System
func (p Permission) Valid() bool {
	return p >= User && p <= MaxPermission
}

// Allows reports whether a caller acting at the given level may act on a node
// requiring p. The core never calls this; it is for callers that gate access.
func (p Permission) Allows(acting Permission) bool {
	return acting >= p
}
