// Package storage persists webvfs snapshots.
//
// Backends implement [webvfs.Backend] and are selected by configuration
// through the registry ([Register], [Open]). The [Manager] sits in front of the
// active backend and debounces saves.
package storage
