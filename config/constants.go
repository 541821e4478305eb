package config

import "github.com/brettbedarf/webvfs/internal/util"

// Bytes per MB
const MB = 1024 * 1024

// Log verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultName names the facade; backends derive their database, key and
	// file names from it
	DefaultName = "webvfs"

	DefaultLogLvl = util.InfoLevel

	// DefaultBackend is the bbolt key-value store
	DefaultBackend = "bolt"

	DefaultDataDir = ".webvfs"

	// DefaultSaveDelayMs is the debounce quiet period before a snapshot is saved
	DefaultSaveDelayMs = 500

	// DefaultLocalQuota is the ceiling for the synchronous string store
	DefaultLocalQuota = 5 * MB

	DefaultObjectBucket = "webvfs"
	DefaultObjectPrefix = "snapshots"

	DefaultFsName  = "webvfs"
	DefaultMntName = "webvfs"
)
