package config

// MountOptions holds high-level settings for mounting.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug  bool   // fuse debug logs
	FsName string // mount's FsName
	Name   string // mount's Name
}

// ObjectStoreOptions holds connection settings for the S3-compatible backend
type ObjectStoreOptions struct {
	Endpoint  string // host:port of the object store
	Bucket    string // bucket holding snapshots (Default "webvfs")
	Prefix    string // key prefix inside the bucket (Default "snapshots")
	AccessKey string
	SecretKey string
	UseSSL    bool
}
