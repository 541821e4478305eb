package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/webvfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration values for the virtual file system.
type Config struct {
	MountOptions
	ObjectStore ObjectStoreOptions

	Name       string        // Facade name used to derive backend db/key/file names (Default "webvfs")
	LogLvl     util.LogLevel // Internal log level (Default info)
	Backend    string        // Registered backend type: bolt, local, private, handle, object (Default "bolt")
	DataDir    string        // Directory for file based backends (Default ".webvfs")
	SaveDelay  time.Duration // Debounce quiet period before saving (Default 500ms)
	LocalQuota int           // Byte ceiling for the local string store (Default 5MB)
	HandlePath string        // File granted to the handle backend at startup; empty leaves it not ready
	SeedPath   string        // Optional snapshot JSON used to seed an empty tree
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Name        *string `yaml:"name,omitempty" json:"name,omitempty"`
	LogLvl      *int    `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"` // verbosity 1 (error) .. 5 (trace)
	Backend     *string `yaml:"backend,omitempty" json:"backend,omitempty"`
	DataDir     *string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	SaveDelayMs *int    `yaml:"save_delay_ms,omitempty" json:"save_delay_ms,omitempty"`
	LocalQuota  *int    `yaml:"local_quota,omitempty" json:"local_quota,omitempty"`
	HandlePath  *string `yaml:"handle_path,omitempty" json:"handle_path,omitempty"`
	SeedPath    *string `yaml:"seed_path,omitempty" json:"seed_path,omitempty"`

	FsName  *string `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	MntName *string `yaml:"mount_name,omitempty" json:"mount_name,omitempty"`
	Debug   *bool   `yaml:"debug,omitempty" json:"debug,omitempty"`

	ObjectEndpoint  *string `yaml:"object_endpoint,omitempty" json:"object_endpoint,omitempty"`
	ObjectBucket    *string `yaml:"object_bucket,omitempty" json:"object_bucket,omitempty"`
	ObjectPrefix    *string `yaml:"object_prefix,omitempty" json:"object_prefix,omitempty"`
	ObjectAccessKey *string `yaml:"object_access_key,omitempty" json:"object_access_key,omitempty"`
	ObjectSecretKey *string `yaml:"object_secret_key,omitempty" json:"object_secret_key,omitempty"`
	ObjectUseSSL    *bool   `yaml:"object_use_ssl,omitempty" json:"object_use_ssl,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultMntName,
		},
		ObjectStore: ObjectStoreOptions{
			Bucket: DefaultObjectBucket,
			Prefix: DefaultObjectPrefix,
		},
		Name:       DefaultName,
		LogLvl:     DefaultLogLvl,
		Backend:    DefaultBackend,
		DataDir:    DefaultDataDir,
		SaveDelay:  DefaultSaveDelayMs * time.Millisecond,
		LocalQuota: DefaultLocalQuota,
	}
}

// NewConfig returns the defaults with override applied; a nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbose(*override.LogLvl)
	}
	if override.Backend != nil {
		c.Backend = *override.Backend
	}
	if override.DataDir != nil {
		c.DataDir = *override.DataDir
	}
	if override.SaveDelayMs != nil {
		c.SaveDelay = time.Duration(*override.SaveDelayMs) * time.Millisecond
	}
	if override.LocalQuota != nil {
		c.LocalQuota = *override.LocalQuota
	}
	if override.HandlePath != nil {
		c.HandlePath = *override.HandlePath
	}
	if override.SeedPath != nil {
		c.SeedPath = *override.SeedPath
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.MntName != nil {
		c.MountOptions.Name = *override.MntName
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.ObjectEndpoint != nil {
		c.ObjectStore.Endpoint = *override.ObjectEndpoint
	}
	if override.ObjectBucket != nil {
		c.ObjectStore.Bucket = *override.ObjectBucket
	}
	if override.ObjectPrefix != nil {
		c.ObjectStore.Prefix = *override.ObjectPrefix
	}
	if override.ObjectAccessKey != nil {
		c.ObjectStore.AccessKey = *override.ObjectAccessKey
	}
	if override.ObjectSecretKey != nil {
		c.ObjectStore.SecretKey = *override.ObjectSecretKey
	}
	if override.ObjectUseSSL != nil {
		c.ObjectStore.UseSSL = *override.ObjectUseSSL
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
