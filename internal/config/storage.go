package config

import (
	"fmt"
	"os"
)

// StorageKind selects where snapshots and downloaded documents live.
type StorageKind string

const (
	StorageLocal StorageKind = "local"
	StorageS3    StorageKind = "s3"
	StorageR2    StorageKind = "r2"
)

// StorageConfig configures the snapshot store.
type StorageConfig struct {
	Type         StorageKind `mapstructure:"type"`
	Dir          string      `mapstructure:"dir"` // local root directory
	Endpoint     string      `mapstructure:"endpoint"`
	AccessKey    string      `mapstructure:"access_key"`
	AccessKeyEnv string      `mapstructure:"access_key_env"`
	SecretKey    string      `mapstructure:"secret_key"`
	SecretKeyEnv string      `mapstructure:"secret_key_env"`
	UseSSL       bool        `mapstructure:"use_ssl"`
	Bucket       string      `mapstructure:"bucket"`
	Region       string      `mapstructure:"region"`
	Prefix       string      `mapstructure:"prefix"`
}

// ResolveEnvVars fills empty credentials from the named environment variables.
func (c *StorageConfig) ResolveEnvVars() {
	if c.AccessKeyEnv != "" && c.AccessKey == "" {
		c.AccessKey = os.Getenv(c.AccessKeyEnv)
	}
	if c.SecretKeyEnv != "" && c.SecretKey == "" {
		c.SecretKey = os.Getenv(c.SecretKeyEnv)
	}
}

// Validate checks that the storage configuration has all required fields.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case StorageLocal, "":
		if c.Dir == "" {
			return fmt.Errorf("storage: dir is required for local storage")
		}
	case StorageS3, StorageR2:
		if c.Endpoint == "" {
			return fmt.Errorf("storage %q: endpoint is required", c.Type)
		}
		if c.Bucket == "" {
			return fmt.Errorf("storage %q: bucket is required", c.Type)
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Type)
	}
	return nil
}
