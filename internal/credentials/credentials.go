// Package credentials loads API keys from standard locations.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds API keys loaded from credentials.toml
type Credentials struct {
	Model *ProviderCreds `toml:"model"`
}

// ProviderCreds holds credentials for a single endpoint
type ProviderCreds struct {
	APIKey    string `toml:"api_key"`
	APIKeyEnv string `toml:"api_key_env"`
}

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{"credentials.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "phonepilot", "credentials.toml"),
			filepath.Join(home, ".phonepilot", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first available standard location
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil // No credentials file found (not an error)
}

// LoadFile loads credentials from a specific file
func LoadFile(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Apply exports the loaded key into the environment variable the config
// layer reads, without clobbering a value the user already exported.
func (c *Credentials) Apply(defaultEnv string) {
	if c == nil || c.Model == nil || c.Model.APIKey == "" {
		return
	}
	env := c.Model.APIKeyEnv
	if env == "" {
		env = defaultEnv
	}
	if env != "" {
		setIfEmpty(env, c.Model.APIKey)
	}
}

func setIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
