// Package config resolves runtime settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// EnvPassword supplies the master password non-interactively, for
	// scripting. The CLI prefers it over prompting.
	EnvPassword = "PASSLOCK_PASSWORD"
	// EnvDBPath overrides the vault database location.
	EnvDBPath = "PASSLOCK_DB"
	// EnvLogLevel sets the log level (trace..error).
	EnvLogLevel = "PASSLOCK_LOG"
	// EnvAutoLock overrides the idle auto-lock timeout (Go duration syntax).
	EnvAutoLock = "PASSLOCK_AUTOLOCK"
)

// Config holds the resolved settings.
type Config struct {
	DBPath   string
	LogLevel string
	AutoLock time.Duration // zero means the vault default
}

// FromEnv reads the environment, falling back to defaults. The default
// database lives under the user's home directory.
func FromEnv() Config {
	cfg := Config{
		DBPath:   os.Getenv(EnvDBPath),
		LogLevel: os.Getenv(EnvLogLevel),
	}
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DBPath = filepath.Join(home, ".passlock", "vault.db")
	}
	if raw := os.Getenv(EnvAutoLock); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.AutoLock = d
		}
	}
	return cfg
}

// PasswordFromEnv returns a copy of the password from the environment, or nil
// when unset. Callers own the returned bytes and should scrub them.
func PasswordFromEnv() []byte {
	password := os.Getenv(EnvPassword)
	if password == "" {
		return nil
	}
	result := make([]byte, len(password))
	copy(result, password)
	return result
}
