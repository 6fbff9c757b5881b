package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/live-labs/passlock/internal/config"
	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/keyring"
	"github.com/live-labs/passlock/internal/logging"
	"github.com/live-labs/passlock/internal/vault"
)

// OpenVault opens the configured database and returns the vault handle.
// The caller must Close it.
func OpenVault() *vault.Vault {
	cfg := config.FromEnv()
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		HandleError(fmt.Errorf("failed to create vault directory: %w", err))
	}
	log := logging.New(cfg.LogLevel)
	v, err := vault.Open(cfg.DBPath, log, vault.Options{IdleTimeout: cfg.AutoLock})
	if err != nil {
		HandleError(err)
	}
	return v
}

// Logger builds the process logger from the environment configuration.
func Logger() zerolog.Logger {
	return logging.New(config.FromEnv().LogLevel)
}

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures both match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// GetPassword retrieves the master password from the environment, the OS
// keyring (when a vault ID is known) or an interactive prompt, in that order.
// The caller must crypto.ClearBytes the result.
func GetPassword(v *vault.Vault, prompt string) ([]byte, error) {
	if password := config.PasswordFromEnv(); password != nil {
		return password, nil
	}
	if v != nil {
		if vaultID, err := v.VaultID(); err == nil {
			if stored, err := keyring.GetPassword(vaultID); err == nil && stored != "" {
				return []byte(stored), nil
			}
		}
	}
	return ReadPassword(prompt)
}

const maxUnlockAttempts = 3

// Unlock prompts until the vault opens or the attempt budget is spent.
// Repeated failures back off progressively; the vault only counts.
func Unlock(v *vault.Vault) {
	for i := 0; i < maxUnlockAttempts; i++ {
		password, err := GetPassword(v, "Enter master password: ")
		if err != nil {
			HandleError(err)
		}
		err = v.Unlock(password)
		crypto.ClearBytes(password)
		if err == nil {
			return
		}
		if !errors.Is(err, vault.ErrWrongPassword) {
			HandleError(err)
		}
		fmt.Fprintln(os.Stderr, "Error: incorrect master password")
		// A wrong password from the environment or keyring will not get
		// better by retrying.
		if config.PasswordFromEnv() != nil {
			os.Exit(1)
		}
		time.Sleep(time.Duration(v.Attempts()) * time.Second)
	}
	fmt.Fprintln(os.Stderr, "Error: too many failed attempts")
	os.Exit(1)
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}

// ReadLine reads one line of visible input.
func ReadLine(prompt string) string {
	fmt.Print(prompt)
	var line string
	fmt.Scanln(&line)
	return line
}

// HandleError prints a friendly message for known errors and exits
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: vault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'passlock init' first\n")
	case errors.Is(err, vault.ErrAlreadyInitialized):
		fmt.Fprintf(os.Stderr, "Error: vault already initialized\n")
		fmt.Fprintf(os.Stderr, "Use 'passlock status' to see current state\n")
	case errors.Is(err, vault.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: incorrect master password\n")
	case errors.Is(err, vault.ErrLocked):
		fmt.Fprintf(os.Stderr, "Error: vault is locked\n")
	case errors.Is(err, vault.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: no such entry\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

// ResolveEntry finds an entry by ID or unique title prefix.
func ResolveEntry(v *vault.Vault, ref string) string {
	entries, err := v.List(vault.Filter{})
	if err != nil {
		HandleError(err)
	}
	var matches []string
	for _, meta := range entries {
		if meta.ID == ref {
			return meta.ID
		}
		if containsFold(meta.Title, ref) {
			matches = append(matches, meta.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		HandleError(vault.ErrNotFound)
	default:
		fmt.Fprintf(os.Stderr, "Error: %q matches %d entries, use the entry ID\n", ref, len(matches))
		os.Exit(1)
	}
	return ""
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
