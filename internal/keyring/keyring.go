// Package keyring stores the master password in the OS credential store as a
// convenience. The vault never reads it implicitly; the CLI asks.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "passlock"

// ErrNotStored is returned when the keyring holds no password for the vault.
var ErrNotStored = errors.New("no password stored for this vault")

// account namespaces the secret per vault, so several vaults on one machine
// keep separate keyring rows. Vault IDs are random, not path-derived, so the
// row survives moving the database file.
func account(vaultID string) string {
	return "vault:" + vaultID
}

// SavePassword stores the master password for one vault.
func SavePassword(vaultID, password string) error {
	if err := keyring.Set(service, account(vaultID), password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

// GetPassword retrieves the stored master password. Returns ErrNotStored
// when the keyring has no row for this vault.
func GetPassword(vaultID string) (string, error) {
	password, err := keyring.Get(service, account(vaultID))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotStored
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password from keyring: %w", err)
	}
	return password, nil
}

// DeletePassword removes the stored master password. Deleting a password
// that was never stored is not an error.
func DeletePassword(vaultID string) error {
	err := keyring.Delete(service, account(vaultID))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}

// HasPassword reports whether a password is stored for the vault.
func HasPassword(vaultID string) bool {
	_, err := GetPassword(vaultID)
	return err == nil
}
