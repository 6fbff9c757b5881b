package cmd

import (
	"fmt"
	"os"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/keyring"
)

// KeyringSave stores the master password in the OS keyring
func KeyringSave() {
	v := OpenVault()
	defer v.Close()

	vaultID, err := v.VaultID()
	if err != nil {
		HandleError(err)
	}

	password, err := ReadPassword("Enter master password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	// Verify before saving so a typo cannot poison the keyring
	if err := v.Unlock(password); err != nil {
		HandleError(err)
	}
	v.Lock()

	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("Master password saved to keyring")
}

// KeyringDelete removes the master password from the OS keyring
func KeyringDelete() {
	v := OpenVault()
	defer v.Close()

	vaultID, err := v.VaultID()
	if err != nil {
		HandleError(err)
	}
	if !keyring.HasPassword(vaultID) {
		fmt.Println("No password stored in keyring")
		return
	}
	if err := keyring.DeletePassword(vaultID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}
	fmt.Println("Master password removed from keyring")
}

// KeyringStatus reports whether the keyring holds the master password
func KeyringStatus() {
	v := OpenVault()
	defer v.Close()

	vaultID, err := v.VaultID()
	if err != nil {
		HandleError(err)
	}
	if keyring.HasPassword(vaultID) {
		fmt.Println("Master password is stored in the OS keyring")
	} else {
		fmt.Println("Master password is not stored in the keyring")
	}
}
