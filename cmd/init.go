package cmd

import (
	"fmt"

	"github.com/live-labs/passlock/internal/config"
	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/keyring"
	"github.com/live-labs/passlock/internal/vault"
)

// Init creates a new vault and stores its master credential
func Init(saveToKeyring bool) {
	v := OpenVault()
	defer v.Close()

	if v.State() != vault.Uninitialized {
		HandleError(vault.ErrAlreadyInitialized)
	}

	password := config.PasswordFromEnv()
	if password == nil {
		var err error
		password, err = ReadPasswordConfirm()
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(password)

	if err := v.Setup(password); err != nil {
		HandleError(err)
	}

	if saveToKeyring {
		vaultID, err := v.VaultID()
		if err == nil {
			err = keyring.SavePassword(vaultID, string(password))
		}
		if err != nil {
			fmt.Printf("Warning: could not save password to keyring: %s\n", err)
		} else {
			fmt.Println("Master password saved to OS keyring")
		}
	}

	fmt.Println("Vault initialized")
	fmt.Println("The master password is not stored anywhere - you must remember it.")
}
