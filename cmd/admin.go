package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/keyring"
	"github.com/live-labs/passlock/internal/vault"
)

// Passwd changes the master password and re-encrypts every entry
func Passwd() {
	v := OpenVault()
	defer v.Close()

	current, err := GetPassword(v, "Current master password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(current)

	if err := v.Unlock(current); err != nil {
		HandleError(err)
	}

	fmt.Println("Choose a new master password.")
	next, err := ReadPasswordConfirm()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(next)

	if err := v.ChangeMasterPassword(current, next); err != nil {
		HandleError(err)
	}

	// A stale keyring copy would lock the user out on the next run
	if vaultID, err := v.VaultID(); err == nil && keyring.HasPassword(vaultID) {
		if err := keyring.SavePassword(vaultID, string(next)); err != nil {
			fmt.Printf("Warning: could not update keyring copy: %s\n", err)
		} else {
			fmt.Println("Keyring copy updated")
		}
	}

	if err := v.Compact(); err != nil {
		fmt.Printf("Warning: compaction failed: %s\n", err)
	}
	fmt.Println("Master password changed, all entries re-encrypted")

	if contacts, err := v.ListEmergencyContacts(); err == nil && len(contacts) > 0 {
		fmt.Printf("Note: %d emergency contact(s) hold escrows of the old key and must be re-added.\n", len(contacts))
	}
}

// Status shows vault state without requiring a password
func Status() {
	v := OpenVault()
	defer v.Close()

	fmt.Printf("State:    %s\n", v.State())
	if v.State() == vault.Uninitialized {
		fmt.Println("Run 'passlock init' to create a vault.")
		return
	}

	entries, err := v.List(vault.Filter{})
	if err != nil {
		HandleError(err)
	}
	trashed, err := v.List(vault.Filter{TrashOnly: true})
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Entries:  %d (%d in trash)\n", len(entries), len(trashed))

	if modified, err := v.LastModified(); err == nil {
		fmt.Printf("Modified: %s\n", modified.Format("2006-01-02 15:04:05"))
	}
	if params, err := v.KDFParams(); err == nil {
		fmt.Printf("KDF:      argon2id v%d (t=%d, m=%d KiB, p=%d)\n",
			params.Version, params.Time, params.MemoryKiB, params.Threads)
	}
	if vaultID, err := v.VaultID(); err == nil {
		fmt.Printf("Keyring:  %v\n", keyring.HasPassword(vaultID))
	}

	categories, err := v.Categories()
	if err == nil && len(categories) > 0 {
		fmt.Printf("Categories: %s\n", strings.Join(categories, ", "))
	}
}

// Verify iterates all entries and confirms every authentication tag
func Verify() {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	report, err := v.VerifyIntegrity()
	if err != nil {
		HandleError(err)
	}
	if len(report.Failed) == 0 {
		fmt.Printf("OK: all %d entries verified\n", report.Checked)
		return
	}
	fmt.Fprintf(os.Stderr, "INTEGRITY FAILURE: %d of %d entries failed verification:\n",
		len(report.Failed), report.Checked)
	for _, id := range report.Failed {
		fmt.Fprintf(os.Stderr, "  %s\n", id)
	}
	fmt.Fprintln(os.Stderr, "Restore these entries from a backup.")
	os.Exit(1)
}

// Compact reclaims unused space in the vault database
func Compact() {
	v := OpenVault()
	defer v.Close()

	if err := v.Compact(); err != nil {
		HandleError(err)
	}
	fmt.Println("Vault compacted")
}

// Destroy deletes the vault and its keyring copy after explicit confirmation
func Destroy(force bool) {
	v := OpenVault()
	defer v.Close()

	if !force {
		fmt.Println("This permanently deletes the vault and every entry in it.")
		if ReadLine("Type 'destroy' to confirm: ") != "destroy" {
			fmt.Println("Aborted")
			return
		}
	}

	if vaultID, err := v.VaultID(); err == nil {
		_ = keyring.DeletePassword(vaultID)
	}
	if err := v.Destroy(); err != nil {
		HandleError(err)
	}
	fmt.Println("Vault destroyed")
}

// Categories lists, renames or deletes categories
func Categories(deleteName, renameFrom, renameTo string) {
	v := OpenVault()
	defer v.Close()

	switch {
	case deleteName != "":
		count, err := v.DeleteCategory(deleteName)
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("Reassigned %d entries to uncategorized\n", count)
	case renameFrom != "":
		count, err := v.RenameCategory(renameFrom, renameTo)
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("Moved %d entries to %q\n", count, renameTo)
	default:
		categories, err := v.Categories()
		if err != nil {
			HandleError(err)
		}
		if len(categories) == 0 {
			fmt.Println("No categories")
			return
		}
		for _, c := range categories {
			fmt.Println(c)
		}
	}
}
