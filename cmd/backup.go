package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/live-labs/passlock/internal/backup"
	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/importer"
	"github.com/live-labs/passlock/internal/vault"
)

func collectEntries(v *vault.Vault) []*vault.Entry {
	var entries []*vault.Entry
	if err := v.ForEachEntry(func(e *vault.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		HandleError(err)
	}
	return entries
}

// Backup writes an encrypted archive of the whole vault. The backup password
// may differ from the master password.
func Backup(path string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	entries := collectEntries(v)

	fmt.Println("Choose a backup password (may differ from the master password).")
	password, err := ReadPasswordConfirm()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	archive, err := backup.Export(entries, password, time.Now())
	if err != nil {
		HandleError(err)
	}
	data, err := archive.Encode()
	if err != nil {
		HandleError(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		HandleError(fmt.Errorf("failed to write backup: %w", err))
	}
	fmt.Printf("Backed up %d entries to %s\n", len(entries), path)
}

// RestoreBackup imports an encrypted archive into the vault
func RestoreBackup(path string, replace, overwrite bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		HandleError(fmt.Errorf("failed to read backup: %w", err))
	}
	archive, err := backup.DecodeArchive(data)
	if err != nil {
		HandleError(err)
	}

	password, err := ReadPassword("Backup password: ")
	if err != nil {
		HandleError(err)
	}
	entries, err := backup.Decrypt(archive, password)
	crypto.ClearBytes(password)
	if err != nil {
		HandleError(err)
	}

	v := OpenVault()
	defer v.Close()
	Unlock(v)

	mode := vault.ImportMerge
	if replace {
		if !Confirm(fmt.Sprintf("Replace ALL current entries with the %d from the backup?", len(entries))) {
			return
		}
		mode = vault.ImportReplace
	}
	result, err := v.ApplyImport(entries, mode, overwrite)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Applied %d, overwrote %d, skipped %d\n",
		result.Applied, result.Overwritten, result.Skipped)
}

// Export writes the decrypted vault as plaintext JSON. Deliberately loud
// about what that means.
func Export(path string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	if !Confirm("This writes every password in PLAINTEXT. Continue?") {
		return
	}

	type exportEntry struct {
		Title    string     `json:"title"`
		Username string     `json:"username"`
		Password string     `json:"password"`
		URL      string     `json:"url,omitempty"`
		Notes    string     `json:"notes,omitempty"`
		Category string     `json:"category,omitempty"`
		Tags     []string   `json:"tags,omitempty"`
		Expires  *time.Time `json:"expiresAt,omitempty"`
		Favorite bool       `json:"favorite,omitempty"`
	}
	var out []exportEntry
	for _, e := range collectEntries(v) {
		out = append(out, exportEntry{
			Title:    e.Title,
			Username: e.Username,
			Password: e.Password,
			URL:      e.URL,
			Notes:    e.Notes,
			Category: e.Category,
			Tags:     e.Tags,
			Expires:  e.ExpiresAt,
			Favorite: e.Favorite,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		HandleError(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		HandleError(fmt.Errorf("failed to write export: %w", err))
	}
	fmt.Printf("Exported %d entries to %s (plaintext!)\n", len(out), path)
}

// Import reads an external export file and creates entries from it
func Import(path, format string) {
	var src importer.Source
	var err error
	if format != "" {
		src, err = importer.ForFormat(format)
	} else {
		src, err = importer.Detect(path)
	}
	if err != nil {
		HandleError(err)
	}

	f, err := os.Open(path)
	if err != nil {
		HandleError(fmt.Errorf("failed to open import file: %w", err))
	}
	defer f.Close()

	drafts, err := src.Parse(f)
	if err != nil {
		HandleError(err)
	}

	v := OpenVault()
	defer v.Close()
	Unlock(v)

	created, skipped := 0, 0
	for _, d := range drafts {
		if _, err := v.Create(d); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %q: %s\n", d.Title, err)
			skipped++
			continue
		}
		created++
	}
	fmt.Printf("Imported %d entries from %s (%s), skipped %d\n",
		created, path, src.Name(), skipped)
}

// Diff compares a backup archive against the live vault and prints a
// line-level diff. Passwords are masked; only a changed/unchanged marker
// leaks.
func Diff(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		HandleError(fmt.Errorf("failed to read backup: %w", err))
	}
	archive, err := backup.DecodeArchive(data)
	if err != nil {
		HandleError(err)
	}

	password, err := ReadPassword("Backup password: ")
	if err != nil {
		HandleError(err)
	}
	backupEntries, err := backup.Decrypt(archive, password)
	crypto.ClearBytes(password)
	if err != nil {
		HandleError(err)
	}

	v := OpenVault()
	defer v.Close()
	Unlock(v)

	liveText := renderEntries(collectEntries(v))
	backupText := renderEntries(backupEntries)

	if liveText == backupText {
		fmt.Println("Backup matches the live vault")
		return
	}

	// Line-mode diff keeps hunks aligned to whole entries
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(backupText, liveText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			fmt.Printf("%s%s\n", prefix, line)
		}
	}
}

// renderEntries produces a stable one-line-per-entry rendition for diffing.
// Password values never appear, only a fingerprint of whether they changed.
func renderEntries(entries []*vault.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		mask := "(empty)"
		if e.Password != "" {
			sum := crypto.Fingerprint([]byte(e.Password))
			mask = sum[:8]
		}
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %s | pw:%s",
			e.ID, e.Title, e.Username, e.URL, mask))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
