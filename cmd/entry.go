package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/vault"
)

// Add creates a new entry, prompting for any field not given on the flags
func Add(title, username, password, url, notes, category string, tags []string, generate bool, genLength int) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	if title == "" {
		title = ReadLine("Title: ")
	}
	if username == "" {
		username = ReadLine("Username: ")
	}
	if password == "" {
		if generate {
			generated, err := crypto.GeneratePassword(genLength, true)
			if err != nil {
				HandleError(err)
			}
			password = generated
			fmt.Printf("Generated password: %s\n", password)
		} else {
			raw, err := ReadPassword("Entry password: ")
			if err != nil {
				HandleError(err)
			}
			password = string(raw)
			crypto.ClearBytes(raw)
		}
	}

	id, err := v.Create(vault.Draft{
		Title:    title,
		Username: username,
		Password: password,
		URL:      url,
		Notes:    notes,
		Category: category,
		Tags:     tags,
	})
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Created entry %s\n", id)
}

// Get prints one entry. The password is only shown with showPassword set.
func Get(ref string, showPassword bool) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	entry, err := v.Read(ResolveEntry(v, ref))
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Title:    %s\n", entry.Title)
	fmt.Printf("Username: %s\n", entry.Username)
	if showPassword {
		fmt.Printf("Password: %s\n", entry.Password)
	} else {
		fmt.Printf("Password: ******** (use --show to reveal)\n")
	}
	if entry.URL != "" {
		fmt.Printf("URL:      %s\n", entry.URL)
	}
	if entry.Category != "" {
		fmt.Printf("Category: %s\n", entry.Category)
	}
	if len(entry.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(entry.Tags, ", "))
	}
	if entry.Notes != "" {
		fmt.Printf("Notes:    %s\n", entry.Notes)
	}
	if entry.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", entry.ExpiresAt.Format("2006-01-02"))
	}
	fmt.Printf("Updated:  %s\n", entry.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("ID:       %s\n", entry.ID)
}

// List prints entry metadata without decrypting anything
func List(category, tag string, favorites, trash bool) {
	v := OpenVault()
	defer v.Close()

	entries, err := v.List(vault.Filter{
		Category:     category,
		Tag:          tag,
		FavoriteOnly: favorites,
		TrashOnly:    trash,
	})
	if err != nil {
		HandleError(err)
	}
	if len(entries) == 0 {
		fmt.Println("No entries")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tCATEGORY\tTAGS\tUPDATED\tID")
	for _, meta := range entries {
		marker := ""
		if meta.Favorite {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n",
			marker, meta.Title, meta.Category, strings.Join(meta.Tags, ","),
			meta.UpdatedAt.Format("2006-01-02"), meta.ID)
	}
	w.Flush()
}

// Search finds entries matching the query
func Search(query string, deep bool) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	results, err := v.Search(query, deep)
	if err != nil {
		HandleError(err)
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tUSERNAME\tURL\tID")
	for _, entry := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Title, entry.Username, entry.URL, entry.ID)
	}
	w.Flush()
}

// Edit updates an entry, keeping any field the user leaves blank
func Edit(ref string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	id := ResolveEntry(v, ref)
	entry, err := v.Read(id)
	if err != nil {
		HandleError(err)
	}

	fmt.Println("Press enter to keep the current value.")
	d := vault.Draft{
		Title:    entry.Title,
		Username: entry.Username,
		Password: entry.Password,
		URL:      entry.URL,
		Notes:    entry.Notes,
		Category: entry.Category,
		Tags:     entry.Tags,
		Expires:  entry.ExpiresAt,
		Favorite: entry.Favorite,
	}
	if title := ReadLine(fmt.Sprintf("Title [%s]: ", entry.Title)); title != "" {
		d.Title = title
	}
	if username := ReadLine(fmt.Sprintf("Username [%s]: ", entry.Username)); username != "" {
		d.Username = username
	}
	raw, err := ReadPassword("Entry password [unchanged]: ")
	if err != nil {
		HandleError(err)
	}
	if len(raw) > 0 {
		d.Password = string(raw)
	}
	crypto.ClearBytes(raw)
	if url := ReadLine(fmt.Sprintf("URL [%s]: ", entry.URL)); url != "" {
		d.URL = url
	}
	if category := ReadLine(fmt.Sprintf("Category [%s]: ", entry.Category)); category != "" {
		d.Category = category
	}

	if err := v.Update(id, d); err != nil {
		HandleError(err)
	}
	fmt.Println("Entry updated")
}

// Remove moves an entry to the trash
func Remove(ref string) {
	v := OpenVault()
	defer v.Close()

	id := ResolveEntry(v, ref)
	if err := v.SoftDelete(id); err != nil {
		HandleError(err)
	}
	fmt.Printf("Moved %s to trash (restore with 'passlock restore %s')\n", id, id)
}

// Restore takes an entry back out of the trash
func Restore(ref string) {
	v := OpenVault()
	defer v.Close()

	entries, err := v.List(vault.Filter{TrashOnly: true})
	if err != nil {
		HandleError(err)
	}
	for _, meta := range entries {
		if meta.ID == ref || containsFold(meta.Title, ref) {
			if err := v.Restore(meta.ID); err != nil {
				HandleError(err)
			}
			fmt.Printf("Restored %s\n", meta.ID)
			return
		}
	}
	HandleError(vault.ErrNotFound)
}

// PurgeCmd permanently deletes an entry or empties the trash
func PurgeCmd(ref string, emptyTrash bool, force bool) {
	v := OpenVault()
	defer v.Close()

	if emptyTrash {
		if !force && !Confirm("Permanently delete all expired trash entries?") {
			return
		}
		purged, err := v.EmptyTrash(vault.DefaultTrashRetention)
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("Purged %d entries\n", len(purged))
		return
	}

	id := ResolveEntry(v, ref)
	if !force && !Confirm(fmt.Sprintf("Permanently delete %s? This cannot be undone", id)) {
		return
	}
	if err := v.Purge(id); err != nil {
		HandleError(err)
	}
	fmt.Printf("Purged %s\n", id)
}

// Favorite toggles the favorite flag on an entry
func Favorite(ref string, off bool) {
	v := OpenVault()
	defer v.Close()

	id := ResolveEntry(v, ref)
	if err := v.SetFavorite(id, !off); err != nil {
		HandleError(err)
	}
	if off {
		fmt.Printf("Removed %s from favorites\n", id)
	} else {
		fmt.Printf("Marked %s as favorite\n", id)
	}
}

// Gen generates and prints a random password without touching the vault
func Gen(length int, noSymbols bool) {
	password, err := crypto.GeneratePassword(length, !noSymbols)
	if err != nil {
		HandleError(err)
	}
	fmt.Println(password)
}
