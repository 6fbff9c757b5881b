package vault

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

// DefaultTrashRetention is how long a soft-deleted entry stays purgeable
// before EmptyTrash removes it for good.
const DefaultTrashRetention = 30 * 24 * time.Hour

// Draft is the input shape for creating or updating an entry. Importers and
// the browser boundary both funnel through it.
type Draft struct {
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
	Category string
	Tags     []string
	Expires  *time.Time
	Favorite bool
}

func (d Draft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if d.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	return nil
}

// payload is the secret part of an entry, sealed as one unit.
type payload struct {
	Username string `cbor:"1,keyasint"`
	Password string `cbor:"2,keyasint"`
	URL      string `cbor:"3,keyasint,omitempty"`
	Notes    string `cbor:"4,keyasint,omitempty"`
}

// Entry is a fully decrypted entry: listing metadata plus secret fields.
type Entry struct {
	storage.EntryMeta
	Username string
	Password string
	URL      string
	Notes    string
}

func sealPayload(d Draft, key []byte, id string) (nonce, ciphertext []byte, err error) {
	plain, err := cbor.Marshal(payload{
		Username: d.Username,
		Password: d.Password,
		URL:      d.URL,
		Notes:    d.Notes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	defer crypto.ClearBytes(plain)
	return crypto.Seal(plain, key, []byte(id))
}

func openPayload(meta storage.EntryMeta, nonce, ciphertext, key []byte) (*Entry, error) {
	plain, err := crypto.Open(nonce, ciphertext, key, []byte(meta.ID))
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(plain)

	var p payload
	if err := cbor.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &Entry{
		EntryMeta: meta,
		Username:  p.Username,
		Password:  p.Password,
		URL:       p.URL,
		Notes:     p.Notes,
	}, nil
}

// Create validates the draft, seals its secret fields under the session key
// and stores the entry. Returns the new entry's ID.
func (v *Vault) Create(d Draft) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.checkSessionLocked()
	if err != nil {
		return "", err
	}
	return v.createLocked(d, key)
}

func (v *Vault) createLocked(d Draft, key []byte) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	nonce, ciphertext, err := sealPayload(d, key, id)
	if err != nil {
		return "", err
	}

	now := v.now()
	rec := storage.EntryRecord{
		Meta: storage.EntryMeta{
			ID:        id,
			Title:     d.Title,
			Category:  d.Category,
			Tags:      normalizeTags(d.Tags),
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: d.Expires,
			Favorite:  d.Favorite,
		},
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	if err := v.store.PutEntry(rec); err != nil {
		return "", fmt.Errorf("failed to store entry: %w", err)
	}
	if err := v.store.UpdateModified(); err != nil {
		v.log.Warn().Err(err).Msg("failed to update modification time")
	}

	v.log.Debug().Str("entry", id).Msg("entry created")
	return id, nil
}

// Read decrypts and returns one entry.
func (v *Vault) Read(id string) (*Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, err := v.sessionKey()
	if err != nil {
		return nil, err
	}
	return v.readLocked(id, key)
}

// readLocked requires at least a read lock.
func (v *Vault) readLocked(id string, key []byte) (*Entry, error) {
	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNotFound
	}
	nonce, ciphertext, err := v.store.GetBlob(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payload for %s: %w", id, err)
	}
	return openPayload(*meta, nonce, ciphertext, key)
}

// Update re-validates, re-seals with a fresh nonce and recomputes updatedAt.
// The entry ID never changes across edits.
func (v *Vault) Update(id string, d Draft) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.checkSessionLocked()
	if err != nil {
		return err
	}
	return v.updateLocked(id, d, key)
}

func (v *Vault) updateLocked(id string, d Draft, key []byte) error {
	if err := d.validate(); err != nil {
		return err
	}

	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}

	nonce, ciphertext, err := sealPayload(d, key, id)
	if err != nil {
		return err
	}

	meta.Title = d.Title
	meta.Category = d.Category
	meta.Tags = normalizeTags(d.Tags)
	meta.ExpiresAt = d.Expires
	meta.Favorite = d.Favorite
	meta.UpdatedAt = v.now()

	rec := storage.EntryRecord{Meta: *meta, Nonce: nonce, Ciphertext: ciphertext}
	if err := v.store.PutEntry(rec); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	if err := v.store.UpdateModified(); err != nil {
		v.log.Warn().Err(err).Msg("failed to update modification time")
	}

	v.log.Debug().Str("entry", id).Msg("entry updated")
	return nil
}

// SetFavorite toggles the favorite flag without touching the payload.
func (v *Vault) SetFavorite(id string, favorite bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}
	meta.Favorite = favorite
	meta.UpdatedAt = v.now()
	return v.store.PutEntryMeta(*meta)
}

// SoftDelete moves an entry to the trash. The payload stays sealed in the
// store until Purge or EmptyTrash.
func (v *Vault) SoftDelete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}
	now := v.now()
	meta.TrashedAt = &now
	if err := v.store.PutEntryMeta(*meta); err != nil {
		return err
	}
	v.log.Debug().Str("entry", id).Msg("entry moved to trash")
	return nil
}

// Restore takes an entry back out of the trash.
func (v *Vault) Restore(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}
	if meta.TrashedAt == nil {
		return ErrNotInTrash
	}
	meta.TrashedAt = nil
	return v.store.PutEntryMeta(*meta)
}

// Purge permanently deletes an entry and its payload.
func (v *Vault) Purge(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetEntryMeta(id)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}
	if err := v.store.DeleteEntry(id); err != nil {
		return err
	}
	v.log.Debug().Str("entry", id).Msg("entry purged")
	return nil
}

// EmptyTrash purges every trashed entry older than the retention window.
// Returns the IDs it removed.
func (v *Vault) EmptyTrash(retention time.Duration) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}
	now := v.now()
	var purged []string
	for _, meta := range entries {
		if meta.TrashedAt == nil {
			continue
		}
		if now.Sub(*meta.TrashedAt) < retention {
			continue
		}
		if err := v.store.DeleteEntry(meta.ID); err != nil {
			return purged, err
		}
		purged = append(purged, meta.ID)
	}
	if len(purged) > 0 {
		v.log.Info().Int("count", len(purged)).Msg("trash emptied")
	}
	return purged, nil
}

// Filter narrows List results. Zero value means "everything not in trash".
type Filter struct {
	Category     string
	Tag          string
	FavoriteOnly bool
	TrashOnly    bool
}

// List returns entry metadata only; it never decrypts and therefore needs no
// session.
func (v *Vault) List(f Filter) ([]storage.EntryMeta, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}

	out := make([]storage.EntryMeta, 0, len(entries))
	for _, meta := range entries {
		if f.TrashOnly != (meta.TrashedAt != nil) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(meta.Category, f.Category) {
			continue
		}
		if f.Tag != "" && !hasTag(meta.Tags, f.Tag) {
			continue
		}
		if f.FavoriteOnly && !meta.Favorite {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

// Search matches the query against unencrypted metadata first and decrypts
// only those candidates, so the decryption cost is bounded by the number of
// hits. With deep set, entries that did not match on metadata are decrypted
// too and matched on username, URL and notes.
func (v *Vault) Search(query string, deep bool) ([]*Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, err := v.sessionKey()
	if err != nil {
		return nil, err
	}

	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var results []*Entry
	for _, meta := range entries {
		if meta.TrashedAt != nil {
			continue
		}
		matched := strings.Contains(strings.ToLower(meta.Title), q) ||
			strings.Contains(strings.ToLower(meta.Category), q) ||
			tagsContain(meta.Tags, q)

		if !matched && !deep {
			continue
		}

		entry, err := v.readLocked(meta.ID, key)
		if err != nil {
			return nil, err
		}
		if !matched {
			matched = strings.Contains(strings.ToLower(entry.Username), q) ||
				strings.Contains(strings.ToLower(entry.URL), q) ||
				strings.Contains(strings.ToLower(entry.Notes), q)
		}
		if matched {
			results = append(results, entry)
		}
	}
	return results, nil
}

// Categories returns the distinct categories in use.
func (v *Vault) Categories() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, meta := range entries {
		if meta.Category == "" {
			continue
		}
		if _, ok := seen[meta.Category]; !ok {
			seen[meta.Category] = struct{}{}
			out = append(out, meta.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteCategory removes a category by reassigning its entries to
// uncategorized. Entries are never deleted by a category change.
func (v *Vault) DeleteCategory(name string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.store.ListEntries()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, meta := range entries {
		if !strings.EqualFold(meta.Category, name) {
			continue
		}
		meta.Category = ""
		meta.UpdatedAt = v.now()
		if err := v.store.PutEntryMeta(meta); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RenameCategory moves every entry from one category to another.
func (v *Vault) RenameCategory(from, to string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.store.ListEntries()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, meta := range entries {
		if !strings.EqualFold(meta.Category, from) {
			continue
		}
		meta.Category = to
		meta.UpdatedAt = v.now()
		if err := v.store.PutEntryMeta(meta); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// LookupByDomain returns the entries whose URL or title matches the given
// domain. Serves the browser-extension boundary.
func (v *Vault) LookupByDomain(domain string) ([]*Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, err := v.sessionKey()
	if err != nil {
		return nil, err
	}
	return v.lookupByDomainLocked(domain, key)
}

func (v *Vault) lookupByDomainLocked(domain string, key []byte) ([]*Entry, error) {
	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}

	domain = strings.ToLower(domain)
	var results []*Entry
	for _, meta := range entries {
		if meta.TrashedAt != nil {
			continue
		}
		entry, err := v.readLocked(meta.ID, key)
		if err != nil {
			return nil, err
		}
		if domainMatches(entry, domain) {
			results = append(results, entry)
		}
	}
	return results, nil
}

// SaveOrUpdate upserts a credential for a domain: an existing entry matching
// domain and username gets the new password, otherwise a new entry is
// created with the domain as its title. Lookup and write happen under one
// write lock, so concurrent upserts of the same credential cannot race into
// duplicate entries.
func (v *Vault) SaveOrUpdate(domain, username, password string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.checkSessionLocked()
	if err != nil {
		return "", err
	}

	matches, err := v.lookupByDomainLocked(domain, key)
	if err != nil {
		return "", err
	}
	for _, entry := range matches {
		if entry.Username != username {
			continue
		}
		d := Draft{
			Title:    entry.Title,
			Username: username,
			Password: password,
			URL:      entry.URL,
			Notes:    entry.Notes,
			Category: entry.Category,
			Tags:     entry.Tags,
			Expires:  entry.ExpiresAt,
			Favorite: entry.Favorite,
		}
		if err := v.updateLocked(entry.ID, d, key); err != nil {
			return "", err
		}
		return entry.ID, nil
	}

	return v.createLocked(Draft{
		Title:    domain,
		Username: username,
		Password: password,
		URL:      "https://" + domain,
	}, key)
}

// ForEachEntry streams decrypted entries to fn, bounded by the session's
// lifetime. Exporters consume this; fn must not retain the entry's secret
// fields past its return.
func (v *Vault) ForEachEntry(fn func(*Entry) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, err := v.sessionKey()
	if err != nil {
		return err
	}

	entries, err := v.store.ListEntries()
	if err != nil {
		return err
	}
	for _, meta := range entries {
		if meta.TrashedAt != nil {
			continue
		}
		entry, err := v.readLocked(meta.ID, key)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func hasTag(tags []string, tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func tagsContain(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}

func domainMatches(entry *Entry, domain string) bool {
	if u, err := url.Parse(entry.URL); err == nil && u.Host != "" {
		host := strings.ToLower(u.Host)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	title := strings.ToLower(entry.Title)
	return title == domain || strings.Contains(strings.ToLower(entry.URL), domain)
}
