package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/live-labs/passlock/internal/vault"
)

// JSONSource parses a JSON array of entry objects, the format `export --json`
// produces, so a vault can be round-tripped through plaintext JSON.
type JSONSource struct{}

func (JSONSource) Name() string { return "json" }

type jsonEntry struct {
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

func (JSONSource) Parse(r io.Reader) ([]vault.Draft, error) {
	var raw []jsonEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse json export: %w", err)
	}
	drafts := make([]vault.Draft, 0, len(raw))
	for _, e := range raw {
		drafts = append(drafts, vault.Draft{
			Title:    e.Title,
			Username: e.Username,
			Password: e.Password,
			URL:      e.URL,
			Notes:    e.Notes,
			Category: e.Category,
			Tags:     e.Tags,
			Expires:  e.Expires,
			Favorite: e.Favorite,
		})
	}
	return drafts, nil
}
