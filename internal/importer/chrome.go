package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/live-labs/passlock/internal/vault"
)

// ChromeSource parses the password CSV that Chrome and other Chromium
// browsers export: name,url,username,password and optionally note. Entries
// without a name fall back to the URL's host as the title.
type ChromeSource struct{}

func (ChromeSource) Name() string { return "chrome" }

func (ChromeSource) Parse(r io.Reader) ([]vault.Draft, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"url", "username", "password"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("not a chrome password export: missing %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var drafts []vault.Draft
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed chrome export: %w", err)
		}
		d := vault.Draft{
			Title:    field(record, "name"),
			Username: field(record, "username"),
			Password: field(record, "password"),
			URL:      field(record, "url"),
			Notes:    field(record, "note"),
		}
		if d.Title == "" {
			if u, err := url.Parse(d.URL); err == nil && u.Host != "" {
				d.Title = u.Host
			} else {
				d.Title = d.URL
			}
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
