package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/live-labs/passlock/internal/vault"
)

// CSVSource parses a generic CSV export with a header row. Column names are
// matched case-insensitively against common aliases, so exports from most
// managers work without remapping.
type CSVSource struct{}

func (CSVSource) Name() string { return "csv" }

var csvAliases = map[string]string{
	"title": "title", "name": "title", "account": "title",
	"username": "username", "user": "username", "login": "username", "login_username": "username",
	"password": "password", "login_password": "password",
	"url": "url", "website": "url", "web site": "url", "login_uri": "url",
	"notes": "notes", "note": "notes", "comments": "notes", "extra": "notes",
	"category": "category", "folder": "category", "group": "category", "grouping": "category",
	"tags": "tags",
}

func (CSVSource) Parse(r io.Reader) ([]vault.Draft, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := map[int]string{}
	for i, name := range header {
		if field, ok := csvAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			columns[i] = field
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("csv header has no recognized columns")
	}

	var drafts []vault.Draft
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		var d vault.Draft
		for i, value := range record {
			field, ok := columns[i]
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch field {
			case "title":
				d.Title = value
			case "username":
				d.Username = value
			case "password":
				d.Password = value
			case "url":
				d.URL = value
			case "notes":
				d.Notes = value
			case "category":
				d.Category = value
			case "tags":
				d.Tags = splitTags(value)
			}
		}
		if d.Title == "" && d.URL != "" {
			d.Title = d.URL
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func splitTags(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' })
	var tags []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
