// Package importer maps external credential export formats onto entry
// drafts. Each source is a pure parser: it never touches encryption or the
// store, it only produces drafts for the vault's create path.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/live-labs/passlock/internal/vault"
)

// Source parses one external format into entry drafts.
type Source interface {
	Name() string
	Parse(r io.Reader) ([]vault.Draft, error)
}

// ForFormat returns the source for an explicit format name.
func ForFormat(format string) (Source, error) {
	switch strings.ToLower(format) {
	case "csv":
		return CSVSource{}, nil
	case "json":
		return JSONSource{}, nil
	case "chrome":
		return ChromeSource{}, nil
	default:
		return nil, fmt.Errorf("unknown import format %q (want csv, json or chrome)", format)
	}
}

// Detect guesses a source from the file name. Explicit formats win; this is
// only the fallback for `import <file>` without a flag.
func Detect(filename string) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return CSVSource{}, nil
	case ".json":
		return JSONSource{}, nil
	default:
		return nil, fmt.Errorf("cannot detect import format of %q, use --format", filename)
	}
}
