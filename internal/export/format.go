package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an output file format
type Format string

const (
	FormatCSV    Format = "csv"
	FormatExcel  Format = "xlsx"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported format
var Formats = []Format{FormatCSV, FormatExcel, FormatJSON, FormatSQLite}

// FormatFromPath picks the format from the output extension, CSV by default
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatExcel
	case ".json":
		return FormatJSON
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Extension returns the canonical file extension of a format
func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatJSON:
		return ".json"
	case FormatSQLite:
		return ".db"
	default:
		return ".csv"
	}
}

// ParseFormat resolves a format name
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", name)
}

// WithFormat replaces the extension of path with the format's extension
func WithFormat(path string, f Format) string {
	if FormatFromPath(path) == f && filepath.Ext(path) != "" {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + f.Extension()
}
