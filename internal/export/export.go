package export

import (
	"fmt"
	"os"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

// Document is everything a writer needs to produce one export
type Document struct {
	Repository string
	ExportedAt time.Time
	Fields     []Field
	Issues     []models.Issue
}

// Writer produces an export file
type Writer interface {
	Write(path string, doc Document) error
}

// WriterFor returns the writer for a format
func WriterFor(f Format) (Writer, error) {
	switch f {
	case FormatCSV:
		return CSVWriter{}, nil
	case FormatExcel:
		return ExcelWriter{}, nil
	case FormatJSON:
		return JSONWriter{}, nil
	case FormatSQLite:
		return SQLiteWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// Export writes doc to path using the format implied by the extension
func Export(path string, doc Document) error {
	if len(doc.Fields) == 0 {
		doc.Fields = DefaultFields
	}
	if doc.ExportedAt.IsZero() {
		doc.ExportedAt = time.Now()
	}
	w, err := WriterFor(FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := w.Write(path, doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path is an existing file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
