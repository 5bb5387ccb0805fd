package export

import (
	"encoding/json"
	"os"
	"time"
)

const documentVersion = "1.0"

type jsonDocument struct {
	Version    string              `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Repository string              `json:"repository"`
	Fields     []string            `json:"fields"`
	Issues     []map[string]string `json:"issues"`
}

// JSONWriter writes a versioned envelope keyed by field name
type JSONWriter struct{}

func (JSONWriter) Write(path string, doc Document) error {
	out := jsonDocument{
		Version:    documentVersion,
		ExportedAt: doc.ExportedAt.UTC(),
		Repository: doc.Repository,
		Fields:     Header(doc.Fields),
		Issues:     make([]map[string]string, 0, len(doc.Issues)),
	}
	for _, issue := range doc.Issues {
		rec := make(map[string]string, len(doc.Fields))
		for _, f := range doc.Fields {
			rec[string(f)] = Value(issue, f)
		}
		out.Issues = append(out.Issues, rec)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
