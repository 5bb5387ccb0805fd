package export

import (
	"bufio"
	"os"
	"strings"
)

// CSVWriter writes a header row and one quoted row per issue
type CSVWriter struct{}

func (CSVWriter) Write(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	writeCSVRecord(w, Header(doc.Fields))
	for _, issue := range doc.Issues {
		writeCSVRecord(w, Row(issue, doc.Fields))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeCSVRecord quotes every field, doubling embedded quotes.
func writeCSVRecord(w *bufio.Writer, record []string) {
	for i, field := range record {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}
