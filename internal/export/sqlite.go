package export

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteWriter writes an issues table with one TEXT column per field,
// plus a comments table when comments were fetched
type SQLiteWriter struct{}

const commentsSchema = `
CREATE TABLE comments (
	id INTEGER PRIMARY KEY,
	issue_number INTEGER NOT NULL,
	author TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX idx_comments_issue ON comments(issue_number);
`

func (SQLiteWriter) Write(path string, doc Document) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := writeTables(tx, doc); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func writeTables(tx *sql.Tx, doc Document) error {
	if _, err := tx.Exec(`DROP TABLE IF EXISTS issues; DROP TABLE IF EXISTS comments;`); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	cols := make([]string, len(doc.Fields))
	marks := make([]string, len(doc.Fields))
	for i, f := range doc.Fields {
		cols[i] = quoteIdent(string(f))
		marks[i] = "?"
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE issues (%s TEXT)", strings.Join(cols, " TEXT, "))); err != nil {
		return fmt.Errorf("failed to create issues table: %w", err)
	}
	if _, err := tx.Exec(commentsSchema); err != nil {
		return fmt.Errorf("failed to create comments table: %w", err)
	}

	insertIssue, err := tx.Prepare(fmt.Sprintf("INSERT INTO issues (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer insertIssue.Close()

	insertComment, err := tx.Prepare(`INSERT INTO comments (id, issue_number, author, body, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertComment.Close()

	for _, issue := range doc.Issues {
		row := Row(issue, doc.Fields)
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := insertIssue.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert issue #%d: %w", issue.Number, err)
		}
		for _, c := range issue.Comments {
			if _, err := insertComment.Exec(c.ID, issue.Number, c.User.Login, c.Body, c.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert comment %d: %w", c.ID, err)
			}
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
