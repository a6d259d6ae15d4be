// Package nl2sql turns natural-language questions into validated, read-only
// SQL and executes it against a SQLite database.
package nl2sql

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a SQL assistant. Given the database schema below, write a single SQLite SELECT statement that answers the user's question.

Rules:
- Output exactly one SQL statement inside a ` + "```sql" + ` code fence.
- Read-only: SELECT (or WITH ... SELECT) only. Never modify data.
- Use only tables and columns from the schema.
- Limit results to at most %d rows unless the question asks for an aggregate.

Schema:
%s

Question: %s`

// Templater renders the model prompt for a question against a schema.
type Templater struct {
	maxRows int
}

// NewTemplater creates a Templater. maxRows is advertised to the model as the
// row budget (the executor enforces it regardless).
func NewTemplater(maxRows int) *Templater {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Templater{maxRows: maxRows}
}

// Render builds the prompt from the schema DDL and the user's question.
func (t *Templater) Render(schema, question string) string {
	return fmt.Sprintf(promptTemplate, t.maxRows, strings.TrimSpace(schema), strings.TrimSpace(question))
}

// ExtractSQL pulls the SQL statement out of a model reply. It prefers a
// fenced ```sql block, then any fenced block, then the raw reply when it
// already looks like a statement.
func ExtractSQL(reply string) (string, bool) {
	if s, ok := fencedBlock(reply, "```sql"); ok {
		return s, true
	}
	// An unlabeled fence can hold anything, so only trust it when the content
	// already reads as a statement.
	if s, ok := fencedBlock(reply, "```"); ok && looksLikeSelect(s) {
		return s, true
	}

	trimmed := strings.TrimSpace(reply)
	if looksLikeSelect(trimmed) {
		return strings.TrimSuffix(trimmed, ";"), true
	}
	return "", false
}

func looksLikeSelect(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "with")
}

func fencedBlock(reply, fence string) (string, bool) {
	start := strings.Index(reply, fence)
	if start < 0 {
		return "", false
	}
	rest := reply[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	s := strings.TrimSpace(rest[:end])
	s = strings.TrimSuffix(s, ";")
	if s == "" {
		return "", false
	}
	return s, true
}
