package nl2sql

import (
	"regexp"
	"strings"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// forbiddenKeywords are statement types and pragmas that can mutate state or
// escape the read-only sandbox. Matched as whole words, case-insensitive.
var forbiddenKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|truncate|attach|detach|vacuum|pragma|reindex)\b`)

// identAfterFromOrJoin captures table identifiers referenced by the query.
var identAfterFromOrJoin = regexp.MustCompile(`(?i)\b(?:from|join)\s+["` + "`" + `]?([a-zA-Z_][a-zA-Z0-9_]*)`)

// Validator enforces the read-only contract on generated SQL.
type Validator struct {
	allowedTables map[string]bool // nil = any table
}

// NewValidator creates a Validator. tables is an optional allowlist; empty
// means every table is permitted.
func NewValidator(tables []string) *Validator {
	v := &Validator{}
	if len(tables) > 0 {
		v.allowedTables = make(map[string]bool, len(tables))
		for _, t := range tables {
			v.allowedTables[strings.ToLower(t)] = true
		}
	}
	return v
}

// Validate checks that stmt is a single read-only SELECT (or WITH ... SELECT)
// touching only allowed tables. Returns ErrSQLNotReadOnly otherwise.
func (v *Validator) Validate(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return domain.NewDomainError("Validator.Validate", domain.ErrSQLNotReadOnly, "empty statement")
	}

	// A semicolon anywhere but the very end means multiple statements.
	if i := strings.Index(trimmed, ";"); i >= 0 && i != len(trimmed)-1 {
		return domain.NewDomainError("Validator.Validate", domain.ErrSQLNotReadOnly, "multiple statements")
	}
	trimmed = strings.TrimSuffix(trimmed, ";")

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return domain.NewDomainError("Validator.Validate", domain.ErrSQLNotReadOnly, "not a select statement")
	}

	if m := forbiddenKeywords.FindString(trimmed); m != "" {
		return domain.NewDomainError("Validator.Validate", domain.ErrSQLNotReadOnly, "forbidden keyword: "+strings.ToLower(m))
	}

	if v.allowedTables != nil {
		// CTE names introduced by WITH are legitimate non-table references.
		ctes := cteNames(lower)
		for _, m := range identAfterFromOrJoin.FindAllStringSubmatch(trimmed, -1) {
			name := strings.ToLower(m[1])
			if ctes[name] {
				continue
			}
			if !v.allowedTables[name] {
				return domain.NewDomainError("Validator.Validate", domain.ErrSQLNotReadOnly, "table not allowed: "+name)
			}
		}
	}

	return nil
}

var cteNamePattern = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\s+as\s*\(`)

func cteNames(lowerStmt string) map[string]bool {
	if !strings.HasPrefix(lowerStmt, "with") {
		return nil
	}
	names := make(map[string]bool)
	for _, m := range cteNamePattern.FindAllStringSubmatch(lowerStmt, -1) {
		names[m[1]] = true
	}
	return names
}
