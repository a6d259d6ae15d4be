package nl2sql

import (
	"errors"
	"testing"

	"github.com/kaia-ai/kaia/pkg/domain"
)

func TestValidatorAcceptsReadOnly(t *testing.T) {
	v := NewValidator(nil)
	for _, stmt := range []string{
		"SELECT * FROM users",
		"select id, name from users where id = 1;",
		"WITH recent AS (SELECT * FROM orders) SELECT count(*) FROM recent",
	} {
		if err := v.Validate(stmt); err != nil {
			t.Errorf("Validate(%q) = %v", stmt, err)
		}
	}
}

func TestValidatorRejectsMutations(t *testing.T) {
	v := NewValidator(nil)
	for _, stmt := range []string{
		"",
		"INSERT INTO users (name) VALUES ('x')",
		"UPDATE users SET name = 'x'",
		"DELETE FROM users",
		"DROP TABLE users",
		"SELECT * FROM users; DROP TABLE users;",
		"PRAGMA writable_schema = ON",
		"CREATE TABLE evil (id INTEGER)",
		"SELECT * FROM users WHERE id IN (SELECT 1); DELETE FROM users",
	} {
		err := v.Validate(stmt)
		if !errors.Is(err, domain.ErrSQLNotReadOnly) {
			t.Errorf("Validate(%q) = %v, want ErrSQLNotReadOnly", stmt, err)
		}
	}
}

func TestValidatorTableAllowlist(t *testing.T) {
	v := NewValidator([]string{"users", "orders"})

	if err := v.Validate("SELECT * FROM users JOIN orders ON users.id = orders.user_id"); err != nil {
		t.Errorf("allowed tables rejected: %v", err)
	}

	err := v.Validate("SELECT * FROM secrets")
	if !errors.Is(err, domain.ErrSQLNotReadOnly) {
		t.Errorf("Validate = %v, want ErrSQLNotReadOnly", err)
	}
}

func TestValidatorAllowlistPermitsCTENames(t *testing.T) {
	v := NewValidator([]string{"orders"})
	stmt := "WITH totals AS (SELECT user_id, sum(amount) AS s FROM orders GROUP BY user_id) SELECT * FROM totals"
	if err := v.Validate(stmt); err != nil {
		t.Errorf("CTE reference rejected: %v", err)
	}
}
