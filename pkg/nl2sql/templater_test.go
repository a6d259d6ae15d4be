package nl2sql

import (
	"strings"
	"testing"
)

func TestTemplaterRender(t *testing.T) {
	tpl := NewTemplater(50)
	prompt := tpl.Render("CREATE TABLE users (id INTEGER, name TEXT);", "How many users are there?")

	for _, want := range []string{
		"CREATE TABLE users",
		"How many users are there?",
		"at most 50 rows",
		"```sql",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestExtractSQL(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{
			name:  "sql fence",
			reply: "Here you go:\n```sql\nSELECT * FROM users;\n```\nThat answers it.",
			want:  "SELECT * FROM users",
			ok:    true,
		},
		{
			name:  "bare fence",
			reply: "```\nSELECT count(*) FROM orders\n```",
			want:  "SELECT count(*) FROM orders",
			ok:    true,
		},
		{
			name:  "raw select",
			reply: "SELECT id FROM users",
			want:  "SELECT id FROM users",
			ok:    true,
		},
		{
			name:  "raw with",
			reply: "WITH t AS (SELECT 1) SELECT * FROM t;",
			want:  "WITH t AS (SELECT 1) SELECT * FROM t",
			ok:    true,
		},
		{
			name:  "prose only",
			reply: "I cannot answer that question.",
			ok:    false,
		},
		{
			name:  "empty fence",
			reply: "```sql\n```",
			ok:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractSQL(tc.reply)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
