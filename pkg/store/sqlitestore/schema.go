package sqlitestore

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// createSchema runs every statement in schema.sql in one transaction.
func createSchema(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for n, statement := range schemaStatements(schema) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("statement %d failed: \"%s\" : %w", n+1, statement, err)
		}
	}
	return tx.Commit()
}

// schemaStatements splits a script on ';' after dropping "--" comments and
// blank lines.
func schemaStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		line, _, _ = strings.Cut(line, "--")
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	var statements []string
	for _, statement := range strings.Split(strings.Join(lines, "\n"), ";") {
		if statement = strings.TrimSpace(statement); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}
