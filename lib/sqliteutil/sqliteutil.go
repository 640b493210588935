package sqliteutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// OpenDB opens the database named by `path` and applies the schema.
// A path starting with libsql:// is dialed as a remote libsql database,
// anything else is treated as a local sqlite file (":memory:" works).
func OpenDB(schema, path string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if strings.HasPrefix(path, "libsql://") {
		db, err = sql.Open("libsql", path)
	} else {
		db, err = sql.Open("sqlite", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
