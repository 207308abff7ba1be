// Package db opens the SQL database behind the persistent cache tier.
// Only PostgreSQL and SQLite are supported.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/eventsense/store/db/postgres"
	"github.com/hrygo/eventsense/store/db/sqlite"
)

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	Driver   string
	BlobType string
	numbered bool
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Placeholders returns n comma separated bind parameters.
func (d Dialect) Placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, d.Placeholder(i))
	}
	return strings.Join(list, ", ")
}

var (
	SQLite   = Dialect{Driver: "sqlite", BlobType: "BLOB"}
	Postgres = Dialect{Driver: "postgres", BlobType: "BYTEA", numbered: true}
)

// Open connects to the database of driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var (
		conn *sql.DB
		d    Dialect
		err  error
	)
	switch driver {
	case "sqlite":
		conn, err = sqlite.Open(ctx, dsn)
		d = SQLite
	case "postgres":
		conn, err = postgres.Open(ctx, dsn)
		d = Postgres
	default:
		return nil, Dialect{}, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", driver)
	}
	if err != nil {
		return nil, Dialect{}, errors.Wrap(err, "failed to create db driver")
	}
	return conn, d, nil
}
