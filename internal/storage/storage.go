// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the database and pins the pool to a single connection:
// the inventory manager is one operator on one session.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: could not establish a good connection: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// AutoIncrementKey returns the column definition of an auto-assigned
// integer primary key for the given driver.
func AutoIncrementKey(driver, column string) string {
	switch driver {
	case "postgres":
		return column + " BIGSERIAL PRIMARY KEY"
	case "mysql":
		return column + " BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	default:
		return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// CreateTables runs each CREATE TABLE statement in order.
func CreateTables(ctx context.Context, db *sqlx.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: create table: %w", db.DriverName(), err)
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a primary key or unique constraint
// violation from any of the supported drivers.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
