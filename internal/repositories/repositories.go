// package repositories provides persistence layer implementations for the ledger types.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// boolToInt maps a bool onto SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expectOne checks that an UPDATE touched exactly one row, returning notFound otherwise.
func expectOne(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
