// Package repositories implements SQLite persistence for the run ledger.
//
// The ledger records every classification run and every assignment it reported, so assignments
// produced in approval mode can be synced later without re-running classification.
//
// Key Implementations:
//   - [RunRepository] : Run lifecycle and counters
//   - [AssignmentRepository] : Reported assignments and their sync status
//
// Feature vectors are stored as JSON text alongside each assignment.
package repositories
