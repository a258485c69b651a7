package db

import "strings"

// IsUniqueViolation reports whether err looks like a unique-constraint
// failure. With a constraint name it matches that specific index; without
// one it falls back to the generic Postgres and SQLite phrasings, since
// tests run on the sqlite driver.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
