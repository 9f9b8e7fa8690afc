package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrClosed    = errors.New("repository closed")
	ErrMigration = errors.New("schema migration failed")
)
