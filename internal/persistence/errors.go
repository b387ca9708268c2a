package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKey is returned when a write references a missing parent record.
	ErrForeignKey = errors.New("persistence: foreign key violation")
	// ErrConflict is returned when the store is busy or concurrent writers contend.
	ErrConflict = errors.New("persistence: conflict")
)
