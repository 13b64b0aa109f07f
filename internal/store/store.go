// Package store is the durable-store access layer. The Postgres tables it
// fronts are the only communication channel between pipeline stages: producers
// append, the generator inserts signals, and the sizer/executor/reconciler
// advance them through a claim-lease protocol with optimistic versioning.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrOpenSignalExists is returned by InsertSignal when a non-terminal
	// signal already exists for the same (symbol, side). Callers treat it as
	// suppression, not failure.
	ErrOpenSignalExists = errors.New("open signal already exists for symbol/side")

	// ErrVersionConflict is returned by CommitTransition when the row changed
	// since it was claimed. Under correct claim discipline this never fires;
	// it is defended against anyway.
	ErrVersionConflict = errors.New("signal version conflict")
)

// Store wraps a gorm handle with the claim/transition operations the pipeline
// stages are allowed to perform.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only operator queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}
