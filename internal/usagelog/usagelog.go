// Package usagelog implements the fire-and-forget usage accounting writer:
// one row per dispatch, never on the response latency path, failures
// logged and discarded.
package usagelog

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one usage record accepted by Writer.Log.
type Entry struct {
	UserID        uuid.UUID
	TokenID       uuid.UUID
	ModelID       uuid.UUID
	CategoryID    *uuid.UUID
	InputTokens   int
	OutputTokens  int
	LatencyMillis int64
	Timestamp     time.Time
}

// Record is a stored usage record as returned to the usage query API.
type Record struct {
	Entry
	ID uuid.UUID
}

// Facade composes the read-side Store and the write-side Writer into the
// single narrow interface the scheduler depends on.
type Facade struct {
	*Store
	*Writer
}

// NewFacade wraps a Store and Writer sharing one pool.
func NewFacade(store *Store, writer *Writer) *Facade {
	return &Facade{Store: store, Writer: writer}
}
