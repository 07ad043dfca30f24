package repository

import (
	"context"
	"time"

	"fibermap/internal/codec"
)

// HistoryEntry records one committed mutation
type HistoryEntry struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	ElementID string    `json:"elementId,omitempty"`
	Revision  uint64    `json:"revision"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Repository defines the interface for topology data access
type Repository interface {
	// LoadTopology returns the stored document. An empty store yields a
	// document with no elements.
	LoadTopology(ctx context.Context) (*codec.Document, error)

	// SaveTopology replaces the stored topology with doc in one transaction
	SaveTopology(ctx context.Context, doc *codec.Document) error

	// Metadata holds small JSON values such as layer settings
	GetMeta(ctx context.Context, key string, target any) (bool, error)
	SetMeta(ctx context.Context, key string, value any) error

	// History
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)

	// Close releases resources
	Close() error
}
