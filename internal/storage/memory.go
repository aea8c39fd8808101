package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// MemoryQuotes keeps persisted quotes in memory.
type MemoryQuotes struct {
	mu     sync.Mutex
	quotes []shipping.Quote
}

// NewMemoryQuotes creates an empty quote store.
func NewMemoryQuotes() *MemoryQuotes {
	return &MemoryQuotes{}
}

// PersistQuote records a copy of q.
func (m *MemoryQuotes) PersistQuote(_ context.Context, q *shipping.Quote) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	m.quotes = append(m.quotes, cp)
	return cp.ID, nil
}

// Quotes returns the recorded quotes.
func (m *MemoryQuotes) Quotes() []shipping.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shipping.Quote(nil), m.quotes...)
}
