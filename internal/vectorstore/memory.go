package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rag-lab/server/internal/domain"
)

// Memory is an in-process Store using brute-force Euclidean search.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	rows      map[string]Row
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty, uninitialized store.
func NewMemory() *Memory {
	return &Memory{}
}

// State reports whether the index has been created.
func (m *Memory) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rows == nil {
		return Uninitialized
	}
	return Ready
}

// Dimensions returns the index dimensionality, or 0 before the first upsert.
func (m *Memory) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// ensureIndex creates the index with the given dimensionality. Callers hold mu.
func (m *Memory) ensureIndex(dim int) {
	if m.rows != nil {
		return
	}
	m.dimension = dim
	m.rows = make(map[string]Row)
}

// Upsert adds or replaces rows.
func (m *Memory) Upsert(_ context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := CheckRows(rows, m.dimension)
	if err != nil {
		return err
	}
	m.ensureIndex(dim)

	for _, r := range rows {
		r.Vector = append([]float32(nil), r.Vector...)
		m.rows[r.ChunkID] = r
	}
	return nil
}

// Search scans every row of the collection.
func (m *Memory) Search(_ context.Context, query []float32, collectionID string, limit int) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.rows == nil {
		return []Result{}, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), m.dimension)
	}

	results := make([]Result, 0)
	for _, r := range m.rows {
		if r.CollectionID != collectionID {
			continue
		}
		results = append(results, Result{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Distance:   L2Distance(query, r.Vector),
		})
	}
	return Rank(results, limit), nil
}

// DeleteByDocument removes every row of the document.
func (m *Memory) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.DocumentID == documentID {
			delete(m.rows, id)
		}
	}
	return nil
}

// DeleteByCollection removes every row of the collection.
func (m *Memory) DeleteByCollection(_ context.Context, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.CollectionID == collectionID {
			delete(m.rows, id)
		}
	}
	return nil
}

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}
