package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
)

// MemoryStore is an exact-scan, in-process implementation of
// interfaces.VectorStore. It backs tests and small local corpora; vectors
// are assumed normalized, so cosine similarity is a dot product.
type MemoryStore struct {
	mu    sync.RWMutex
	items []interfaces.StoredChunk
	index map[string]int
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

// Store upserts a single chunk.
func (m *MemoryStore) Store(_ context.Context, chunk interfaces.StoredChunk) error {
	if len(chunk.Vector) == 0 {
		return ErrEmptyVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[chunk.ID]; ok {
		m.items[i] = chunk
		return nil
	}
	m.index[chunk.ID] = len(m.items)
	m.items = append(m.items, chunk)
	return nil
}

// StoreBatch upserts a batch of chunks.
func (m *MemoryStore) StoreBatch(ctx context.Context, chunks []interfaces.StoredChunk) error {
	for _, chunk := range chunks {
		if err := m.Store(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Search scans all stored chunks and returns the k nearest by cosine
// distance. Ties keep insertion order.
func (m *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]interfaces.SearchResult, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]interfaces.SearchResult, 0, len(m.items))
	for _, item := range m.items {
		results = append(results, interfaces.SearchResult{
			Text:     item.Text,
			Metadata: item.Metadata,
			Distance: 1 - dot(vector, item.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// DeleteAll removes every stored chunk.
func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.index = make(map[string]int)
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
