// Package ledger persists the chunks an upload has already committed so an
// interrupted upload can resume where it stopped.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
)

// Ledger stores committed chunk descriptors per upload fingerprint.
type Ledger interface {
	// Load returns the committed chunks of fingerprint ordered by index, or nil.
	Load(ctx context.Context, fingerprint string) ([]domain.Chunk, error)
	// Append records one committed chunk. Recording the same index twice keeps the latest.
	Append(ctx context.Context, fingerprint string, chunk domain.Chunk) error
	// Delete drops every chunk of fingerprint.
	Delete(ctx context.Context, fingerprint string) error
}

// CommittedBytes sums the plaintext sizes of chunks.
func CommittedBytes(chunks []domain.Chunk) int64 {
	var total int64
	for _, c := range chunks {
		total += c.Size
	}
	return total
}

// Memory is a process-local Ledger.
type Memory struct {
	mu      sync.Mutex
	entries map[string]map[int]domain.Chunk
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]map[int]domain.Chunk)}
}

func (m *Memory) Load(_ context.Context, fingerprint string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	chunks := make([]domain.Chunk, 0, len(entry))
	for _, c := range entry {
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (m *Memory) Append(_ context.Context, fingerprint string, chunk domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[fingerprint]
	if !ok {
		entry = make(map[int]domain.Chunk)
		m.entries[fingerprint] = entry
	}
	entry[chunk.Index] = chunk
	return nil
}

func (m *Memory) Delete(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	delete(m.entries, fingerprint)
	m.mu.Unlock()
	return nil
}
