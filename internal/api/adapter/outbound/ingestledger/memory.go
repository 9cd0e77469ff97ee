package ingestledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
)

// Memory is a process-local ledger for single-instance runs and tests.
type Memory struct {
	mu      sync.Mutex
	pending map[string]domain.PendingBlob
}

var _ port.IngestLedger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{pending: make(map[string]domain.PendingBlob)}
}

func (m *Memory) Track(_ context.Context, blob domain.PendingBlob) error {
	m.mu.Lock()
	m.pending[blob.BlobRef] = blob
	m.mu.Unlock()
	return nil
}

func (m *Memory) Release(_ context.Context, blobRefs []string) error {
	m.mu.Lock()
	for _, ref := range blobRefs {
		delete(m.pending, ref)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Pending(_ context.Context, blobRefs []string) ([]domain.PendingBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.PendingBlob, 0, len(blobRefs))
	for _, ref := range blobRefs {
		if blob, ok := m.pending[ref]; ok {
			out = append(out, blob)
		}
	}
	return out, nil
}

// Expired returns the oldest refs tracked strictly before the given time.
func (m *Memory) Expired(_ context.Context, before time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for ref, blob := range m.pending {
		if blob.TrackedAt.Before(before) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := m.pending[out[i]].TrackedAt, m.pending[out[j]].TrackedAt
		if ti.Equal(tj) {
			return out[i] < out[j]
		}
		return ti.Before(tj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
