package metastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
)

// Memory is a MetadataStore held in process memory, with the same guarantees
// as Postgres: atomic saves, one live name per owner and a guarded quota.
type Memory struct {
	mu           sync.RWMutex
	files        map[string]*domain.File
	usage        map[string]*domain.Usage
	defaultQuota int64
}

var _ port.MetadataStore = (*Memory)(nil)

func NewMemory(defaultQuota int64) *Memory {
	return &Memory{
		files:        make(map[string]*domain.File),
		usage:        make(map[string]*domain.Usage),
		defaultQuota: defaultQuota,
	}
}

func (m *Memory) SaveFileTransactional(_ context.Context, file *domain.File, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[file.ID]; ok {
		return fmt.Errorf("%w: file id %s", domain.ErrConflict, file.ID)
	}
	if file.OwnerID != "" {
		for _, f := range m.files {
			if f.OwnerID == file.OwnerID && f.Name == file.Name && f.Live() {
				return fmt.Errorf("%w: %s", domain.ErrConflict, file.Name)
			}
		}

		u := m.usageLocked(file.OwnerID)
		if !u.Allows(file.Size) {
			return fmt.Errorf("%w: %d bytes for %s", domain.ErrQuotaExceeded, file.Size, file.OwnerID)
		}
		u.Used += file.Size
	}

	stored := *file
	stored.Chunks = append([]domain.Chunk(nil), chunks...)
	m.files[file.ID] = &stored
	return nil
}

func (m *Memory) GetFileByName(_ context.Context, name string, ownerID string) (*domain.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *domain.File
	for _, f := range m.files {
		if f.Name != name || !f.Live() {
			continue
		}
		if best == nil || resolvesBefore(f, best, ownerID) {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return cloneFile(best), nil
}

// resolvesBefore orders candidates: owned by ownerID, then public, then newest.
func resolvesBefore(a, b *domain.File, ownerID string) bool {
	aOwned, bOwned := ownerID != "" && a.OwnerID == ownerID, ownerID != "" && b.OwnerID == ownerID
	if aOwned != bOwned {
		return aOwned
	}
	if a.IsPublic != b.IsPublic {
		return a.IsPublic
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (m *Memory) GetOwnedFile(_ context.Context, name string, ownerID string) (*domain.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *domain.File
	for _, f := range m.files {
		if f.Name != name || f.OwnerID != ownerID {
			continue
		}
		switch {
		case best == nil:
			best = f
		case f.Live() && !best.Live():
			best = f
		case !f.Live() && !best.Live() && f.DeletedAt.After(*best.DeletedAt):
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return cloneFile(best), nil
}

func (m *Memory) GetUsage(_ context.Context, ownerID string) (domain.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.usage[ownerID]; ok {
		return *u, nil
	}
	return domain.Usage{Limit: m.defaultQuota}, nil
}

func (m *Memory) UpdateUsage(_ context.Context, ownerID string, deltaBytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.usageLocked(ownerID)
	u.Used = max(u.Used+deltaBytes, 0)
	return nil
}

// SetLimit overrides an owner's quota.
func (m *Memory) SetLimit(ownerID string, limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageLocked(ownerID).Limit = limit
}

func (m *Memory) SoftDeleteFile(_ context.Context, fileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID]
	if !ok || !f.Live() {
		return fmt.Errorf("%w: file id %s", domain.ErrNotFound, fileID)
	}
	f.DeletedAt = &at
	return nil
}

func (m *Memory) DeleteFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("%w: file id %s", domain.ErrNotFound, fileID)
	}
	delete(m.files, fileID)
	return nil
}

func (m *Memory) usageLocked(ownerID string) *domain.Usage {
	u, ok := m.usage[ownerID]
	if !ok {
		u = &domain.Usage{Limit: m.defaultQuota}
		m.usage[ownerID] = u
	}
	return u
}

func cloneFile(f *domain.File) *domain.File {
	c := *f
	c.Chunks = append([]domain.Chunk(nil), f.Chunks...)
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
