package blobhost

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
)

// Memory is an in-process blob host for local runs and tests. It serves its
// blobs over HTTP at baseURL with expiring signed links of the form
// <baseURL>/<ref>?ex=<hex unix seconds>&sig=<hmac>.
type Memory struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	baseURL string
	expiry  time.Duration
	key     []byte
	now     func() time.Time
}

var (
	_ port.BlobHost = (*Memory)(nil)
	_ http.Handler  = (*Memory)(nil)
)

// NewMemory creates an empty host whose links live for expiry.
func NewMemory(baseURL string, expiry time.Duration) *Memory {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Memory{
		blobs:   make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
		expiry:  expiry,
		key:     key,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for signing and verifying links.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) PutBlob(_ context.Context, name string, data []byte) (domain.BlobLocation, error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.blobs[name] = stored
	m.mu.Unlock()

	return domain.BlobLocation{BlobRef: name, URL: m.sign(name)}, nil
}

func (m *Memory) GetBlobURL(_ context.Context, blobRef string) (string, error) {
	m.mu.RLock()
	_, ok := m.blobs[blobRef]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: blob %s", domain.ErrNotFound, blobRef)
	}
	return m.sign(blobRef), nil
}

func (m *Memory) DeleteBlobs(_ context.Context, blobRefs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for _, ref := range blobRefs {
		if _, ok := m.blobs[ref]; ok {
			delete(m.blobs, ref)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports how many blobs are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Has reports whether blobRef is stored.
func (m *Memory) Has(blobRef string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[blobRef]
	return ok
}

// ServeHTTP answers GET <ref>?ex=..&sig=.. with the blob, 403 for a bad or
// expired signature and 404 for unknown refs.
func (m *Memory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ref := strings.TrimPrefix(r.URL.Path, "/")
	ex, sig := r.URL.Query().Get("ex"), r.URL.Query().Get("sig")
	if !m.valid(ref, ex, sig) {
		http.Error(w, "link expired", http.StatusForbidden)
		return
	}

	m.mu.RLock()
	data, ok := m.blobs[ref]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (m *Memory) sign(ref string) string {
	m.mu.RLock()
	ex := strconv.FormatInt(m.now().Add(m.expiry).Unix(), 16)
	m.mu.RUnlock()
	return fmt.Sprintf("%s/%s?ex=%s&sig=%s", m.baseURL, url.PathEscape(ref), ex, m.mac(ref, ex))
}

func (m *Memory) valid(ref, ex, sig string) bool {
	secs, err := strconv.ParseInt(ex, 16, 64)
	if err != nil || !hmac.Equal([]byte(sig), []byte(m.mac(ref, ex))) {
		return false
	}
	m.mu.RLock()
	now := m.now()
	m.mu.RUnlock()
	return now.Before(time.Unix(secs, 0))
}

func (m *Memory) mac(ref, ex string) string {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(ref + "|" + ex))
	return hex.EncodeToString(h.Sum(nil))
}
