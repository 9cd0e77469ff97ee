package domain

import (
	"fmt"
	"sort"
	"time"
)

// Chunk is one encrypted piece of a file as stored on the blob host. The same
// shape travels on the wire as the chunk descriptor returned by ingest.
type Chunk struct {
	Index   int    `json:"index"`
	BlobRef string `json:"blobRef"`
	URL     string `json:"url"`
	IV      string `json:"iv,omitempty"` // hex, empty for legacy plaintext chunks
	Size    int64  `json:"size"`
}

// BlobLocation is what the blob host returns for a stored blob.
type BlobLocation struct {
	BlobRef string
	URL     string
}

// PendingBlob is an ingested blob that no finalize has claimed yet, with what
// ingest knew about it when it was stored.
type PendingBlob struct {
	BlobRef   string    `json:"-"`
	OwnerID   string    `json:"owner"`
	Size      int64     `json:"size"`
	IV        string    `json:"iv"`
	URL       string    `json:"url"`
	TrackedAt time.Time `json:"-"`
}

// AssembleChunks sorts descriptors by index and checks that they form 0..n-1
// without gaps or duplicates and that their sizes add up to declaredSize.
// The input slice is not modified.
func AssembleChunks(descriptors []Chunk, declaredSize int64) ([]Chunk, error) {
	if declaredSize < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrValidation, declaredSize)
	}

	chunks := make([]Chunk, len(descriptors))
	copy(chunks, descriptors)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	var total int64
	for i, c := range chunks {
		if c.Index != i {
			if i > 0 && c.Index == chunks[i-1].Index {
				return nil, fmt.Errorf("%w: duplicate chunk index %d", ErrValidation, c.Index)
			}
			return nil, fmt.Errorf("%w: missing chunk index %d", ErrValidation, i)
		}
		if c.BlobRef == "" {
			return nil, fmt.Errorf("%w: chunk %d has no blob reference", ErrValidation, i)
		}
		if c.Size < 0 {
			return nil, fmt.Errorf("%w: chunk %d has negative size", ErrValidation, i)
		}
		total += c.Size
	}

	if total != declaredSize {
		return nil, fmt.Errorf("%w: chunk sizes add up to %d, declared %d", ErrValidation, total, declaredSize)
	}
	return chunks, nil
}

// ByteRange is an inclusive byte interval [Start, End].
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}
