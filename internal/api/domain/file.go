package domain

import (
	"path"
	"strings"
	"time"
)

// File is a finalized upload. Size is the plaintext length and always equals the
// sum of the chunk sizes.
type File struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	MimeType   string     `json:"type"`
	FolderPath string     `json:"folder"`
	OwnerID    string     `json:"ownerId,omitempty"`
	IsPublic   bool       `json:"isPublic"`
	IV         string     `json:"iv,omitempty"` // legacy file-level IV, hex
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	Chunks     []Chunk    `json:"chunks,omitempty"`
}

// Visibility is the sharing state derived from IsPublic.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (f *File) Visibility() Visibility {
	if f.IsPublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// Live reports whether the file is not soft-deleted.
func (f *File) Live() bool {
	return f.DeletedAt == nil
}

// ReadableBy reports whether callerID may read the file. An empty callerID is anonymous.
func (f *File) ReadableBy(callerID string) bool {
	if f.IsPublic {
		return true
	}
	return callerID != "" && callerID == f.OwnerID
}

// ChunkIV returns the IV that decrypts c: its own IV, else the file-level IV.
// An empty result means the chunk is stored in plaintext.
func (f *File) ChunkIV(c Chunk) string {
	if c.IV != "" {
		return c.IV
	}
	return f.IV
}

// BlobRefs lists the blob handles of every chunk.
func (f *File) BlobRefs() []string {
	refs := make([]string, 0, len(f.Chunks))
	for _, c := range f.Chunks {
		refs = append(refs, c.BlobRef)
	}
	return refs
}

// Usage is an owner's storage consumption against its quota.
type Usage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Allows reports whether adding size bytes stays within the limit.
func (u Usage) Allows(size int64) bool {
	return u.Used+size <= u.Limit
}

// CleanFolder normalizes a destination folder to an absolute slash path.
func CleanFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return "/"
	}
	return path.Clean("/" + folder)
}
