// Package chunking maps a file size to the chunk layout used by the upload protocol.
//
// The layout is a pure function of the total size, so a resumed upload always
// produces the same indices, offsets and lengths as the attempt it resumes.
package chunking

const (
	MiB int64 = 1024 * 1024
	GiB int64 = 1024 * MiB
)

// Size tiers. A file strictly smaller than a threshold uses that tier's chunk size.
var tiers = []struct {
	below     int64
	chunkSize int64
}{
	{below: 200 * MiB, chunkSize: 2 * MiB},
	{below: 1 * GiB, chunkSize: 8 * MiB},
	{below: 2 * GiB, chunkSize: 15 * MiB},
}

// MaxChunkSize is the chunk size of the largest tier and the upper bound a server accepts per chunk.
const MaxChunkSize = 20 * MiB

// Span is one chunk of a file: a contiguous plaintext byte range.
type Span struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int64 {
	return s.Offset + s.Length
}

// ChunkSize returns the chunk size used for a file of totalBytes.
func ChunkSize(totalBytes int64) int64 {
	for _, t := range tiers {
		if totalBytes < t.below {
			return t.chunkSize
		}
	}
	return MaxChunkSize
}

// Count returns the number of chunks a file of totalBytes is split into.
func Count(totalBytes int64) int {
	if totalBytes <= 0 {
		return 0
	}
	size := ChunkSize(totalBytes)
	return int((totalBytes + size - 1) / size)
}

// Split returns the spans of a file of totalBytes in index order.
// Every span but the last has exactly ChunkSize(totalBytes) bytes.
func Split(totalBytes int64) []Span {
	n := Count(totalBytes)
	if n == 0 {
		return nil
	}

	size := ChunkSize(totalBytes)
	spans := make([]Span, 0, n)
	for i := 0; i < n; i++ {
		offset := int64(i) * size
		length := size
		if remaining := totalBytes - offset; remaining < length {
			length = remaining
		}
		spans = append(spans, Span{Index: i, Offset: offset, Length: length})
	}
	return spans
}
