package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/anthanhphan/gosdk/logger"
)

// segment is the part of one chunk a read needs: take bytes after skipping skip.
type segment struct {
	chunk domain.Chunk
	skip  int64
	take  int64
}

// planSegments walks chunks in index order tracking absolute offsets and keeps
// the ones overlapping rng.
func planSegments(chunks []domain.Chunk, rng domain.ByteRange) []segment {
	var segments []segment
	var offset int64
	for _, c := range chunks {
		first, last := offset, offset+c.Size-1
		offset += c.Size
		if c.Size == 0 || last < rng.Start || first > rng.End {
			continue
		}

		from, to := max(rng.Start, first), min(rng.End, last)
		segments = append(segments, segment{chunk: c, skip: from - first, take: to - from + 1})
	}
	return segments
}

// chunkStream yields the plaintext of a file's segments one chunk at a time.
// It owns its context: Close cancels every upstream fetch in flight.
type chunkStream struct {
	core     *FileServiceImpl
	file     *domain.File
	segments []segment
	next     int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	current   *segmentReader
	closeOnce sync.Once
}

func newChunkStream(core *FileServiceImpl, file *domain.File, segments []segment) *chunkStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &chunkStream{core: core, file: file, segments: segments, ctx: ctx, cancel: cancel}
}

func (s *chunkStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := s.ctx.Err(); err != nil {
			return 0, err
		}

		if s.current == nil {
			if s.next >= len(s.segments) {
				return 0, io.EOF
			}
			seg := s.segments[s.next]
			s.next++

			r, err := s.openSegment(seg)
			if err != nil {
				logger.Warnw("Download stream failed", "file_id", s.file.ID, "chunk", seg.chunk.Index, "error", err.Error())
				return 0, err
			}
			s.current = r
		}

		n, err := s.current.Read(p)
		if n > 0 {
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			_ = s.current.Close()
			s.current = nil
			continue
		}
		if err != nil {
			logger.Warnw("Download stream failed", "file_id", s.file.ID, "chunk", s.current.index, "error", err.Error())
			return 0, err
		}
	}
}

// Close aborts the stream. It is safe to call from another goroutine while Read blocks.
func (s *chunkStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.current != nil {
			_ = s.current.Close()
			s.current = nil
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *chunkStream) openSegment(seg segment) (*segmentReader, error) {
	body, err := s.core.openChunk(s.ctx, seg.chunk)
	if err != nil {
		return nil, err
	}

	var plain io.Reader = body
	if iv := s.file.ChunkIV(seg.chunk); iv != "" {
		ivBytes, err := chunkcipher.ParseIV(iv)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("chunk %d: %w", seg.chunk.Index, err)
		}
		if plain, err = s.core.cipher.DecryptReader(body, ivBytes); err != nil {
			_ = body.Close()
			return nil, err
		}
	}

	return &segmentReader{index: seg.chunk.Index, body: body, plain: plain, skip: seg.skip, end: seg.skip + seg.take}, nil
}

// segmentReader emits the [skip, end) window of one chunk's plaintext. cursor
// counts decrypted bytes seen so far; each read is intersected with the window.
type segmentReader struct {
	index  int
	body   io.ReadCloser
	plain  io.Reader
	skip   int64
	end    int64
	cursor int64
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for {
		if r.cursor >= r.end {
			return 0, io.EOF
		}

		n, err := r.plain.Read(p)
		if n > 0 {
			lo, hi := r.cursor, r.cursor+int64(n)
			r.cursor = hi

			from, to := max(lo, r.skip), min(hi, r.end)
			if from < to {
				return copy(p, p[from-lo:to-lo]), nil
			}
		}
		if errors.Is(err, io.EOF) {
			if r.cursor < r.end {
				return 0, fmt.Errorf("chunk %d: %w after %d of %d bytes", r.index, io.ErrUnexpectedEOF, r.cursor, r.end)
			}
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
	}
}

func (r *segmentReader) Close() error {
	return r.body.Close()
}
