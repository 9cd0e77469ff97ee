package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSize_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		want  int64
	}{
		{name: "Empty", total: 0, want: 2 * MiB},
		{name: "Tiny", total: 5, want: 2 * MiB},
		{name: "JustBelow200MiB", total: 200*MiB - 1, want: 2 * MiB},
		{name: "At200MiB", total: 200 * MiB, want: 8 * MiB},
		{name: "JustBelow1GiB", total: GiB - 1, want: 8 * MiB},
		{name: "At1GiB", total: GiB, want: 15 * MiB},
		{name: "JustBelow2GiB", total: 2*GiB - 1, want: 15 * MiB},
		{name: "At2GiB", total: 2 * GiB, want: 20 * MiB},
		{name: "Huge", total: 50 * GiB, want: 20 * MiB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkSize(tt.total))
		})
	}
}

func TestSplit_CoversWholeFile(t *testing.T) {
	sizes := []int64{1, 5, 2*MiB - 1, 2 * MiB, 2*MiB + 1, 25 * MiB, 200 * MiB, 200*MiB + 7, GiB + 3, 2*GiB + 11}

	for _, total := range sizes {
		spans := Split(total)
		chunkSize := ChunkSize(total)
		wantCount := int((total + chunkSize - 1) / chunkSize)

		require.Len(t, spans, wantCount, "total=%d", total)
		assert.Equal(t, wantCount, Count(total))

		var sum, offset int64
		for i, s := range spans {
			assert.Equal(t, i, s.Index)
			assert.Equal(t, offset, s.Offset, "spans must be contiguous")
			assert.LessOrEqual(t, s.Length, chunkSize)
			assert.Positive(t, s.Length)
			if i < len(spans)-1 {
				assert.Equal(t, chunkSize, s.Length)
			}
			sum += s.Length
			offset = s.End()
		}
		assert.Equal(t, total, sum, "total=%d", total)
	}
}

func TestSplit_EmptyFile(t *testing.T) {
	assert.Empty(t, Split(0))
	assert.Equal(t, 0, Count(0))
}

func TestSplit_Deterministic(t *testing.T) {
	total := 300*MiB + 17
	assert.Equal(t, Split(total), Split(total))
}
