package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/client/uploader"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 B"},
		{512, "512.00 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "--", formatETA(0))
	assert.Equal(t, "3s", formatETA(2500*time.Millisecond))
	assert.Equal(t, "2m 5s", formatETA(125*time.Second))
}

func TestProgressBars_OneBarPerFile(t *testing.T) {
	var out bytes.Buffer
	bars := newProgressBars(&out)

	bars.update(uploader.Progress{File: "a.bin", FileIndex: 0, FileCount: 2, State: uploader.StateUploading, Sent: 50, Total: 100, Percent: 50})
	first := bars.bar
	assert.Equal(t, int64(50), first.Current())

	bars.update(uploader.Progress{File: "a.bin", FileIndex: 0, FileCount: 2, State: uploader.StateFinalizing, Sent: 100, Total: 100, Percent: 99})
	assert.Same(t, first, bars.bar)
	assert.Equal(t, int64(99), first.Current())

	bars.update(uploader.Progress{File: "b.bin", FileIndex: 1, FileCount: 2, State: uploader.StateUploading, Sent: 0, Total: 10})
	assert.NotSame(t, first, bars.bar)

	bars.finish()
	assert.Nil(t, bars.bar)
}
