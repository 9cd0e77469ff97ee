package service

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/dependencies_mock.go -package=mocks -source=ids.go

// IDGenerator defines file ID generation capability.
type IDGenerator interface {
	NextString(ctx context.Context) (string, error)
}

var unsafeBlobChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// buildBlobName derives a collision-resistant blob name from the uploaded file name.
func buildBlobName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.Trim(unsafeBlobChars.ReplaceAllString(base, "_"), "_.")
	if len(base) > 48 {
		base = base[:48]
	}
	if base == "" || base == "." {
		base = "chunk"
	}
	return base + "_" + uuid.NewString() + ".bin"
}
