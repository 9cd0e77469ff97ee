package http_handler

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

const immutableCache = "public, max-age=31536000, immutable"

func (s *Server) handleDownload(c *fiber.Ctx) error {
	name := c.Params("filename")
	if name == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing filename")
	}

	plan, err := s.service.ResolveDownload(c.Context(), port.DownloadRequest{
		Name:        name,
		CallerID:    callerID(c),
		ForceStream: c.Query("stream") == "true" || c.Query("redirect") == "false",
		Attachment:  c.Query("download") == "true",
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAccessDenied) {
			sdklogger.Errorw("Download lookup failed", "file_name", name, "error", err.Error())
		}
		return s.sendServiceError(c, err, "Failed to read file")
	}

	if plan.RedirectURL != "" {
		return c.Redirect(plan.RedirectURL, fiber.StatusFound)
	}

	size := plan.File.Size
	rng, ok := requestedRange(c, size)
	if !ok {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		return s.sendJSONError(c, fiber.StatusRequestedRangeNotSatisfiable, "Range not satisfiable")
	}

	stream, err := s.service.OpenDownload(plan, rng)
	if err != nil {
		sdklogger.Errorw("Download open failed", "file_name", name, "error", err.Error())
		return s.sendServiceError(c, err, "Failed to read file")
	}

	c.Set(fiber.HeaderContentType, plan.ContentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType(plan.Disposition, map[string]string{"filename": plan.File.Name}))
	c.Set(fiber.HeaderCacheControl, immutableCache)
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	length := size
	if rng != nil {
		length = rng.Len()
		c.Status(fiber.StatusPartialContent)
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
	}

	// fasthttp closes the stream once the body is written or the client goes away.
	c.Context().SetBodyStream(stream, int(length))
	return nil
}

// requestedRange returns the first range of a bytes Range header. A missing,
// malformed or non-bytes header means the whole file. ok is false when the
// range is well formed but cannot be satisfied.
func requestedRange(c *fiber.Ctx, size int64) (rng *domain.ByteRange, ok bool) {
	unit, specs, found := strings.Cut(c.Get(fiber.HeaderRange), "=")
	if !found || strings.TrimSpace(unit) != "bytes" {
		return nil, true
	}
	first, _, _ := strings.Cut(specs, ",")
	startStr, endStr, found := strings.Cut(strings.TrimSpace(first), "-")
	if !found {
		return nil, true
	}

	if startStr == "" {
		suffix, valid := parseRangeBound(endStr)
		if !valid {
			return nil, true
		}
		if suffix == 0 || size == 0 {
			return nil, false
		}
		suffix = min(suffix, size)
		return &domain.ByteRange{Start: size - suffix, End: size - 1}, true
	}

	start, valid := parseRangeBound(startStr)
	if !valid {
		return nil, true
	}
	end := size - 1
	if endStr != "" {
		if end, valid = parseRangeBound(endStr); !valid || end < start {
			return nil, true
		}
	}
	if start >= size {
		return nil, false
	}
	return &domain.ByteRange{Start: start, End: min(end, size-1)}, true
}

// parseRangeBound accepts only plain decimal digits.
func parseRangeBound(s string) (int64, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
