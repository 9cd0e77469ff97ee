package http_handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

type chunkResponse struct {
	BlobRef string `json:"blobRef"`
	URL     string `json:"url"`
	IV      string `json:"iv"`
	Size    int64  `json:"size"`
}

type finalizeRequest struct {
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	Type     string         `json:"type"`
	Folder   string         `json:"folder"`
	IsPublic bool           `json:"isPublic"`
	Chunks   []domain.Chunk `json:"chunks"`
}

type cancelRequest struct {
	BlobRefs []string `json:"blobRefs"`
}

func (s *Server) handleUploadChunk(c *fiber.Ctx) error {
	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Content-Type must be multipart/form-data")
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid Content-Type")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing boundary in Content-Type")
	}

	// Use raw request body stream
	bodyStream := c.Context().RequestBodyStream()
	if bodyStream == nil {
		bodyStream = bytes.NewReader(c.Body())
	}
	mr := multipart.NewReader(bodyStream, boundary)

	var fileName string
	var src io.Reader

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.sendJSONError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read multipart: %v", err))
		}

		if part.FileName() != "" {
			fileName = part.FileName()
			src = part
			break
		}
		_ = part.Close()
	}

	if src == nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "No file provided")
	}

	chunk, err := s.service.IngestChunk(c.Context(), port.IngestRequest{
		OwnerID:  callerID(c),
		FileName: fileName,
		Body:     src,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
		}
		sdklogger.Errorw("Chunk upload failed", "file_name", fileName, "user_id", callerID(c), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, "Failed to upload chunk")
	}

	return c.JSON(chunkResponse{
		BlobRef: chunk.BlobRef,
		URL:     chunk.URL,
		IV:      chunk.IV,
		Size:    chunk.Size,
	})
}

func (s *Server) handleFinalize(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid metadata")
	}
	if req.Name == "" || req.Chunks == nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid metadata")
	}

	file, err := s.service.FinalizeUpload(c.Context(), port.FinalizeRequest{
		OwnerID:  callerID(c),
		Name:     req.Name,
		Size:     req.Size,
		MimeType: req.Type,
		Folder:   req.Folder,
		IsPublic: req.IsPublic,
		Chunks:   req.Chunks,
	})
	if err != nil {
		sdklogger.Warnw("Finalize failed", "file_name", req.Name, "user_id", callerID(c), "error", err.Error())
		return s.sendServiceError(c, err, "Failed to save metadata")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"filename": file.Name,
		"id":       file.ID,
	})
}

// handleCancel always answers 200: cleanup is best effort and the caller
// has nothing to retry.
func (s *Server) handleCancel(c *fiber.Ctx) error {
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			sdklogger.Warnw("Cancel request unreadable, nothing cleaned", "user_id", callerID(c), "error", err.Error())
			return c.JSON(fiber.Map{"status": "nothing to clean"})
		}
	}
	if len(req.BlobRefs) == 0 {
		return c.JSON(fiber.Map{"status": "nothing to clean"})
	}

	count, err := s.service.CancelUpload(c.Context(), callerID(c), req.BlobRefs)
	if err != nil {
		sdklogger.Errorw("Cancel cleanup failed", "refs", len(req.BlobRefs), "deleted", count, "error", err.Error())
	}

	return c.JSON(fiber.Map{
		"status": "cleaned",
		"count":  count,
	})
}
