package http_handler

import (
	"errors"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleSoftDelete(c *fiber.Ctx) error {
	name := c.Params("filename")
	if err := s.service.SoftDeleteFile(c.Context(), callerID(c), name); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			sdklogger.Errorw("Soft delete failed", "file_name", name, "error", err.Error())
		}
		return s.sendServiceError(c, err, "Failed to delete file")
	}

	return c.JSON(fiber.Map{"success": true, "filename": name})
}

func (s *Server) handlePermanentDelete(c *fiber.Ctx) error {
	name := c.Params("filename")
	file, err := s.service.PermanentDeleteFile(c.Context(), callerID(c), name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			sdklogger.Errorw("Permanent delete failed", "file_name", name, "error", err.Error())
		}
		return s.sendServiceError(c, err, "Failed to delete file")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"filename": file.Name,
		"freed":    file.Size,
	})
}
