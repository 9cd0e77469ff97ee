package http_handler

import (
	"strings"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/auth"
	"github.com/gofiber/fiber/v2"
)

const localsUserID = "userID"

// bearerToken reads the token from the Authorization header or the token query parameter.
func bearerToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return s.sendJSONError(c, fiber.StatusUnauthorized, "Authentication required")
	}

	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return s.sendJSONError(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals(localsUserID, userID)
	return c.Next()
}

// optionalAuth identifies the caller when a valid token is present and
// otherwise continues anonymously.
func (s *Server) optionalAuth(c *fiber.Ctx) error {
	if token := bearerToken(c); token != "" {
		if userID, err := auth.GetUserIDFromToken(token, s.jwtSecret); err == nil {
			c.Locals(localsUserID, userID)
		}
	}
	return c.Next()
}

// callerID returns the authenticated user id, or "" for anonymous callers.
func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}
