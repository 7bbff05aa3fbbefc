package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/proto"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	log *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{log: logger}
}

// Me returns the authenticated principal as it appears in presence lists.
// GET /api/me
func (h *UserHandlers) Me(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		h.log.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, proto.Principal{
		ID:    strconv.FormatInt(identity.User.ID, 10),
		Nome:  identity.User.Name,
		Email: identity.User.Email,
		Cor:   identity.Color,
	})
}
