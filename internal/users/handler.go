package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/shared/server/middleware"
	"contract-analyzer/internal/shared/server/respond"
)

// Handler serves the caller's directory entry.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

type meResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"fullName,omitempty"`
	Notifications bool   `json:"notifications"`
}

// me reports the identity the API knows for the caller. Notifications is true
// once an address has been stored by a submission.
func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrNotFound):
		respond.JSON(c, http.StatusOK, meResponse{
			ID:       userID,
			Email:    middleware.EmailFromContext(c),
			FullName: middleware.NameFromContext(c),
		})
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
	default:
		respond.JSON(c, http.StatusOK, meResponse{
			ID:            user.ID,
			Email:         user.Email,
			FullName:      user.FullName,
			Notifications: user.Notifiable(),
		})
	}
}
