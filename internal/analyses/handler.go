package analyses

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/shared/server/middleware"
	"contract-analyzer/internal/shared/server/respond"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/users"
)

const defaultMaxUploadBytes int64 = 20 << 20

// Registrar records the caller so background jobs can look up a notification address.
type Registrar interface {
	Register(ctx context.Context, user users.User) error
}

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc            *Service
	Users          Registrar
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, registrar Registrar, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, Users: registrar, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) submit(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds size limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", []map[string]string{
			{"field": "files", "issue": "required"},
		})
		return
	}

	h.registerCaller(c)

	uploads := make([]Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read uploaded file", nil)
			return
		}
		files = append(files, f)
		uploads = append(uploads, Upload{FileName: fh.Filename, Reader: f})
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	created, err := h.Svc.Submit(ctx, userID, uploads)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analyses", nil)
		return
	}

	c.Set("analysisCount", len(created))
	respond.JSON(c, http.StatusCreated, created)
}

// registerCaller upserts the token identity. Failure only costs the notification.
func (h *Handler) registerCaller(c *gin.Context) {
	email := middleware.EmailFromContext(c)
	if h.Users == nil || email == "" {
		return
	}
	user := users.User{
		ID:       middleware.UserIDFromContext(c),
		Email:    email,
		FullName: middleware.NameFromContext(c),
	}
	if err := h.Users.Register(c.Request.Context(), user); err != nil {
		telemetry.Warn("users.register_failed", map[string]any{
			"request_id": c.GetString("requestId"),
			"user_id":    user.ID,
			"err":        err.Error(),
		})
	}
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	analysis, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	c.Set("analysisCount", len(list))
	respond.JSON(c, http.StatusOK, list)
}
