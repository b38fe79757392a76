package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/ubuygold/keygate/internal/license"
	"github.com/ubuygold/keygate/internal/model"
	"github.com/ubuygold/keygate/internal/store"
)

// KeyService is the set of key operations the handlers depend on.
type KeyService interface {
	Check(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]model.KeyRecord, error)
	Add(ctx context.Context, key, description string) (model.KeyRecord, error)
	Delete(ctx context.Context, key string) error
	Toggle(ctx context.Context, key string) (bool, error)
	Stats(ctx context.Context) (total, active int, err error)
}

var serverError = gin.H{"success": false, "message": "Server error"}

type CheckRequest struct {
	Key string `json:"key"`
}

type KeyRequest struct {
	AdminPassword string `json:"adminPassword"`
	Key           string `json:"key"`
	Description   string `json:"description"`
}

type Handler struct {
	svc    KeyService
	logger *slog.Logger
}

func NewHandler(svc KeyService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("component", "api")}
}

// bindBody decodes the JSON body into obj, treating an empty body as {}.
// The body is cached so middleware and handlers can both read it.
func bindBody(c *gin.Context, obj any) bool {
	if err := c.ShouldBindBodyWith(obj, binding.JSON); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
	c.JSON(http.StatusInternalServerError, serverError)
}

func (h *Handler) CheckHandler(c *gin.Context) {
	var req CheckRequest
	if !bindBody(c, &req) {
		return
	}

	valid, err := h.svc.Check(c.Request.Context(), req.Key)
	switch {
	case errors.Is(err, license.ErrMissingKey):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No key provided"})
	case err != nil:
		h.fail(c, "Error checking key", err)
	case valid:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Key is valid", "result": "1"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid or inactive key", "result": "0"})
	}
}

func (h *Handler) ListKeysHandler(c *gin.Context) {
	keys, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, "Error listing keys", err)
		return
	}
	if keys == nil {
		keys = []model.KeyRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "keys": keys})
}

func (h *Handler) AddKeyHandler(c *gin.Context) {
	var req KeyRequest
	if !bindBody(c, &req) {
		return
	}

	rec, err := h.svc.Add(c.Request.Context(), req.Key, req.Description)
	switch {
	case errors.Is(err, store.ErrDuplicateKey):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Key already exists"})
	case err != nil:
		h.fail(c, "Error adding key", err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Key added successfully", "key": rec.Key})
	}
}

func (h *Handler) DeleteKeyHandler(c *gin.Context) {
	var req KeyRequest
	if !bindBody(c, &req) {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), req.Key); err != nil {
		h.fail(c, "Error deleting key", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Key deleted successfully"})
}

func (h *Handler) ToggleKeyHandler(c *gin.Context) {
	var req KeyRequest
	if !bindBody(c, &req) {
		return
	}

	active, err := h.svc.Toggle(c.Request.Context(), req.Key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Key not found"})
	case err != nil:
		h.fail(c, "Error toggling key", err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Key status updated", "active": active})
	}
}

func (h *Handler) HealthHandler(c *gin.Context) {
	total, active, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.logger.Warn("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "keys": total, "active": active})
}
