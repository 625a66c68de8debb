package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolibooks/bolibooks/internal/application/service"
)

const internalErrorMessage = "internal server error"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	version  string
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, version string, logger Logger) *Handlers {
	return &Handlers{services: services, version: version, logger: logger}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {error}. Unclassified errors are logged and hidden.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "method", c.Request.Method,
			"path", c.FullPath(), "request_id", c.GetString(requestIDKey))
		msg = internalErrorMessage
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

// queryInt reads the first present key as an integer; absent keys yield 0
func queryInt(c *gin.Context, keys ...string) (int64, error) {
	for _, key := range keys {
		raw, ok := c.GetQuery(key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", service.ErrValidation, key)
		}
		return n, nil
	}
	return 0, nil
}

func queryString(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v := c.Query(key); v != "" {
			return v
		}
	}
	return ""
}

func (h *Handlers) page(c *gin.Context) (limit, offset int, ok bool) {
	l, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return 0, 0, false
	}
	o, err := queryInt(c, "offset")
	if err != nil {
		h.fail(c, err)
		return 0, 0, false
	}
	return int(l), int(o), true
}
