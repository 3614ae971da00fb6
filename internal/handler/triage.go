package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/health-triage/internal/domain"
	"go.uber.org/zap"
)

// Error codes returned in the "error" field of failed responses.
const (
	codeBadRequest        = "BAD_REQUEST"
	codeConfigUnavailable = "CONFIG_UNAVAILABLE"
	codeTooLarge          = "PAYLOAD_TOO_LARGE"
	codeNotFound          = "NOT_FOUND"
	codeInternal          = "INTERNAL_ERROR"
)

// Triager evaluates raw triage requests. service.Triager implements it.
type Triager interface {
	Triage(ctx context.Context, raw []byte) (*domain.TriageResponse, error)
}

// TriageHandler handles triage requests.
type TriageHandler struct {
	triager Triager
	logger  *zap.Logger
}

// NewTriageHandler creates a new TriageHandler.
func NewTriageHandler(triager Triager, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{
		triager: triager,
		logger:  logger.Named("triage_handler"),
	}
}

// Handle processes POST /api/v1/triage requests.
func (h *TriageHandler) Handle(c *gin.Context) {
	logger := h.logger.With(zap.String("request_id", c.GetString(requestIDKey)))

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(codeTooLarge, "request body too large"))
			return
		}
		logger.Warn("failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse(codeBadRequest, "failed to read request body"))
		return
	}

	response, err := h.triager.Triage(c.Request.Context(), raw)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, response)
	case domain.IsInvalidInput(err):
		logger.Debug("invalid triage request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse(codeBadRequest, domain.ErrInvalidInput.Error()))
	case domain.IsConfigUnavailable(err):
		logger.Error("triage configuration unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse(codeConfigUnavailable, "triage configuration is unavailable"))
	default:
		logger.Error("triage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(codeInternal, "Internal error during triage"))
	}
}

func errorResponse(code, message string) domain.TriageResponse {
	return domain.TriageResponse{
		OK:          false,
		Error:       code,
		Message:     message,
		ProcessedAt: time.Now(),
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"ok":      false,
		"error":   code,
		"message": message,
	}
}
