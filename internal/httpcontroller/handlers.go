package httpcontroller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/freshness-go/internal/detection"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/processor"
)

const (
	// StatusCompleted is reported for every batch that reached the store.
	StatusCompleted = "Freshness detection completed"

	// ExportBasename is the attachment name of the exported ledger, without
	// the extension of the store's format.
	ExportBasename = "detection_fresh_count"
)

// DetectionRequest is the body of POST /api/v1/detections.
type DetectionRequest struct {
	Detections []detection.RawDetection `json:"detections"`
}

// DetectionResponse is returned for a processed batch.
type DetectionResponse struct {
	Status string `json:"status"`
	*processor.BatchResult
}

// LedgerResponse is the JSON view of the ledger.
type LedgerResponse struct {
	Entries   []ledger.Entry `json:"entries"`
	Count     int            `json:"count"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error body with a fresh correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err and writes it as an ErrorResponse. The category of an
// EnhancedError decides the status code; code is used for any other error.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	var enhancedErr *errors.EnhancedError
	if errors.As(err, &enhancedErr) {
		code = mapCategoryToHTTPStatus(enhancedErr.Category)
	}
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if enhancedErr != nil {
		fields = append(fields,
			logger.String("category", enhancedErr.GetCategory()),
			logger.String("component", enhancedErr.GetComponent()))
		if errCtx := enhancedErr.GetContext(); len(errCtx) > 0 {
			fields = append(fields, logger.Any("error_context", errCtx))
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Warn("API error", fields...)
	}

	return c.JSON(code, resp)
}

// mapCategoryToHTTPStatus maps error categories to HTTP status codes
func mapCategoryToHTTPStatus(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryLabel:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryNetwork, errors.CategoryMQTTConnection, errors.CategoryMQTTPublish:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck reports liveness.
func (s *Server) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"entries": s.Ledger.Len(),
	})
}

// PostDetections processes one batch of raw detections.
func (s *Server) PostDetections(c echo.Context) error {
	var req DetectionRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Detections == nil {
		return s.HandleError(c, nil, "Missing detections", http.StatusBadRequest)
	}

	result, err := s.Processor.ProcessBatch(c.Request().Context(), req.Detections)
	if err != nil {
		msg := "Failed to process detections"
		if errors.Is(err, ledger.ErrPersistFailure) {
			msg = "Failed to persist freshness ledger"
		}
		return s.HandleError(c, err, msg, http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, DetectionResponse{
		Status:      StatusCompleted,
		BatchResult: result,
	})
}

// GetLedger returns the ledger entries in sequence order.
func (s *Server) GetLedger(c echo.Context) error {
	entries := s.Ledger.Snapshot()
	return c.JSON(http.StatusOK, LedgerResponse{
		Entries:   entries,
		Count:     len(entries),
		Timestamp: time.Now(),
	})
}

// ExportLedger sends the durable store content as an attachment in the
// store's own format.
func (s *Server) ExportLedger(c echo.Context) error {
	var buf bytes.Buffer
	if err := s.Ledger.Export(c.Request().Context(), &buf); err != nil {
		if errors.Is(err, ledger.ErrStoreNotFound) {
			return s.HandleError(c, err, "Ledger has not been written yet", http.StatusNotFound)
		}
		return s.HandleError(c, err, "Failed to export ledger", http.StatusInternalServerError)
	}

	format := s.Ledger.ExportFormat()
	filename := ExportBasename + format.Extension
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, format.ContentType, buf.Bytes())
}
