package ingestion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
	httperr "github.com/playhead-lab/playhead/internal/core/errors"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist progress state"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// SubmitHandler handles HTTP POST requests for progress samples.
func (s *Service) SubmitHandler(c *gin.Context) {
	req, payloadSize, ierr := s.parseSample(c)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	slog.Info("Received progress sample",
		"user_id", req.UserID,
		"video_id", req.VideoID,
		"progress_seconds", req.ProgressSeconds,
		"payload_size", payloadSize)

	sample, err := s.store.Enqueue(c.Request.Context(), req.UserID, req.VideoID, req.ProgressSeconds)
	if err != nil {
		if errors.Is(err, v1.ErrInvalidSample) {
			writeError(c, &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidSampleError,
				message:    err.Error(),
			})
			return
		}

		// The sample was accepted in memory but the durable write failed.
		// Callers must treat the write as "maybe durable, maybe not".
		slog.Error("Failed to persist progress state",
			"error", err,
			"user_id", req.UserID,
			"video_id", req.VideoID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpPersistenceError,
			message:    msgPersistFailed,
		})
		return
	}

	// Sample queued and persisted. The merge cron folds it into committed
	// progress on the next cycle.
	c.JSON(http.StatusAccepted, sample)
}

// MergeHandler triggers one merge pass and reports its counts.
func (s *Service) MergeHandler(c *gin.Context) {
	result, err := s.store.RunMerge(c.Request.Context())
	if err != nil {
		slog.Error("Merge pass failed to persist", "error", err)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpPersistenceError,
			message:    msgPersistFailed,
			details: map[string]interface{}{
				"scanned_keys": result.ScannedKeys,
				"raised_keys":  result.RaisedKeys,
			},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseSample reads the raw request body and binds it into a SampleRequest.
// Returns the parsed request and the raw payload size (used for structured logging upstream).
func (s *Service) parseSample(c *gin.Context) (*v1.SampleRequest, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req v1.SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if err := req.Validate(); err != nil {
		slog.Warn("Sample validation failed", "error", err, "user_id", req.UserID, "video_id", req.VideoID)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidSampleError,
			message:    err.Error(),
		}
	}

	return &req, len(bodyBytes), nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
