package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aevon-lab/aggindex/internal/core/document"
	httperr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/indexer"
	"github.com/aevon-lab/aggindex/internal/lock"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgInvalidFilter   = "Invalid filter"
	msgInvalidSignal   = "Invalid signal"
	msgLockTimeout     = "Timed out waiting for document lock"
	msgStoreFailed     = "Store request failed"
	msgInternal        = "Internal Service Error"
	msgDocumentExists  = "Document already exists"
	msgDocumentMissing = "Document not found"
)

// Request is the body accepted by every document route. Path parameters
// override Type and ID.
type Request struct {
	Type       string                   `json:"type"`
	ID         string                   `json:"id"`
	Doc        document.Document        `json:"doc"`
	Filter     []registry.PredicateSpec `json:"filter,omitempty"`
	UpdateMode indexer.UpdateMode       `json:"updateMode,omitempty"`
	Signal     json.RawMessage          `json:"signal,omitempty"`
}

// apiError is the structured HTTP error a helper hands back to the handler.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

type operation func(context.Context, indexer.Request) (*indexer.Result, error)

func (s *Service) handle(op operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, apiErr := s.parseRequest(c)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}
		req, apiErr := toIndexerRequest(body)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		res, err := op(c.Request.Context(), req)
		writeResult(c, res, err)
	}
}

// SignalHandler handles PUT /signal and PUT /signal/:type/:id. The signal
// field holds one signal or an array of them.
func (s *Service) SignalHandler(c *gin.Context) {
	body, apiErr := s.parseRequest(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	signals, err := signal.Decode(body.Signal)
	if err != nil {
		slog.Warn("Invalid signal received", "error", err, "type", body.Type, "id", body.ID)
		writeError(c, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidSignal,
			details:    err.Error(),
		})
		return
	}

	res, err := s.indexer.AddSignal(c.Request.Context(), indexer.SignalRequest{
		Type:    body.Type,
		ID:      body.ID,
		Signals: signals,
	})
	writeResult(c, res, err)
}

// GetHandler handles GET /:type/:id.
func (s *Service) GetHandler(c *gin.Context) {
	doc, err := s.indexer.Get(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	if doc == nil {
		writeError(c, &apiError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpValidationError,
			message:    msgDocumentMissing,
			details:    gin.H{"type": c.Param("type"), "id": c.Param("id")},
		})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateIndexHandler handles POST /indices and POST /indices/:index.
func (s *Service) CreateIndexHandler(c *gin.Context) {
	results, err := s.indexer.CreateIndex(c.Request.Context(), c.Param("index"))
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, results)
}

// DeleteIndexHandler handles DELETE /indices and DELETE /indices/:index.
func (s *Service) DeleteIndexHandler(c *gin.Context) {
	results, err := s.indexer.DeleteIndex(c.Request.Context(), c.Param("index"))
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, results)
}

// parseRequest reads the size-limited body and overlays the path parameters.
// An empty body is allowed; DELETE /:type/:id carries none.
func (s *Service) parseRequest(c *gin.Context) (*Request, *apiError) {
	maxBytes := int64(s.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}
	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	var req Request
	if len(bytes.TrimSpace(bodyBytes)) > 0 {
		if err := json.Unmarshal(bodyBytes, &req); err != nil {
			slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
			return nil, &apiError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidJsonError,
				message:    msgInvalidJSON,
				details:    err.Error(),
			}
		}
	}
	if t := c.Param("type"); t != "" {
		req.Type = t
	}
	if id := c.Param("id"); id != "" {
		req.ID = id
	}
	return &req, nil
}

func toIndexerRequest(body *Request) (indexer.Request, *apiError) {
	req := indexer.Request{Type: body.Type, ID: body.ID, Doc: body.Doc}

	switch body.UpdateMode {
	case "", indexer.ModeFull, indexer.ModeMerge:
		req.UpdateMode = body.UpdateMode
	default:
		return req, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    "Unknown update mode",
			details:    gin.H{"updateMode": body.UpdateMode},
		}
	}

	filter, err := registry.CompileFilter(body.Filter)
	if err != nil {
		return req, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    msgInvalidFilter,
			details:    err.Error(),
		}
	}
	req.Filter = filter

	if len(body.Signal) > 0 {
		signals, err := signal.Decode(body.Signal)
		if err != nil {
			return req, &apiError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidJsonError,
				message:    msgInvalidSignal,
				details:    err.Error(),
			}
		}
		req.Signals = signals
	}
	return req, nil
}

// writeResult maps an indexer outcome to a response. A result paired with an
// error means the document was written but some aggregates were not.
func writeResult(c *gin.Context, res *indexer.Result, err error) {
	if err != nil {
		apiErr := fromError(err)
		if res != nil {
			apiErr.details = gin.H{"result": res, "cause": apiErr.details}
		}
		writeError(c, apiErr)
		return
	}
	if res == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch res.FailCode {
	case indexer.FailExistsAlready:
		writeError(c, &apiError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpDocumentExistsError,
			message:    msgDocumentExists,
			details:    res,
		})
	case indexer.FailNotFound:
		c.JSON(http.StatusNotFound, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func fromError(err error) *apiError {
	if ve, ok := httperr.IsValidation(err); ok {
		details := map[string]interface{}{"code": ve.Code}
		for k, v := range ve.Details {
			details[k] = v
		}
		statusCode, errorType := http.StatusBadRequest, httperr.HttpValidationError
		if ve.Code == httperr.CodeUnrecognizedIndex {
			statusCode, errorType = http.StatusNotFound, httperr.HttpUnknownIndexError
		}
		return &apiError{statusCode: statusCode, errorType: errorType, message: ve.Message, details: details}
	}

	if errors.Is(err, lock.ErrAcquireTimeout) {
		slog.Warn("Lock acquisition timed out", "error", err)
		return &apiError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpInternalError,
			message:    msgLockTimeout,
			details:    err.Error(),
		}
	}

	if ie, ok := httperr.IsInternal(err); ok {
		slog.Error("Store request failed", "op", ie.Op, "status", ie.StatusCode, "error", err)
		details := map[string]interface{}{"op": ie.Op, "error": err.Error()}
		if ie.StatusCode != 0 {
			details["status_code"] = ie.StatusCode
		}
		if ie.Details != nil {
			details["details"] = ie.Details
		}
		return &apiError{
			statusCode: http.StatusBadGateway,
			errorType:  httperr.HttpUpstreamStoreError,
			message:    msgStoreFailed,
			details:    details,
		}
	}

	slog.Error("Unhandled indexer error", "error", err)
	return &apiError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msgInternal,
		details:    err.Error(),
	}
}

// writeError serializes an apiError as the JSON HTTP response.
func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
