package errors

import (
	stderrors "errors"
	"fmt"
)

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpValidationError     = "validation_error"
	HttpUpstreamStoreError  = "store_error"
	HttpUnknownIndexError   = "unknown_index"
	HttpDocumentExistsError = "document_exists"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// Validation error codes.
const (
	CodeUndefinedType     = "UNDEFINED_TYPE"
	CodeUnrecognizedType  = "UNRECOGNIZED_TYPE"
	CodeUndefinedID       = "UNDEFINED_ID"
	CodeUndefinedSignal   = "UNDEFINED_SIGNAL"
	CodeInvalidSignal     = "INVALID_SIGNAL"
	CodeNotExists         = "NOT_EXISTS"
	CodeUnrecognizedIndex = "UNRECOGNIZED_INDEX"
)

// ValidationError reports a request the indexer refuses before touching the store.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation builds a ValidationError with optional key/value details.
func NewValidation(code, message string, kv ...interface{}) *ValidationError {
	e := &ValidationError{Code: code, Message: message}
	if len(kv) > 1 {
		e.Details = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return e
}

// InternalServiceError reports a failure in the store, lock or cache tier.
type InternalServiceError struct {
	Op         string
	StatusCode int
	Details    interface{}
	Err        error
}

func (e *InternalServiceError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return e.Op + ": internal service error"
}

func (e *InternalServiceError) Unwrap() error { return e.Err }

// Wrap tags err with op unless it already belongs to the taxonomy.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return err
	}
	var ie *InternalServiceError
	if stderrors.As(err, &ie) {
		return err
	}
	return &InternalServiceError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError, returning it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := stderrors.As(err, &ve)
	return ve, ok
}

// IsInternal reports whether err carries an InternalServiceError, returning it.
func IsInternal(err error) (*InternalServiceError, bool) {
	var ie *InternalServiceError
	ok := stderrors.As(err, &ie)
	return ie, ok
}
