package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes missing Redis keys.
	RedisNotFoundMessage = "redis key not found"
	// PostgresErrorMessage describes Postgres related failures.
	PostgresErrorMessage = "postgres operation failed"
	// EmbeddingErrorMessage describes embedding-service failures.
	EmbeddingErrorMessage = "embedding generation failed"
	// CacheCorruptionMessage describes an unreadable cached payload.
	CacheCorruptionMessage = "cached payload is corrupted"
	// DataIntegrityMessage describes an untrustworthy stored transcript.
	DataIntegrityMessage = "stored transcript failed integrity check"
)

// Sentinels for the failure classes callers branch on. Wrappers below attach
// them to the chain so errors.Is works across layers.
var (
	ErrEmbedding       = errors.New("embedding error")
	ErrCacheCorruption = errors.New("cache corruption")
	ErrDataIntegrity   = errors.New("data integrity error")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapEmbedding marks an embedding-service failure.
func WrapEmbedding(err error) error {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%w: %w", ErrEmbedding, err), http.StatusBadGateway, EmbeddingErrorMessage)
}

// WrapCacheCorruption marks a stored cache payload that cannot be decoded.
// Callers treat it as a miss, never as a hard failure.
func WrapCacheCorruption(err error) error {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%w: %w", ErrCacheCorruption, err), http.StatusInternalServerError, CacheCorruptionMessage)
}

// WrapDataIntegrity marks a stored message that cannot be reconstructed.
// History load propagates it: the transcript cannot be trusted.
func WrapDataIntegrity(err error) error {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%w: %w", ErrDataIntegrity, err), http.StatusInternalServerError, DataIntegrityMessage)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
