// Package errors provides domain-specific error types.
package errors

import (
	"errors"
	"net/http"
)

// Error codes for domain errors.
const (
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeInitialization = "INITIALIZATION_ERROR"
	ErrCodeRequest        = "REQUEST_ERROR"
	ErrCodeAdSearch       = "AD_SEARCH_ERROR"
	ErrCodeSession        = "SESSION_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
)

// DomainError represents a domain-specific error. Provider is set for
// errors originating inside a provider adapter.
type DomainError struct {
	Code       string `json:"code"`
	Provider   string `json:"provider,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := e.Code
	if e.Provider != "" {
		msg += " [" + e.Provider + "]"
	}
	msg += ": " + e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates an error for missing or malformed
// configuration. Surfaced at construction time, never recovered from.
func NewConfigurationError(message, details string) *DomainError {
	return &DomainError{
		Code:       ErrCodeConfiguration,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewInitializationError creates an error for a provider that failed to
// validate its config or failed its connectivity probe.
func NewInitializationError(provider, message string, err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeInitialization,
		Provider:   provider,
		Message:    message,
		Details:    errDetails(err),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewRequestError creates an error for a single failed message exchange.
func NewRequestError(provider, message string, err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeRequest,
		Provider:   provider,
		Message:    message,
		Details:    errDetails(err),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewAdSearchError creates an error for a single failed ad query.
func NewAdSearchError(message string, err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeAdSearch,
		Message:    message,
		Details:    errDetails(err),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewSessionError creates an error for a failed remote session
// initialization. Soft: callers degrade to a local fallback identifier.
func NewSessionError(message string, err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeSession,
		Message:    message,
		Details:    errDetails(err),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewValidationError creates an error for invalid caller input.
func NewValidationError(message, details string) *DomainError {
	return &DomainError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetDomainError extracts the domain error from an error.
func GetDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsDomainError checks if the error is a domain error.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

func hasCode(err error, code string) bool {
	domainErr, ok := GetDomainError(err)
	return ok && domainErr.Code == code
}

// IsConfigurationError checks if the error is a configuration error.
func IsConfigurationError(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsInitializationError checks if the error is an initialization error.
func IsInitializationError(err error) bool { return hasCode(err, ErrCodeInitialization) }

// IsRequestError checks if the error is a request error.
func IsRequestError(err error) bool { return hasCode(err, ErrCodeRequest) }

// IsAdSearchError checks if the error is an ad-search error.
func IsAdSearchError(err error) bool { return hasCode(err, ErrCodeAdSearch) }

// IsSessionError checks if the error is a session error.
func IsSessionError(err error) bool { return hasCode(err, ErrCodeSession) }

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// Provider returns the provider tag of a domain error, if any.
func Provider(err error) string {
	if domainErr, ok := GetDomainError(err); ok {
		return domainErr.Provider
	}
	return ""
}
