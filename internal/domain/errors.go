package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrNoSubscription   = errors.New("no subscription")
	ErrInvalidPrompt    = errors.New("invalid prompt")
	ErrUnsupportedPlan  = errors.New("unsupported plan")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrAlreadyFinalized = errors.New("generation already finalized")
	ErrBillingDisabled  = errors.New("billing not configured")
)

// QuotaExceededError is returned when admission would exceed the plan cap.
type QuotaExceededError struct {
	Type  ResourceType
	Limit int
	Used  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly %s quota exceeded (%d/%d)", e.Type, e.Used, e.Limit)
}

// ProviderError is the uniform failure of a generation backend.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return "provider: " + e.Message
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err, keeping its text as the message.
func NewProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

// MissingMetadataError reports a checkout session created without the metadata
// this service always attaches.
type MissingMetadataError struct {
	SessionID string
	Field     string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("checkout session %s missing metadata %q", e.SessionID, e.Field)
}
