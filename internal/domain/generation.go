package domain

import (
	"strings"
	"time"
)

// ResourceType enumerates what a generation produces.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// ResourceTypes lists every metered resource type.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceImage, ResourceVideo}
}

// ParseResourceType validates free-form input.
func ParseResourceType(s string) (ResourceType, bool) {
	switch ResourceType(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceImage:
		return ResourceImage, true
	case ResourceVideo:
		return ResourceVideo, true
	default:
		return "", false
	}
}

// GenerationStatus enumerates ledger entry states.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// GenerationRecord is one entry of the usage ledger.
type GenerationRecord struct {
	ID           string
	UserID       string
	Type         ResourceType
	Prompt       string
	Provider     string
	Status       GenerationStatus
	Result       string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdmitRequest asks the ledger to admit a new pending record when the usage
// since WindowStart is below the cap of the user's current plan.
type AdmitRequest struct {
	UserID      string
	Type        ResourceType
	Prompt      string
	Provider    string
	WindowStart time.Time
	Now         time.Time
}

// Admission is the outcome of a successful admission.
type Admission struct {
	Record       *GenerationRecord
	Subscription *Subscription
	// Used includes the admitted record.
	Used  int
	Limit *int
}
