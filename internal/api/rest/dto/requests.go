package dto

import (
	"fmt"
	"time"

	apierrors "github.com/funnelworks/movement-engine/internal/api/shared/errors"
	"github.com/funnelworks/movement-engine/internal/domain"
)

// IngestSignalRequest represents the request body for POST /signals.
// Impact is signed and optional; when absent the signal type's default
// impact applies.
type IngestSignalRequest struct {
	SignalID  string                 `json:"signal_id,omitempty"`
	CompanyID string                 `json:"company_id"`
	Type      domain.SignalType      `json:"type"`
	Impact    *float64               `json:"impact,omitempty"`
	Source    domain.SourceCategory  `json:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

// Validate validates the request body
func (r *IngestSignalRequest) Validate() error {
	if r.CompanyID == "" {
		return apierrors.NewValidationError("company_id is required")
	}
	if !domain.IsValidSignalType(r.Type) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid signal type: %s", r.Type))
	}
	if !domain.IsValidSourceCategory(r.Source) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid signal source: %s", r.Source))
	}
	return nil
}

// Signal converts the request to a domain signal
func (r *IngestSignalRequest) Signal() domain.Signal {
	sig := domain.Signal{
		SignalID:  r.SignalID,
		CompanyID: r.CompanyID,
		Type:      r.Type,
		Impact:    r.Impact,
		Source:    r.Source,
		Metadata:  r.Metadata,
	}
	if r.Timestamp != nil {
		sig.Timestamp = *r.Timestamp
	}
	return sig
}

// CreateContactRequest represents the request body for POST /contacts
type CreateContactRequest struct {
	ContactID string `json:"contact_id"`
	CompanyID string `json:"company_id"`
}

// Validate validates the request body
func (r *CreateContactRequest) Validate() error {
	if r.ContactID == "" {
		return apierrors.NewValidationError("contact_id is required")
	}
	if r.CompanyID == "" {
		return apierrors.NewValidationError("company_id is required")
	}
	return nil
}

// DetectEventRequest represents the request body for POST /contacts/:id/events
type DetectEventRequest struct {
	Type       domain.EventType       `json:"type"`
	DedupHash  string                 `json:"dedup_hash,omitempty"`
	DetectedAt *time.Time             `json:"detected_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate validates the request body
func (r *DetectEventRequest) Validate() error {
	if !domain.IsValidEventType(r.Type) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid event type: %s", r.Type))
	}
	if r.Type == domain.EventManualOverride {
		return apierrors.NewValidationError("manual overrides must use the override endpoint")
	}
	return nil
}

// OverrideStateRequest represents the request body for POST /contacts/:id/override
type OverrideStateRequest struct {
	TargetState domain.LifecycleState `json:"target_state"`
	Reason      string                `json:"reason,omitempty"`
}

// Validate validates the request body
func (r *OverrideStateRequest) Validate() error {
	if !domain.IsValidState(r.TargetState) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid target state: %s", r.TargetState))
	}
	return nil
}
