package tripstore

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("tripstore: not found")
	// ErrTripExists fires on a duplicate (user, origin, destination) route.
	ErrTripExists = errors.New("tripstore: trip already exists")
	// ErrConcurrentPhaseInProgress fires when a second in_progress version
	// is opened for the same trip. Never retried internally.
	ErrConcurrentPhaseInProgress = errors.New("tripstore: phase transition already in progress")
	// ErrVersionAlreadyFinalized fires on a double finalize with a different
	// payload, or any finalize of a failed version.
	ErrVersionAlreadyFinalized = errors.New("tripstore: version already finalized")
)

type VersionStatus string

const (
	StatusInProgress VersionStatus = "in_progress"
	StatusComplete   VersionStatus = "complete"
	StatusFailed     VersionStatus = "failed"
)

// Trip is the stable identity of a conversation; everything that changes
// across phases lives in versions.
type Trip struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

// TripVersion is one immutable row per completed phase transition. Payload
// fields are kept as raw JSON so stored bytes round-trip untouched through
// the generator, validator and API.
type TripVersion struct {
	ID            string        `json:"id"`
	TripID        string        `json:"trip_id"`
	VersionNumber int           `json:"version_number"`
	Phase         string        `json:"phase"`
	Status        VersionStatus `json:"status"`

	Constraints     json.RawMessage `json:"constraints,omitempty"`
	RiskAssessment  json.RawMessage `json:"risk_assessment,omitempty"`
	Assumptions     json.RawMessage `json:"assumptions,omitempty"`
	Plan            json.RawMessage `json:"plan,omitempty"`
	BudgetBreakdown json.RawMessage `json:"budget_breakdown,omitempty"`
	Days            json.RawMessage `json:"days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionPayload is what FinalizeVersion writes into an in_progress row.
// Phase may differ from the phase the version was opened with: a clarify
// turn that resolves every question finalizes as feasibility.
type VersionPayload struct {
	Phase           string
	Constraints     json.RawMessage
	RiskAssessment  json.RawMessage
	Assumptions     json.RawMessage
	Plan            json.RawMessage
	BudgetBreakdown json.RawMessage
	Days            json.RawMessage
}

func (p VersionPayload) equal(v TripVersion) bool {
	if p.Phase != "" && p.Phase != v.Phase {
		return false
	}
	pairs := [][2]json.RawMessage{
		{p.Constraints, v.Constraints},
		{p.RiskAssessment, v.RiskAssessment},
		{p.Assumptions, v.Assumptions},
		{p.Plan, v.Plan},
		{p.BudgetBreakdown, v.BudgetBreakdown},
		{p.Days, v.Days},
	}
	for _, pair := range pairs {
		if !rawEqual(pair[0], pair[1]) {
			return false
		}
	}
	return true
}

func rawEqual(a, b json.RawMessage) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return string(a) == string(b)
}

// TripSummary is the listing row: trip identity plus the latest version's
// phase and status.
type TripSummary struct {
	Trip
	CurrentPhase  string        `json:"current_phase"`
	LatestStatus  VersionStatus `json:"latest_status"`
	LatestVersion int           `json:"latest_version"`
}

// ConversationMessage is one entry of the persisted per-trip message log.
type ConversationMessage struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
