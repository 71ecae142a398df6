package dto

import (
	"time"

	"giveaway-poll-backend/internal/features/event/models"
)

// OptionRequest is one poll choice in a create request.
type OptionRequest struct {
	ID    string `json:"id" binding:"required,max=32"`
	Label string `json:"label" binding:"required,max=100"`
}

// CreateEventRequest is the body of POST /giveaways and POST /polls.
// Duration accepts "45m", "2h", "1d12h" style values and wins over EndsAt.
type CreateEventRequest struct {
	ScopeID          string               `json:"scopeId" binding:"required,excludes=:"`
	SubjectRef       string               `json:"subjectRef"`
	HostID           string               `json:"hostId"`
	Title            string               `json:"title"`
	Prize            string               `json:"prize"`
	Description      string               `json:"description"`
	Duration         string               `json:"duration" binding:"omitempty,duration"`
	EndsAt           *time.Time           `json:"endsAt"`
	WinnersWanted    int                  `json:"winnersWanted" binding:"min=0"`
	Requirements     *models.Requirements `json:"requirements"`
	EntryWeightRules *models.WeightRules  `json:"entryWeightRules"`
	Options          []OptionRequest      `json:"options" binding:"omitempty,dive"`
}

// JoinRequest enters a giveaway or casts a poll vote. Attributes, when
// present, are used as is; otherwise they come from the identity provider.
type JoinRequest struct {
	ParticipantID string             `json:"participantId" binding:"required"`
	OptionID      string             `json:"optionId"`
	Attributes    *models.Attributes `json:"attributes"`
}

type LeaveRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

type CloseRequest struct {
	RequestedBy string `json:"requestedBy" binding:"required"`
}

type SubjectRequest struct {
	SubjectRef string `json:"subjectRef" binding:"required"`
}

// EventResponse wraps a stored event with its rendered view.
type EventResponse struct {
	Key     string        `json:"key"`
	Event   *models.Event `json:"event"`
	View    models.View   `json:"view"`
	Warning string        `json:"warning,omitempty"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

type CloseResponse struct {
	Status  string         `json:"status"`
	Event   *EventResponse `json:"event,omitempty"`
	Warning string         `json:"warning,omitempty"`
}

type JoinResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Weight  int    `json:"weight,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type SweepResponse struct {
	Closed int `json:"closed"`
}
