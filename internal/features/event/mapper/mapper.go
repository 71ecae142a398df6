package mapper

import (
	"giveaway-poll-backend/internal/common/validation"
	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/models/dto"
	"giveaway-poll-backend/internal/features/event/repository"
	"giveaway-poll-backend/internal/features/event/service"
)

// ToCreateRequest converts the HTTP body into a service request. The
// duration string has already passed the binding validator.
func ToCreateRequest(req dto.CreateEventRequest) (service.CreateRequest, error) {
	out := service.CreateRequest{
		ScopeID:          req.ScopeID,
		SubjectRef:       req.SubjectRef,
		HostID:           req.HostID,
		Title:            req.Title,
		Prize:            req.Prize,
		Description:      req.Description,
		WinnersWanted:    req.WinnersWanted,
		Requirements:     req.Requirements,
		EntryWeightRules: req.EntryWeightRules,
	}
	if req.EndsAt != nil {
		out.EndsAt = *req.EndsAt
	}
	if req.Duration != "" {
		d, err := validation.ParseDuration(req.Duration)
		if err != nil {
			return service.CreateRequest{}, err
		}
		out.Duration = d
	}
	if len(req.Options) > 0 {
		out.Options = make([]models.Option, 0, len(req.Options))
		for _, o := range req.Options {
			out.Options = append(out.Options, models.Option{ID: o.ID, Label: o.Label})
		}
	}
	return out, nil
}

// ToEventResponse maps a stored event to its response body.
func ToEventResponse(key models.Key, e *models.Event) dto.EventResponse {
	return dto.EventResponse{
		Key:   key.String(),
		Event: e,
		View:  models.NewView(e),
	}
}

func ToEventListResponse(entries []repository.Entry) dto.EventListResponse {
	out := dto.EventListResponse{Events: make([]dto.EventResponse, 0, len(entries)), Total: len(entries)}
	for _, entry := range entries {
		out.Events = append(out.Events, ToEventResponse(entry.Key, entry.Event))
	}
	return out
}

func ToCloseResponse(key models.Key, r service.CloseResult) dto.CloseResponse {
	out := dto.CloseResponse{Status: string(r.Status), Warning: r.Warning}
	if r.Event != nil {
		ev := ToEventResponse(key, r.Event)
		out.Event = &ev
	}
	return out
}

func ToJoinResponse(r service.JoinResult) dto.JoinResponse {
	return dto.JoinResponse{
		Status:  string(r.Status),
		Reason:  r.Reason,
		Weight:  r.Weight,
		Warning: r.Warning,
	}
}
