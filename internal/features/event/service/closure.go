package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "giveaway-poll-backend/internal/common/errors"
	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
	"giveaway-poll-backend/internal/utils/random"
)

type CloseStatus string

const (
	CloseClosed        CloseStatus = "closed"
	CloseAlreadyClosed CloseStatus = "already_closed"
	CloseNotFound      CloseStatus = "not_found"
	// CloseNotDue is only reported to the scheduler, for events that were
	// paused or extended after the scan listed them.
	CloseNotDue CloseStatus = "not_due"
)

// CloseResult is the outcome of a closure attempt. Event is the state after
// the attempt and is nil for CloseNotFound.
type CloseResult struct {
	Status  CloseStatus   `json:"status"`
	Event   *models.Event `json:"event,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// ForceClose closes an open event now, regardless of its end time. Closing a
// closed event is a no-op reported as CloseAlreadyClosed.
func (s *LifecycleService) ForceClose(ctx context.Context, key models.Key, requestedBy string) (CloseResult, error) {
	if requestedBy == "" {
		return CloseResult{}, apperrors.NewValidationError("requestedBy", "is required")
	}
	return s.close(ctx, key, requestedBy, false)
}

// CloseExpired closes the event if it is still open and past its end time.
func (s *LifecycleService) CloseExpired(ctx context.Context, key models.Key) (CloseResult, error) {
	return s.close(ctx, key, models.ClosedByScheduler, true)
}

// close is the single Open -> Closed transition. The status is re-checked
// under the key lock, so of several racing callers exactly one computes and
// stores results.
func (s *LifecycleService) close(ctx context.Context, key models.Key, closedBy string, onlyIfDue bool) (CloseResult, error) {
	now := s.now()
	status := CloseClosed

	e, err := s.store.Update(ctx, key, func(e *models.Event) error {
		if e.IsClosed() {
			status = CloseAlreadyClosed
			return repository.ErrSkipWrite
		}
		if onlyIfDue && !e.DueForClosure(now) {
			status = CloseNotDue
			return repository.ErrSkipWrite
		}
		if !e.IsOpen() {
			return apperrors.NewInvalidStateError(e.ID, string(e.Status), "close")
		}
		return s.finalize(e, now, closedBy)
	})

	var result CloseResult
	switch {
	case err == nil:
		result = CloseResult{Status: status, Event: e}
	case errors.Is(err, repository.ErrEventNotFound):
		return CloseResult{Status: CloseNotFound}, apperrors.NewNotFoundError("event", key.String())
	case apperrors.IsCode(err, apperrors.ErrCodePersistence):
		result = CloseResult{Status: status, Event: e, Warning: err.Error()}
	default:
		return CloseResult{}, s.translate(err, key)
	}

	if status == CloseClosed {
		s.logger.Info().
			Str("event_id", e.ID).
			Str("closed_by", closedBy).
			Int("participants", e.ParticipantCount()).
			Strs("winners", e.ResultWinners).
			Msg("Event closed")
		s.notifyClosed(e)
	}
	return result, err
}

// finalize computes results and marks e closed. On a selection error e is
// left untouched so the event stays open.
func (s *LifecycleService) finalize(e *models.Event, now time.Time, closedBy string) error {
	switch e.Kind {
	case models.KindGiveaway:
		winners, err := random.PickWeighted(e.Weights(), e.WinnersWanted, s.source)
		if err != nil {
			return apperrors.NewSelectionError(e.ID, err)
		}
		e.ResultWinners = winners
	case models.KindPoll:
		e.Tally, e.Ranking = e.CountVotes()
	default:
		return apperrors.NewSelectionError(e.ID, fmt.Errorf("unknown event kind %q", e.Kind))
	}

	e.Status = models.StatusClosed
	e.ClosedAt = &now
	e.ClosedBy = closedBy
	e.Touch(now)
	return nil
}

// notifyClosed posts the final view without blocking the caller.
func (s *LifecycleService) notifyClosed(e *models.Event) {
	if s.sink == nil {
		return
	}
	view := models.NewView(e)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("event_id", view.EventID).Msg("Closure notification panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), NotifyTimeout)
		defer cancel()
		if err := s.sink.PostOrUpdate(ctx, view.SubjectRef, view); err != nil {
			s.logger.Warn().Err(err).Str("event_id", view.EventID).Msg("Failed to send closure notification")
		}
	}()
}
