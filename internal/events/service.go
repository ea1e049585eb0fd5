package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type EventService interface {
	Create(ctx context.Context, in NewEvent) (*Event, error)
	List(ctx context.Context, filterLabel string) ([]*Event, error)
	Update(ctx context.Context, id string, patch EventPatch) (*Event, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create validates the required fields, fills defaults, persists the row
// and returns the stored record including the generated id.
func (s *Service) Create(ctx context.Context, in NewEvent) (*Event, error) {
	if in.TimestampS < 0 {
		return nil, &ValidationError{Field: "timestamp_s", Reason: "must be non-negative"}
	}
	if in.Label == "" {
		return nil, &ValidationError{Field: "label", Reason: "is required"}
	}

	event := &Event{
		ID:         NewID(),
		TimestampS: in.TimestampS,
		Label:      in.Label,
		Note:       in.Note,
		MatchID:    in.MatchID,
		Player:     in.Player,
		Severity:   in.Severity,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("event created", "event_id", event.ID, "label", event.Label, "timestamp_s", event.TimestampS)
	}
	return event, nil
}

func (s *Service) List(ctx context.Context, filterLabel string) ([]*Event, error) {
	return s.repo.List(ctx, filterLabel)
}

// Update applies the present patch fields and returns the full updated
// record. Returns ErrNotFound when the id does not exist. An empty patch
// changes nothing but still reads the record back.
func (s *Service) Update(ctx context.Context, id string, patch EventPatch) (*Event, error) {
	if patch.TimestampS != nil && *patch.TimestampS < 0 {
		return nil, &ValidationError{Field: "timestamp_s", Reason: "must be non-negative"}
	}
	if patch.Label != nil && *patch.Label == "" {
		return nil, &ValidationError{Field: "label", Reason: "must not be empty"}
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	if event == nil {
		return nil, ErrNotFound
	}

	if s.logger != nil {
		s.logger.Info("event updated", "event_id", id)
	}
	return event, nil
}

// Delete removes the event if present. Deleting an unknown id is not an
// error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("event deleted", "event_id", id)
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
