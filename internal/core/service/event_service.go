package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/port"
)

type EventService struct {
	events port.EventRepository
}

func NewEventService(events port.EventRepository) *EventService {
	return &EventService{events: events}
}

func (s *EventService) Create(ctx context.Context, name string, date time.Time, location string) (*domain.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: name and date are required", domain.ErrInvalidInput)
	}

	event := domain.Event{
		Name:     name,
		Date:     date,
		Location: location,
		Status:   domain.EventStatusUpcoming,
	}
	id, err := s.events.CreateEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ID = id
	return &event, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*domain.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

// List filters by status when one is given; an unknown status filter returns
// the full list rather than an error.
func (s *EventService) List(ctx context.Context, status domain.EventStatus) ([]domain.Event, error) {
	if status != "" && !domain.ValidEventStatus(status) {
		status = ""
	}
	return s.events.ListEvents(ctx, status)
}

// Update patches name, date and/or location in place. Status changes go
// through UpdateStatus.
func (s *EventService) Update(ctx context.Context, id int64, name *string, date *time.Time, location *string) (*domain.Event, error) {
	if name == nil && date == nil && location == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be blank", domain.ErrInvalidInput)
		}
		event.Name = trimmed
	}
	if date != nil {
		if date.IsZero() {
			return nil, fmt.Errorf("%w: date must not be zero", domain.ErrInvalidInput)
		}
		event.Date = *date
	}
	if location != nil {
		event.Location = *location
	}

	if err := s.events.UpdateEvent(ctx, *event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) UpdateStatus(ctx context.Context, id int64, status domain.EventStatus) (*domain.Event, error) {
	if !domain.ValidEventStatus(status) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if err := s.events.UpdateEventStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the event and everything under it: inventory items, orders
// and order lines.
func (s *EventService) Delete(ctx context.Context, id int64) error {
	return s.events.DeleteEvent(ctx, id)
}
