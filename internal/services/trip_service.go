package services

import (
	"context"
	"fmt"
	"log/slog"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
)

// TripService handles trip CRUD and membership.
type TripService struct {
	store     TripStore
	publisher NotificationPublisher
}

func NewTripService(store TripStore, publisher NotificationPublisher) *TripService {
	return &TripService{store: store, publisher: publisher}
}

func (s *TripService) CreateTrip(ctx context.Context, t core.Trip) (*core.Trip, error) {
	if t.Status == "" {
		t.Status = core.TripPlanning
	}
	if t.Currency == "" {
		t.Currency = "USD"
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	id, err := s.store.CreateTrip(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	return s.store.GetTrip(ctx, id)
}

func (s *TripService) GetTrip(ctx context.Context, id int64) (*core.Trip, error) {
	return s.store.GetTrip(ctx, id)
}

func (s *TripService) ListTrips(ctx context.Context, userID int64) ([]core.Trip, error) {
	trips, err := s.store.ListTripsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return trips, nil
}

// UpdateTrip applies the caller-editable fields. Only the owner may update.
func (s *TripService) UpdateTrip(ctx context.Context, t core.Trip, requesterID int64) (*core.Trip, error) {
	current, err := s.store.GetTrip(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if current.OwnerID != requesterID {
		return nil, ErrForbidden
	}

	t.OwnerID = current.OwnerID
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTrip(ctx, t); err != nil {
		return nil, fmt.Errorf("update trip: %w", err)
	}
	return s.store.GetTrip(ctx, t.ID)
}

func (s *TripService) DeleteTrip(ctx context.Context, id, requesterID int64) error {
	trip, err := s.store.GetTrip(ctx, id)
	if err != nil {
		return fmt.Errorf("get trip: %w", err)
	}
	if trip.OwnerID != requesterID {
		return ErrForbidden
	}
	return s.store.DeleteTrip(ctx, id)
}

// AddMember invites a user onto the trip roster and notifies them.
func (s *TripService) AddMember(ctx context.Context, tripID, userID, requesterID int64) error {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("get trip: %w", err)
	}
	if trip.OwnerID != requesterID {
		return ErrForbidden
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.store.AddTripMember(ctx, tripID, userID); err != nil {
		return fmt.Errorf("add trip member: %w", err)
	}

	if s.publisher != nil {
		msg := amqp.NewNotificationMessage(
			tripID,
			requesterID,
			core.NotifyTripInvite,
			"Trip Invite",
			fmt.Sprintf("You were added to %s", trip.Name),
		)
		if err := s.publisher.PublishNotification(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish invite notification",
				"trip_id", tripID, "error", err)
		}
	}
	return nil
}
