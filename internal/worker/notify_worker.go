// Package worker hosts the AMQP consumers: notification fan-out and
// spreadsheet report export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/storage"
)

type NotifyStore interface {
	GetTrip(ctx context.Context, id int64) (*core.Trip, error)
	CreateNotification(ctx context.Context, n core.Notification) (int64, error)
}

// NotifyWorker turns one queued message into notification rows for every
// trip member except the actor.
type NotifyWorker struct {
	store NotifyStore
}

func NewNotifyWorker(store NotifyStore) *NotifyWorker {
	return &NotifyWorker{store: store}
}

func (w *NotifyWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	trip, err := w.store.GetTrip(ctx, msg.TripID)
	if errors.Is(err, storage.ErrNotFound) {
		// Trip deleted between publish and consume; requeueing would loop
		slog.WarnContext(ctx, "Dropping notification for missing trip", "trip_id", msg.TripID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get trip: %w", err)
	}

	delivered := 0
	for _, userID := range trip.Roster() {
		if userID == msg.ActorID {
			continue
		}
		_, err := w.store.CreateNotification(ctx, core.Notification{
			UserID:  userID,
			TripID:  msg.TripID,
			Type:    msg.Type,
			Title:   msg.Title,
			Message: msg.Message,
		})
		if err != nil {
			return fmt.Errorf("create notification for user %d: %w", userID, err)
		}
		delivered++
	}

	slog.InfoContext(ctx, "Notification fanned out",
		"trip_id", msg.TripID,
		"type", msg.Type,
		"recipients", delivered)
	return nil
}
