package worker

import (
	"context"
	"testing"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/storage"
)

type fakeNotifyStore struct {
	trips   map[int64]*core.Trip
	created []core.Notification
}

func (f *fakeNotifyStore) GetTrip(ctx context.Context, id int64) (*core.Trip, error) {
	t, ok := f.trips[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeNotifyStore) CreateNotification(ctx context.Context, n core.Notification) (int64, error) {
	f.created = append(f.created, n)
	return int64(len(f.created)), nil
}

func TestHandleNotificationFansOut(t *testing.T) {
	store := &fakeNotifyStore{trips: map[int64]*core.Trip{
		1: {ID: 1, Name: "Lisbon", OwnerID: 10, Members: []int64{10, 11, 12}},
	}}
	w := NewNotifyWorker(store)

	msg := amqp.NewNotificationMessage(1, 11, core.NotifyExpenseAdded, "New Expense Added", "ben added an expense")
	if err := w.HandleNotification(context.Background(), msg); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if len(store.created) != 2 {
		t.Fatalf("created %d notifications, want 2 (actor excluded)", len(store.created))
	}
	for _, n := range store.created {
		if n.UserID == 11 {
			t.Error("actor should not be notified about their own action")
		}
		if n.Type != core.NotifyExpenseAdded {
			t.Errorf("type = %q, want expense_added", n.Type)
		}
	}
}

func TestHandleNotificationMissingTripDropped(t *testing.T) {
	store := &fakeNotifyStore{trips: map[int64]*core.Trip{}}
	w := NewNotifyWorker(store)
	msg := amqp.NewNotificationMessage(404, 1, core.NotifySettlement, "t", "m")
	if err := w.HandleNotification(context.Background(), msg); err != nil {
		t.Errorf("missing trip should drop the message, got %v", err)
	}
	if len(store.created) != 0 {
		t.Errorf("created %d notifications for missing trip", len(store.created))
	}
}
