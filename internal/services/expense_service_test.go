package services

import (
	"context"
	"errors"
	"testing"

	"tripsplit/internal/core"
)

func TestCreateExpense(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	tripID, ana, ben, cal := threeMemberTrip(store)
	svc := NewExpenseService(store, publisher)

	expense := core.Expense{
		TripID:      tripID,
		PayerID:     ana,
		Category:    core.CategoryAccommodation,
		Amount:      core.Money{Cents: 30000},
		Description: "hostel",
		SplitBetween: []core.Share{
			{UserID: ana, Amount: core.Money{Cents: 10000}},
			{UserID: ben, Amount: core.Money{Cents: 10000}},
			{UserID: cal, Amount: core.Money{Cents: 10000}},
		},
	}

	id, err := svc.CreateExpense(context.Background(), expense)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	saved, err := store.GetExpense(context.Background(), id)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if saved.Currency != "USD" {
		t.Errorf("Currency = %q, want trip default USD", saved.Currency)
	}
	if len(publisher.notifications) != 1 {
		t.Fatalf("published %d notifications, want 1", len(publisher.notifications))
	}
	if publisher.notifications[0].Type != core.NotifyExpenseAdded {
		t.Errorf("notification type = %q, want expense_added", publisher.notifications[0].Type)
	}
	if publisher.notifications[0].ActorID != ana {
		t.Errorf("notification actor = %d, want payer %d", publisher.notifications[0].ActorID, ana)
	}
}

func TestBudgetAlert(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	ana := store.addUser("ana")
	tripID := store.addTrip(core.Trip{
		Name:     "Lisbon",
		OwnerID:  ana,
		Status:   core.TripActive,
		Currency: "USD",
		Budget:   core.Money{Cents: 10000},
		Members:  []int64{ana},
	})
	svc := NewExpenseService(store, publisher)
	ctx := context.Background()

	spend := func(cents int64) {
		t.Helper()
		_, err := svc.CreateExpense(ctx, core.Expense{
			TripID:       tripID,
			PayerID:      ana,
			Category:     core.CategoryFood,
			Amount:       core.Money{Cents: cents},
			SplitBetween: []core.Share{{UserID: ana, Amount: core.Money{Cents: cents}}},
		})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	countAlerts := func() int {
		n := 0
		for _, msg := range publisher.notifications {
			if msg.Type == core.NotifyBudgetAlert {
				n++
			}
		}
		return n
	}

	spend(6000)
	if countAlerts() != 0 {
		t.Fatal("alert raised while under budget")
	}

	// This expense crosses the 100.00 budget
	spend(5000)
	if countAlerts() != 1 {
		t.Fatalf("alerts = %d, want 1 after crossing budget", countAlerts())
	}

	// Further spending past the budget stays quiet
	spend(3000)
	if countAlerts() != 1 {
		t.Errorf("alerts = %d, want still 1", countAlerts())
	}
}

func TestCreateExpenseRejectsOutsiders(t *testing.T) {
	store := newFakeStore()
	tripID, ana, _, _ := threeMemberTrip(store)
	outsider := store.addUser("zoe")
	svc := NewExpenseService(store, nil)

	expense := core.Expense{
		TripID:   tripID,
		PayerID:  ana,
		Category: core.CategoryFood,
		Amount:   core.Money{Cents: 5000},
		SplitBetween: []core.Share{
			{UserID: outsider, Amount: core.Money{Cents: 5000}},
		},
	}
	if _, err := svc.CreateExpense(context.Background(), expense); !errors.Is(err, core.ErrUnknownParticipant) {
		t.Errorf("got %v, want ErrUnknownParticipant", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	store := newFakeStore()
	tripID, ana, ben, cal := threeMemberTrip(store)
	svc := NewExpenseService(store, nil)
	ctx := context.Background()

	id, err := svc.CreateExpense(ctx, core.Expense{
		TripID:   tripID,
		PayerID:  ben,
		Category: core.CategoryFood,
		Amount:   core.Money{Cents: 4000},
		SplitBetween: []core.Share{
			{UserID: ben, Amount: core.Money{Cents: 2000}},
			{UserID: cal, Amount: core.Money{Cents: 2000}},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	t.Run("other member may not delete", func(t *testing.T) {
		if _, err := svc.DeleteExpense(ctx, id, cal); !errors.Is(err, ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("owner may delete", func(t *testing.T) {
		gotTrip, err := svc.DeleteExpense(ctx, id, ana)
		if err != nil {
			t.Errorf("owner delete failed: %v", err)
		}
		if gotTrip != tripID {
			t.Errorf("got trip %d, want %d", gotTrip, tripID)
		}
	})
}
