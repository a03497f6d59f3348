package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
)

var ErrForbidden = errors.New("not allowed")

// ExpenseService validates expenses against the trip roster before they
// reach storage. The settlement engine assumes this boundary check
// happened, so it is the one place that rejects unknown participants.
type ExpenseService struct {
	store     ExpenseStore
	publisher NotificationPublisher
}

func NewExpenseService(store ExpenseStore, publisher NotificationPublisher) *ExpenseService {
	return &ExpenseService{store: store, publisher: publisher}
}

// CreateExpense validates and saves an expense, then notifies the trip.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	trip, err := s.store.GetTrip(ctx, e.TripID)
	if err != nil {
		return 0, fmt.Errorf("get trip: %w", err)
	}

	if err := e.ValidateForTrip(*trip); err != nil {
		return 0, err
	}
	if e.Currency == "" {
		e.Currency = trip.Currency
	}

	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	s.notifyExpenseAdded(ctx, trip, e)
	s.notifyBudgetCrossed(ctx, trip, e)
	return id, nil
}

// notifyBudgetCrossed raises a budget alert when this expense is the one
// that pushes the trip's total spending past its budget. Alerting only on
// the crossing expense keeps it to a single notification per trip.
func (s *ExpenseService) notifyBudgetCrossed(ctx context.Context, trip *core.Trip, e core.Expense) {
	if s.publisher == nil || trip.Budget.Cents <= 0 {
		return
	}

	expenses, err := s.store.ListTripExpenses(ctx, trip.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load expenses for budget check",
			"trip_id", trip.ID, "error", err)
		return
	}
	var total int64
	for _, ex := range expenses {
		total += ex.Amount.Cents
	}
	if total <= trip.Budget.Cents || total-e.Amount.Cents > trip.Budget.Cents {
		return
	}

	msg := amqp.NewNotificationMessage(
		trip.ID,
		e.PayerID,
		core.NotifyBudgetAlert,
		"Budget Exceeded",
		fmt.Sprintf("%s is over its %s budget (spent %s)",
			trip.Name, trip.Budget, core.Money{Cents: total}),
	)
	if err := s.publisher.PublishNotification(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"trip_id", trip.ID, "error", err)
	}
}

// DeleteExpense soft deletes an expense and returns the trip it belonged
// to. Only the payer or the trip owner may remove it.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID, requesterID int64) (int64, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return 0, fmt.Errorf("get expense: %w", err)
	}

	trip, err := s.store.GetTrip(ctx, expense.TripID)
	if err != nil {
		return 0, fmt.Errorf("get trip: %w", err)
	}
	if requesterID != expense.PayerID && requesterID != trip.OwnerID {
		return 0, ErrForbidden
	}

	if err := s.store.SoftDeleteExpense(ctx, expenseID); err != nil {
		return 0, fmt.Errorf("soft delete expense: %w", err)
	}
	return expense.TripID, nil
}

// ListTripExpenses returns the trip's live expenses.
func (s *ExpenseService) ListTripExpenses(ctx context.Context, tripID int64) ([]core.Expense, error) {
	expenses, err := s.store.ListTripExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list trip expenses: %w", err)
	}
	return expenses, nil
}

func (s *ExpenseService) notifyExpenseAdded(ctx context.Context, trip *core.Trip, e core.Expense) {
	if s.publisher == nil {
		return
	}

	payerName := "A member"
	if payer, err := s.store.GetUser(ctx, e.PayerID); err == nil {
		payerName = payer.Name
	}

	description := e.Description
	if description == "" {
		description = string(e.Category)
	}

	msg := amqp.NewNotificationMessage(
		trip.ID,
		e.PayerID,
		core.NotifyExpenseAdded,
		"New Expense Added",
		fmt.Sprintf("%s added a %s expense for %s", payerName, e.Amount, description),
	)
	if err := s.publisher.PublishNotification(ctx, msg); err != nil {
		// Expense is already saved; don't fail the request
		slog.ErrorContext(ctx, "Failed to publish expense notification",
			"trip_id", trip.ID, "error", err)
	}
}
