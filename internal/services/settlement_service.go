package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/settle"
)

// ProposedTransfer is a suggested payment between two trip members, mapped
// back from the engine's opaque ids to user ids.
type ProposedTransfer struct {
	FromUserID int64
	ToUserID   int64
	Amount     core.Money
}

// SettlementService wraps the settlement engine with trip data access and
// settlement bookkeeping.
type SettlementService struct {
	store     SettlementStore
	publisher NotificationPublisher
}

func NewSettlementService(store SettlementStore, publisher NotificationPublisher) *SettlementService {
	return &SettlementService{store: store, publisher: publisher}
}

// SuggestSettlements computes the transfer list that squares up the trip's
// current expenses. The result is recomputed from scratch on every call and
// never persisted; only confirmed payments become settlement records.
func (s *SettlementService) SuggestSettlements(ctx context.Context, tripID int64) ([]ProposedTransfer, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}

	expenses, err := s.store.ListTripExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list trip expenses: %w", err)
	}

	roster := make([]string, 0, len(trip.Members)+1)
	for _, id := range trip.Roster() {
		roster = append(roster, userKey(id))
	}

	engineExpenses := make([]settle.Expense, 0, len(expenses))
	for _, e := range expenses {
		se := settle.Expense{
			PayerID: userKey(e.PayerID),
			Amount:  e.Amount,
		}
		for _, share := range e.SplitBetween {
			se.SplitBetween = append(se.SplitBetween, settle.Share{
				UserID: userKey(share.UserID),
				Amount: share.Amount,
			})
		}
		engineExpenses = append(engineExpenses, se)
	}

	transfers := settle.Resolve(engineExpenses, roster)

	proposed := make([]ProposedTransfer, 0, len(transfers))
	for _, tr := range transfers {
		from, err := parseUserKey(tr.FromUserID)
		if err != nil {
			return nil, err
		}
		to, err := parseUserKey(tr.ToUserID)
		if err != nil {
			return nil, err
		}
		proposed = append(proposed, ProposedTransfer{FromUserID: from, ToUserID: to, Amount: tr.Amount})
	}

	slog.InfoContext(ctx, "Settlements computed",
		"trip_id", tripID,
		"expenses", len(expenses),
		"transfers", len(proposed))
	return proposed, nil
}

// RecordSettlement persists a payment the payer confirmed out-of-band and
// notifies the trip.
func (s *SettlementService) RecordSettlement(ctx context.Context, tripID, fromUserID, toUserID int64, amount core.Money) (*core.Settlement, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}

	settlement := core.Settlement{
		TripID:     tripID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Status:     core.SettlementSettled,
		SettledAt:  time.Now().UTC(),
	}
	if err := settlement.Validate(); err != nil {
		return nil, err
	}
	if !trip.IsMember(fromUserID) || !trip.IsMember(toUserID) {
		return nil, core.ErrUnknownParticipant
	}

	id, err := s.store.CreateSettlement(ctx, settlement)
	if err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}
	settlement.ID = id

	s.notifyPayment(ctx, trip, settlement)
	return &settlement, nil
}

// History returns the trip's recorded settlements, newest first.
func (s *SettlementService) History(ctx context.Context, tripID int64) ([]core.Settlement, error) {
	settlements, err := s.store.ListTripSettlements(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlements, nil
}

func (s *SettlementService) notifyPayment(ctx context.Context, trip *core.Trip, settlement core.Settlement) {
	if s.publisher == nil {
		return
	}

	payer, err := s.store.GetUser(ctx, settlement.FromUserID)
	payerName := "A member"
	if err == nil {
		payerName = payer.Name
	}

	msg := amqp.NewNotificationMessage(
		trip.ID,
		settlement.FromUserID,
		core.NotifySettlement,
		"Payment Settled",
		fmt.Sprintf("%s settled %s on %s", payerName, settlement.Amount, trip.Name),
	)
	if err := s.publisher.PublishNotification(ctx, msg); err != nil {
		// The settlement is already saved; notification loss is tolerable
		slog.ErrorContext(ctx, "Failed to publish settlement notification",
			"trip_id", trip.ID, "error", err)
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseUserKey(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse user key %q: %w", key, err)
	}
	return id, nil
}
