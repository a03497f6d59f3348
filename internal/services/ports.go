// Package services orchestrates storage, the settlement engine and the
// message queue behind the HTTP handlers.
package services

import (
	"context"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
)

// Storage ports. *storage.SQLiteRepository satisfies all of them; tests
// substitute fakes.
type (
	TripStore interface {
		CreateTrip(ctx context.Context, t core.Trip) (int64, error)
		GetTrip(ctx context.Context, id int64) (*core.Trip, error)
		ListTripsForUser(ctx context.Context, userID int64) ([]core.Trip, error)
		UpdateTrip(ctx context.Context, t core.Trip) error
		DeleteTrip(ctx context.Context, id int64) error
		AddTripMember(ctx context.Context, tripID, userID int64) error
		GetUser(ctx context.Context, id int64) (*core.User, error)
	}

	ExpenseStore interface {
		GetTrip(ctx context.Context, id int64) (*core.Trip, error)
		GetUser(ctx context.Context, id int64) (*core.User, error)
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)
		GetExpense(ctx context.Context, id int64) (*core.Expense, error)
		ListTripExpenses(ctx context.Context, tripID int64) ([]core.Expense, error)
		SoftDeleteExpense(ctx context.Context, id int64) error
	}

	SettlementStore interface {
		GetTrip(ctx context.Context, id int64) (*core.Trip, error)
		GetUser(ctx context.Context, id int64) (*core.User, error)
		ListTripExpenses(ctx context.Context, tripID int64) ([]core.Expense, error)
		CreateSettlement(ctx context.Context, s core.Settlement) (int64, error)
		ListTripSettlements(ctx context.Context, tripID int64) ([]core.Settlement, error)
	}

	ReportStore interface {
		GetTrip(ctx context.Context, id int64) (*core.Trip, error)
		GetTripCategoryTotals(ctx context.Context, tripID int64) ([]core.CategoryAmount, error)
		GetTripMemberTotals(ctx context.Context, tripID int64) ([]core.MemberAmount, error)
	}
)

// NotificationPublisher queues notification fan-outs. Nil-able: the API
// runs without a broker, it just stops notifying.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// ExportPublisher queues spreadsheet exports.
type ExportPublisher interface {
	PublishReportExport(ctx context.Context, msg *amqp.ReportExportMessage) error
}
