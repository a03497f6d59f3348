// Package storage persists trips, expenses, settlements and notifications
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tripsplit/internal/core"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, base_currency) VALUES (?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, u.BaseCurrency)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "email", u.Email)
	return id, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash, base_currency, created_at FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash, base_currency, created_at FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (*core.User, error) {
	var u core.User
	var createdAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.BaseCurrency, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = createdAt.Time
	return &u, nil
}

// --- trips ---

func (r *SQLiteRepository) CreateTrip(ctx context.Context, t core.Trip) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin trip tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO trips (name, destination, description, owner_id, start_date, end_date, budget_cents, currency, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Destination, t.Description, t.OwnerID,
		nullTime(t.StartDate), nullTime(t.EndDate), t.Budget.Cents, t.Currency, string(t.Status))
	if err != nil {
		return 0, fmt.Errorf("insert trip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("trip insert id: %w", err)
	}

	roster := t.Roster()
	for pos, userID := range roster {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trip_members (trip_id, user_id, position) VALUES (?, ?, ?)`,
			id, userID, pos); err != nil {
			return 0, fmt.Errorf("insert trip member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit trip: %w", err)
	}

	slog.InfoContext(ctx, "Trip created", "id", id, "name", t.Name, "members", len(roster))
	return id, nil
}

func (r *SQLiteRepository) GetTrip(ctx context.Context, id int64) (*core.Trip, error) {
	var t core.Trip
	var startDate, endDate, createdAt, updatedAt sql.NullTime
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, destination, description, owner_id, start_date, end_date, budget_cents, currency, status, created_at, updated_at
		 FROM trips WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Destination, &t.Description, &t.OwnerID,
			&startDate, &endDate, &t.Budget.Cents, &t.Currency, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	t.StartDate = startDate.Time
	t.EndDate = endDate.Time
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	t.Status = core.TripStatus(status)

	members, err := r.tripMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return &t, nil
}

// tripMembers returns member ids in the order they joined. That order is
// what the settlement engine sweeps in, so it must be stable.
func (r *SQLiteRepository) tripMembers(ctx context.Context, tripID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM trip_members WHERE trip_id = ? ORDER BY position`, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trip member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (r *SQLiteRepository) ListTripsForUser(ctx context.Context, userID int64) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT t.id FROM trips t
		 JOIN trip_members m ON m.trip_id = t.id
		 WHERE m.user_id = ?
		 ORDER BY t.created_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trip id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trips := make([]core.Trip, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetTrip(ctx, id)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, nil
}

func (r *SQLiteRepository) UpdateTrip(ctx context.Context, t core.Trip) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET name = ?, destination = ?, description = ?, start_date = ?, end_date = ?,
		 budget_cents = ?, currency = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Destination, t.Description, nullTime(t.StartDate), nullTime(t.EndDate),
		t.Budget.Cents, t.Currency, string(t.Status), time.Now().UTC(), t.ID)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTrip(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Trip deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) AddTripMember(ctx context.Context, tripID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO trip_members (trip_id, user_id, position)
		 SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM trip_members WHERE trip_id = ?`,
		tripID, userID, tripID)
	if err != nil {
		return fmt.Errorf("add trip member: %w", err)
	}
	return nil
}

// --- expenses ---

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin expense tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (trip_id, payer_id, category, amount_cents, currency, expense_date, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TripID, e.PayerID, string(e.Category), e.Amount.Cents, e.Currency, e.Date.UTC(), e.Description)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}

	for pos, s := range e.SplitBetween {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, user_id, amount_cents, position) VALUES (?, ?, ?, ?)`,
			id, s.UserID, s.Amount.Cents, pos); err != nil {
			return 0, fmt.Errorf("insert expense split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"trip_id", e.TripID,
		"payer_id", e.PayerID,
		"amount_cents", e.Amount.Cents,
		"splits", len(e.SplitBetween))
	return id, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	expenses, err := r.queryExpenses(ctx,
		`SELECT id, trip_id, payer_id, category, amount_cents, currency, expense_date, description, created_at
		 FROM expenses WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, ErrNotFound
	}
	return &expenses[0], nil
}

// ListTripExpenses returns the trip's live expenses in creation order,
// splits in their original order.
func (r *SQLiteRepository) ListTripExpenses(ctx context.Context, tripID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT id, trip_id, payer_id, category, amount_cents, currency, expense_date, description, created_at
		 FROM expenses WHERE trip_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`, tripID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var category string
		var date, createdAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.TripID, &e.PayerID, &category, &e.Amount.Cents,
			&e.Currency, &date, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Category = core.Category(category)
		e.Date = date.Time
		e.CreatedAt = createdAt.Time
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expenses {
		splits, err := r.expenseSplits(ctx, expenses[i].ID)
		if err != nil {
			return nil, err
		}
		expenses[i].SplitBetween = splits
	}
	return expenses, nil
}

func (r *SQLiteRepository) expenseSplits(ctx context.Context, expenseID int64) ([]core.Share, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, amount_cents FROM expense_splits WHERE expense_id = ? ORDER BY position`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("get expense splits: %w", err)
	}
	defer rows.Close()

	var splits []core.Share
	for rows.Next() {
		var s core.Share
		if err := rows.Scan(&s.UserID, &s.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan expense split: %w", err)
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Expense soft deleted", "id", id)
	return nil
}

// --- settlements ---

func (r *SQLiteRepository) CreateSettlement(ctx context.Context, s core.Settlement) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO settlements (trip_id, from_user_id, to_user_id, amount_cents, status, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.TripID, s.FromUserID, s.ToUserID, s.Amount.Cents, string(s.Status), nullTime(s.SettledAt))
	if err != nil {
		return 0, fmt.Errorf("create settlement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("settlement insert id: %w", err)
	}

	slog.InfoContext(ctx, "Settlement recorded",
		"id", id,
		"trip_id", s.TripID,
		"from_user_id", s.FromUserID,
		"to_user_id", s.ToUserID,
		"amount_cents", s.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) ListTripSettlements(ctx context.Context, tripID int64) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, from_user_id, to_user_id, amount_cents, status, created_at, settled_at
		 FROM settlements WHERE trip_id = ? ORDER BY created_at DESC, id DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []core.Settlement
	for rows.Next() {
		var s core.Settlement
		var status string
		var createdAt, settledAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.TripID, &s.FromUserID, &s.ToUserID,
			&s.Amount.Cents, &status, &createdAt, &settledAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		s.Status = core.SettlementStatus(status)
		s.CreatedAt = createdAt.Time
		s.SettledAt = settledAt.Time
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

// --- notifications ---

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, trip_id, type, title, message) VALUES (?, ?, ?, ?, ?)`,
		n.UserID, nullID(n.TripID), string(n.Type), n.Title, n.Message)
	if err != nil {
		return 0, fmt.Errorf("create notification: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListUserNotifications(ctx context.Context, userID int64) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, trip_id, type, title, message, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 100`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []core.Notification
	for rows.Next() {
		var n core.Notification
		var tripID sql.NullInt64
		var notifType string
		var createdAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &tripID, &notifType, &n.Title, &n.Message, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.TripID = tripID.Int64
		n.Type = core.NotificationType(notifType)
		n.CreatedAt = createdAt.Time
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- report aggregates ---

func (r *SQLiteRepository) GetTripCategoryTotals(ctx context.Context, tripID int64) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM expenses
		 WHERE trip_id = ? AND deleted_at IS NULL
		 GROUP BY category ORDER BY SUM(amount_cents) DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		var category string
		if err := rows.Scan(&category, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ca.Category = core.Category(category)
		totals = append(totals, ca)
	}
	return totals, rows.Err()
}

// GetTripMemberTotals returns paid and owed totals per roster member in
// roster order.
func (r *SQLiteRepository) GetTripMemberTotals(ctx context.Context, tripID int64) ([]core.MemberAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.user_id, u.name,
		        COALESCE((SELECT SUM(e.amount_cents) FROM expenses e
		                  WHERE e.trip_id = m.trip_id AND e.payer_id = m.user_id AND e.deleted_at IS NULL), 0),
		        COALESCE((SELECT SUM(s.amount_cents) FROM expense_splits s
		                  JOIN expenses e ON e.id = s.expense_id
		                  WHERE e.trip_id = m.trip_id AND s.user_id = m.user_id AND e.deleted_at IS NULL), 0)
		 FROM trip_members m JOIN users u ON u.id = m.user_id
		 WHERE m.trip_id = ? ORDER BY m.position`, tripID)
	if err != nil {
		return nil, fmt.Errorf("member totals: %w", err)
	}
	defer rows.Close()

	var totals []core.MemberAmount
	for rows.Next() {
		var ma core.MemberAmount
		if err := rows.Scan(&ma.UserID, &ma.Name, &ma.Paid.Cents, &ma.Owed.Cents); err != nil {
			return nil, fmt.Errorf("scan member total: %w", err)
		}
		totals = append(totals, ma)
	}
	return totals, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
