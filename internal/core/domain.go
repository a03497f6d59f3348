package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TripPlanning  TripStatus = "planning"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripArchived  TripStatus = "archived"
)

const (
	CategoryAccommodation Category = "Accommodation"
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryActivities    Category = "Activities"
	CategoryMiscellaneous Category = "Miscellaneous"
)

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSettled SettlementStatus = "settled"
)

const (
	NotifyExpenseAdded   NotificationType = "expense_added"
	NotifyPaymentRequest NotificationType = "payment_request"
	NotifyTripInvite     NotificationType = "trip_invite"
	NotifyBudgetAlert    NotificationType = "budget_alert"
	NotifySettlement     NotificationType = "settlement"
)

type (
	TripStatus       string
	Category         string
	SettlementStatus string
	NotificationType string

	User struct {
		ID           int64
		Name         string
		Email        string
		PasswordHash string
		BaseCurrency string
		CreatedAt    time.Time
	}

	Trip struct {
		ID          int64
		Name        string
		Destination string
		Description string
		OwnerID     int64
		StartDate   time.Time
		EndDate     time.Time
		Budget      Money
		Currency    string
		Status      TripStatus
		Members     []int64 // owner included, insertion order preserved
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Share is one participant's portion of an expense.
	Share struct {
		UserID int64
		Amount Money
	}

	Expense struct {
		ID           int64
		TripID       int64
		PayerID      int64
		Category     Category
		Amount       Money
		Currency     string
		Date         time.Time
		Description  string
		SplitBetween []Share
		CreatedAt    time.Time
	}

	Settlement struct {
		ID         int64
		TripID     int64
		FromUserID int64
		ToUserID   int64
		Amount     Money
		Status     SettlementStatus
		CreatedAt  time.Time
		SettledAt  time.Time
	}

	Notification struct {
		ID        int64
		UserID    int64
		TripID    int64
		Type      NotificationType
		Title     string
		Message   string
		Read      bool
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPayer       = errors.New("invalid payer")
	ErrInvalidSplit       = errors.New("invalid split")
	ErrSelfSettlement     = errors.New("settlement from and to the same user")
	ErrUnknownParticipant = errors.New("participant is not a trip member")
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripPlanning, TripActive, TripCompleted, TripArchived:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	switch c {
	case CategoryAccommodation, CategoryFood, CategoryTransport,
		CategoryActivities, CategoryMiscellaneous:
		return true
	}
	return false
}

func (t Trip) Validate() error {
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.Budget.Cents < 0 {
		return ErrInvalidAmount
	}
	if !t.StartDate.IsZero() && !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		return errors.New("end date must not be before start date")
	}
	return nil
}

// IsMember reports whether a user belongs to the trip roster.
// The owner always counts as a member.
func (t Trip) IsMember(userID int64) bool {
	if userID == t.OwnerID {
		return true
	}
	for _, m := range t.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Roster returns the trip membership with the owner first, deduplicated,
// preserving member insertion order.
func (t Trip) Roster() []int64 {
	roster := make([]int64, 0, len(t.Members)+1)
	seen := map[int64]bool{}
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			roster = append(roster, id)
		}
	}
	add(t.OwnerID)
	for _, m := range t.Members {
		add(m)
	}
	return roster
}

func (e Expense) Validate() error {
	if e.PayerID <= 0 {
		return ErrInvalidPayer
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	for _, s := range e.SplitBetween {
		if s.UserID <= 0 {
			return ErrInvalidSplit
		}
		if s.Amount.Cents <= 0 {
			return ErrInvalidSplit
		}
	}
	return nil
}

// ValidateForTrip runs Validate plus the roster checks that the settlement
// engine assumes: the payer and every split participant must be members.
func (e Expense) ValidateForTrip(t Trip) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !t.IsMember(e.PayerID) {
		return ErrUnknownParticipant
	}
	for _, s := range e.SplitBetween {
		if !t.IsMember(s.UserID) {
			return ErrUnknownParticipant
		}
	}
	return nil
}

func (s Settlement) Validate() error {
	if s.FromUserID <= 0 || s.ToUserID <= 0 {
		return ErrInvalidPayer
	}
	if s.FromUserID == s.ToUserID {
		return ErrSelfSettlement
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	switch s.Status {
	case SettlementPending, SettlementSettled:
	default:
		return ErrInvalidStatus
	}
	return nil
}
