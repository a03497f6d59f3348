package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripsplit/internal/auth"
	"tripsplit/internal/core"
	"tripsplit/internal/services"
	"tripsplit/internal/storage"
)

// fakeStore backs the whole API in memory for handler tests.
type fakeStore struct {
	users         map[int64]*core.User
	trips         map[int64]*core.Trip
	expenses      map[int64]*core.Expense
	settlements   []core.Settlement
	notifications map[int64]*core.Notification
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[int64]*core.User),
		trips:         make(map[int64]*core.Trip),
		expenses:      make(map[int64]*core.Expense),
		notifications: make(map[int64]*core.Notification),
		nextID:        1,
	}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) CreateUser(ctx context.Context, u core.User) (int64, error) {
	u.ID = f.id()
	f.users[u.ID] = &u
	return u.ID, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*core.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateTrip(ctx context.Context, t core.Trip) (int64, error) {
	t.ID = f.id()
	t.CreatedAt = time.Now().UTC()
	f.trips[t.ID] = &t
	return t.ID, nil
}

func (f *fakeStore) GetTrip(ctx context.Context, id int64) (*core.Trip, error) {
	t, ok := f.trips[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) ListTripsForUser(ctx context.Context, userID int64) ([]core.Trip, error) {
	var trips []core.Trip
	for id := int64(1); id < f.nextID; id++ {
		if t, ok := f.trips[id]; ok && t.IsMember(userID) {
			trips = append(trips, *t)
		}
	}
	return trips, nil
}

func (f *fakeStore) UpdateTrip(ctx context.Context, t core.Trip) error {
	current, ok := f.trips[t.ID]
	if !ok {
		return storage.ErrNotFound
	}
	t.Members = current.Members
	f.trips[t.ID] = &t
	return nil
}

func (f *fakeStore) DeleteTrip(ctx context.Context, id int64) error {
	if _, ok := f.trips[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.trips, id)
	return nil
}

func (f *fakeStore) AddTripMember(ctx context.Context, tripID, userID int64) error {
	t, ok := f.trips[tripID]
	if !ok {
		return storage.ErrNotFound
	}
	if !t.IsMember(userID) {
		t.Members = append(t.Members, userID)
	}
	return nil
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	e.ID = f.id()
	e.CreatedAt = time.Now().UTC()
	f.expenses[e.ID] = &e
	return e.ID, nil
}

func (f *fakeStore) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeStore) ListTripExpenses(ctx context.Context, tripID int64) ([]core.Expense, error) {
	var expenses []core.Expense
	for id := int64(1); id < f.nextID; id++ {
		if e, ok := f.expenses[id]; ok && e.TripID == tripID {
			expenses = append(expenses, *e)
		}
	}
	return expenses, nil
}

func (f *fakeStore) SoftDeleteExpense(ctx context.Context, id int64) error {
	if _, ok := f.expenses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}

func (f *fakeStore) CreateSettlement(ctx context.Context, s core.Settlement) (int64, error) {
	s.ID = f.id()
	f.settlements = append(f.settlements, s)
	return s.ID, nil
}

func (f *fakeStore) ListTripSettlements(ctx context.Context, tripID int64) ([]core.Settlement, error) {
	var out []core.Settlement
	for _, s := range f.settlements {
		if s.TripID == tripID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTripCategoryTotals(ctx context.Context, tripID int64) ([]core.CategoryAmount, error) {
	sums := map[core.Category]int64{}
	var order []core.Category
	for id := int64(1); id < f.nextID; id++ {
		e, ok := f.expenses[id]
		if !ok || e.TripID != tripID {
			continue
		}
		if _, seen := sums[e.Category]; !seen {
			order = append(order, e.Category)
		}
		sums[e.Category] += e.Amount.Cents
	}
	var out []core.CategoryAmount
	for _, c := range order {
		out = append(out, core.CategoryAmount{Category: c, Amount: core.Money{Cents: sums[c]}})
	}
	return out, nil
}

func (f *fakeStore) GetTripMemberTotals(ctx context.Context, tripID int64) ([]core.MemberAmount, error) {
	t, ok := f.trips[tripID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	var out []core.MemberAmount
	for _, userID := range t.Roster() {
		ma := core.MemberAmount{UserID: userID}
		if u, ok := f.users[userID]; ok {
			ma.Name = u.Name
		}
		for _, e := range f.expenses {
			if e.TripID != tripID {
				continue
			}
			if e.PayerID == userID {
				ma.Paid.Cents += e.Amount.Cents
			}
			for _, s := range e.SplitBetween {
				if s.UserID == userID {
					ma.Owed.Cents += s.Amount.Cents
				}
			}
		}
		out = append(out, ma)
	}
	return out, nil
}

func (f *fakeStore) ListUserNotifications(ctx context.Context, userID int64) ([]core.Notification, error) {
	var out []core.Notification
	for id := f.nextID - 1; id >= 1; id-- {
		if n, ok := f.notifications[id]; ok && n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	n.Read = true
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	server := NewServer(Options{
		Addr:          ":0",
		Users:         store,
		Notifications: store,
		Trips:         services.NewTripService(store, nil),
		Expenses:      services.NewExpenseService(store, nil),
		Settlements:   services.NewSettlementService(store, nil),
		Reports:       services.NewReportService(store, nil),
		Tokens:        auth.NewManager("test-secret-0123456789", time.Hour),
	})
	return server, store
}

func doJSON(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func register(t *testing.T, server *Server, name string) (int64, string) {
	t.Helper()
	rec := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", name, rec.Code, rec.Body.String())
	}
	resp := decodeBody[authResponse](t, rec)
	return resp.User.ID, resp.Token
}

func TestAuthFlow(t *testing.T) {
	server, _ := newTestServer(t)

	_, token := register(t, server, "ana")

	t.Run("duplicate email rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
			"name": "ana2", "email": "ana@example.com", "password": "correct horse",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("login with right password", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ana@example.com", "password": "correct horse",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if resp := decodeBody[authResponse](t, rec); resp.Token == "" {
			t.Error("empty token")
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ana@example.com", "password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("protected route requires token", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/trips", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("protected route accepts token", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/trips", token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestTripLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	anaID, anaToken := register(t, server, "ana")
	benID, benToken := register(t, server, "ben")

	rec := doJSON(t, server, http.MethodPost, "/api/trips", anaToken, map[string]any{
		"name":        "Lisbon",
		"destination": "Portugal",
		"startDate":   "2026-09-01",
		"endDate":     "2026-09-07",
		"budget":      "1500.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create trip: status %d: %s", rec.Code, rec.Body.String())
	}
	trip := decodeBody[tripResponse](t, rec)
	if trip.OwnerID != anaID {
		t.Errorf("ownerId = %d, want %d", trip.OwnerID, anaID)
	}
	if trip.Budget != 1500.00 {
		t.Errorf("budget = %v, want 1500", trip.Budget)
	}
	if trip.Status != "planning" {
		t.Errorf("status = %q, want planning", trip.Status)
	}

	tripPath := fmt.Sprintf("/api/trips/%d", trip.ID)

	t.Run("non-member cannot view", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, tripPath, benToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("only owner adds members", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, tripPath+"/members", benToken, map[string]int64{"userId": benID})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}

		rec = doJSON(t, server, http.MethodPost, tripPath+"/members", anaToken, map[string]int64{"userId": benID})
		if rec.Code != http.StatusOK {
			t.Fatalf("add member: status %d: %s", rec.Code, rec.Body.String())
		}
		updated := decodeBody[tripResponse](t, rec)
		if len(updated.Members) != 2 {
			t.Errorf("members = %v, want owner and ben", updated.Members)
		}
	})

	t.Run("member can view after joining", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, tripPath, benToken, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("only owner deletes", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodDelete, tripPath, benToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestExpenseAndSettlementFlow(t *testing.T) {
	server, _ := newTestServer(t)
	_, anaToken := register(t, server, "ana")
	benID, benToken := register(t, server, "ben")

	rec := doJSON(t, server, http.MethodPost, "/api/trips", anaToken, map[string]any{"name": "Kyoto"})
	trip := decodeBody[tripResponse](t, rec)
	tripPath := fmt.Sprintf("/api/trips/%d", trip.ID)
	doJSON(t, server, http.MethodPost, tripPath+"/members", anaToken, map[string]int64{"userId": benID})

	// Ana pays 300 split evenly with Ben
	rec = doJSON(t, server, http.MethodPost, tripPath+"/expenses", anaToken, map[string]any{
		"category": "Food",
		"amount":   "300.00",
		"splitBetween": []map[string]any{
			{"userId": trip.OwnerID, "amount": "150.00"},
			{"userId": benID, "amount": "150.00"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: status %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("expense with outsider in split rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, tripPath+"/expenses", anaToken, map[string]any{
			"category": "Food",
			"amount":   "50.00",
			"splitBetween": []map[string]any{
				{"userId": 9999, "amount": "50.00"},
			},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("suggested settlements square the trip", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, tripPath+"/settlements", benToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[struct {
			Settlements []transferResponse `json:"settlements"`
		}](t, rec)
		if len(resp.Settlements) != 1 {
			t.Fatalf("settlements = %+v, want one transfer", resp.Settlements)
		}
		got := resp.Settlements[0]
		if got.FromUser != benID || got.ToUser != trip.OwnerID || got.Amount != 150.00 {
			t.Errorf("transfer = %+v, want ben pays ana 150", got)
		}
	})

	t.Run("member records own payment", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, tripPath+"/settlements", benToken, map[string]any{
			"fromUser": benID,
			"toUser":   trip.OwnerID,
			"amount":   "150.00",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		settled := decodeBody[settlementResponse](t, rec)
		if settled.Status != "settled" {
			t.Errorf("status = %q, want settled", settled.Status)
		}
	})

	t.Run("cannot record another member's payment", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, tripPath+"/settlements", anaToken, map[string]any{
			"fromUser": benID,
			"toUser":   trip.OwnerID,
			"amount":   "10.00",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("history lists the recorded payment", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, tripPath+"/settlements/history", anaToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		history := decodeBody[[]settlementResponse](t, rec)
		if len(history) != 1 {
			t.Errorf("history = %+v, want one entry", history)
		}
	})
}

func TestTripReport(t *testing.T) {
	server, _ := newTestServer(t)
	anaID, anaToken := register(t, server, "ana")

	rec := doJSON(t, server, http.MethodPost, "/api/trips", anaToken, map[string]any{"name": "Oslo"})
	trip := decodeBody[tripResponse](t, rec)
	tripPath := fmt.Sprintf("/api/trips/%d", trip.ID)

	doJSON(t, server, http.MethodPost, tripPath+"/expenses", anaToken, map[string]any{
		"category": "Food",
		"amount":   "80.00",
		"splitBetween": []map[string]any{
			{"userId": anaID, "amount": "80.00"},
		},
	})
	doJSON(t, server, http.MethodPost, tripPath+"/expenses", anaToken, map[string]any{
		"category": "Transport",
		"amount":   "20.00",
		"splitBetween": []map[string]any{
			{"userId": anaID, "amount": "20.00"},
		},
	})

	rec = doJSON(t, server, http.MethodGet, tripPath+"/report", anaToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: status %d: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[reportResponse](t, rec)
	if report.Total != 100.00 {
		t.Errorf("total = %v, want 100", report.Total)
	}
	if len(report.ByCategory) != 2 {
		t.Errorf("byCategory = %+v, want Food and Transport", report.ByCategory)
	}
	if len(report.ByMember) != 1 || report.ByMember[0].Paid != 100.00 {
		t.Errorf("byMember = %+v, want ana paid 100", report.ByMember)
	}

	t.Run("export without a queue is unavailable", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, tripPath+"/report/export", anaToken, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("new expense invalidates cached report", func(t *testing.T) {
		doJSON(t, server, http.MethodPost, tripPath+"/expenses", anaToken, map[string]any{
			"category": "Activities",
			"amount":   "40.00",
			"splitBetween": []map[string]any{
				{"userId": anaID, "amount": "40.00"},
			},
		})
		rec := doJSON(t, server, http.MethodGet, tripPath+"/report", anaToken, nil)
		if fresh := decodeBody[reportResponse](t, rec); fresh.Total != 140.00 {
			t.Errorf("total = %v, want 140 after new expense", fresh.Total)
		}
	})
}

func TestNotifications(t *testing.T) {
	server, store := newTestServer(t)
	anaID, anaToken := register(t, server, "ana")

	id := store.id()
	store.notifications[id] = &core.Notification{
		ID: id, UserID: anaID, TripID: 1,
		Type: core.NotifyExpenseAdded, Title: "New Expense Added",
		Message: "ben added a 12.00 expense", CreatedAt: time.Now().UTC(),
	}

	rec := doJSON(t, server, http.MethodGet, "/api/notifications", anaToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	list := decodeBody[[]notificationResponse](t, rec)
	if len(list) != 1 || list[0].Read {
		t.Fatalf("list = %+v, want one unread notification", list)
	}

	rec = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), anaToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read: status %d", rec.Code)
	}
	if !store.notifications[id].Read {
		t.Error("notification not marked read")
	}

	t.Run("cannot mark another user's notification", func(t *testing.T) {
		_, benToken := register(t, server, "ben")
		rec := doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), benToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
