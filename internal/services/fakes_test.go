package services

import (
	"context"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/storage"
)

// fakeStore is an in-memory stand-in for the SQLite repository.
type fakeStore struct {
	trips       map[int64]*core.Trip
	users       map[int64]*core.User
	expenses    map[int64]*core.Expense
	settlements []core.Settlement
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trips:    make(map[int64]*core.Trip),
		users:    make(map[int64]*core.User),
		expenses: make(map[int64]*core.Expense),
		nextID:   1,
	}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) addUser(name string) int64 {
	id := f.id()
	f.users[id] = &core.User{ID: id, Name: name, Email: name + "@example.com"}
	return id
}

func (f *fakeStore) addTrip(t core.Trip) int64 {
	id := f.id()
	t.ID = id
	f.trips[id] = &t
	return id
}

func (f *fakeStore) CreateTrip(ctx context.Context, t core.Trip) (int64, error) {
	return f.addTrip(t), nil
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
	for _, t := range f.trips {
		if t.IsMember(userID) {
			trips = append(trips, *t)
		}
	}
	return trips, nil
}

func (f *fakeStore) UpdateTrip(ctx context.Context, t core.Trip) error {
	if _, ok := f.trips[t.ID]; !ok {
		return storage.ErrNotFound
	}
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

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*core.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	id := f.id()
	e.ID = id
	f.expenses[id] = &e
	return id, nil
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
	// Creation order, like the repository
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

// fakePublisher records published messages.
type fakePublisher struct {
	notifications []*amqp.NotificationMessage
	exports       []*amqp.ReportExportMessage
	err           error
}

func (f *fakePublisher) PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, msg)
	return nil
}

func (f *fakePublisher) PublishReportExport(ctx context.Context, msg *amqp.ReportExportMessage) error {
	if f.err != nil {
		return f.err
	}
	f.exports = append(f.exports, msg)
	return nil
}
