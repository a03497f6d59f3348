package core

// TripReport aggregates a trip's spending for the report endpoint and the
// spreadsheet export.
type TripReport struct {
	TripID     int64
	Total      Money
	ByCategory []CategoryAmount
	ByMember   []MemberAmount
}

type CategoryAmount struct {
	Category Category
	Amount   Money
}

// MemberAmount is one member's totals: what they fronted and what was
// attributed to them across all splits.
type MemberAmount struct {
	UserID int64
	Name   string
	Paid   Money
	Owed   Money
}
