package http

import (
	"net/http"
	"time"

	"tripsplit/internal/core"
	applog "tripsplit/internal/log"
)

type shareRequest struct {
	UserID int64  `json:"userId"`
	Amount amount `json:"amount"`
}

type expenseRequest struct {
	Category     string         `json:"category"`
	Amount       amount         `json:"amount"`
	Currency     string         `json:"currency"`
	Date         string         `json:"date"`
	Description  string         `json:"description"`
	SplitBetween []shareRequest `json:"splitBetween"`
}

type shareResponse struct {
	UserID int64   `json:"userId"`
	Amount float64 `json:"amount"`
}

type expenseResponse struct {
	ID           int64           `json:"id"`
	TripID       int64           `json:"tripId"`
	PaidBy       int64           `json:"paidBy"`
	Category     string          `json:"category"`
	Amount       float64         `json:"amount"`
	Currency     string          `json:"currency"`
	Date         string          `json:"date,omitempty"`
	Description  string          `json:"description"`
	SplitBetween []shareResponse `json:"splitBetween"`
	CreatedAt    string          `json:"createdAt"`
}

func toExpenseResponse(e *core.Expense) expenseResponse {
	resp := expenseResponse{
		ID:           e.ID,
		TripID:       e.TripID,
		PaidBy:       e.PayerID,
		Category:     string(e.Category),
		Amount:       e.Amount.Units(),
		Currency:     e.Currency,
		Description:  e.Description,
		SplitBetween: make([]shareResponse, 0, len(e.SplitBetween)),
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !e.Date.IsZero() {
		resp.Date = e.Date.UTC().Format("2006-01-02")
	}
	for _, sh := range e.SplitBetween {
		resp.SplitBetween = append(resp.SplitBetween, shareResponse{
			UserID: sh.UserID,
			Amount: sh.Amount.Units(),
		})
	}
	return resp
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	tripID, userID, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense := core.Expense{
		TripID:      tripID,
		PayerID:     userID,
		Category:    core.Category(req.Category),
		Amount:      req.Amount.Money,
		Currency:    sanitizeInput(req.Currency),
		Description: sanitizeInput(req.Description),
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		expense.Date = d
	}
	for _, sh := range req.SplitBetween {
		expense.SplitBetween = append(expense.SplitBetween, core.Share{
			UserID: sh.UserID,
			Amount: sh.Amount.Money,
		})
	}

	id, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.reportCache.Delete(reportCacheKey(tripID))

	applog.FromContext(r.Context()).Info("Expense created",
		applog.FieldExpenseID, id, applog.FieldTripID, tripID)
	expense.ID = id
	expense.CreatedAt = time.Now().UTC()
	respondJSON(w, http.StatusCreated, toExpenseResponse(&expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	tripID, _, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	expenses, err := s.expenses.ListTripExpenses(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := make([]expenseResponse, 0, len(expenses))
	for i := range expenses {
		resp = append(resp, toExpenseResponse(&expenses[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r, "expenseID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tripID, err := s.expenses.DeleteExpense(r.Context(), expenseID, requestUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.reportCache.Delete(reportCacheKey(tripID))
	respondJSON(w, http.StatusNoContent, nil)
}
