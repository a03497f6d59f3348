package http

import (
	"net/http"
	"time"

	"tripsplit/internal/core"
	applog "tripsplit/internal/log"
)

type transferResponse struct {
	FromUser int64   `json:"fromUser"`
	ToUser   int64   `json:"toUser"`
	Amount   float64 `json:"amount"`
}

type settlementResponse struct {
	ID        int64   `json:"id"`
	TripID    int64   `json:"tripId"`
	FromUser  int64   `json:"fromUser"`
	ToUser    int64   `json:"toUser"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	SettledAt string  `json:"settledAt,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

func toSettlementResponse(st *core.Settlement) settlementResponse {
	resp := settlementResponse{
		ID:       st.ID,
		TripID:   st.TripID,
		FromUser: st.FromUserID,
		ToUser:   st.ToUserID,
		Amount:   st.Amount.Units(),
		Status:   string(st.Status),
	}
	if !st.SettledAt.IsZero() {
		resp.SettledAt = st.SettledAt.UTC().Format(time.RFC3339)
	}
	if !st.CreatedAt.IsZero() {
		resp.CreatedAt = st.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleSuggestedSettlements returns the transfer list that squares up the
// trip as it stands. Nothing is persisted.
func (s *Server) handleSuggestedSettlements(w http.ResponseWriter, r *http.Request) {
	tripID, _, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	proposed, err := s.settlements.SuggestSettlements(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	transfers := make([]transferResponse, 0, len(proposed))
	for _, p := range proposed {
		transfers = append(transfers, transferResponse{
			FromUser: p.FromUserID,
			ToUser:   p.ToUserID,
			Amount:   p.Amount.Units(),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"settlements": transfers})
}

func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	tripID, userID, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	var req struct {
		FromUser int64  `json:"fromUser"`
		ToUser   int64  `json:"toUser"`
		Amount   amount `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Members may only record payments they themselves made
	if req.FromUser != userID {
		respondError(w, http.StatusForbidden, "can only record your own payments")
		return
	}

	settlement, err := s.settlements.RecordSettlement(r.Context(), tripID, req.FromUser, req.ToUser, req.Amount.Money)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	applog.FromContext(r.Context()).Info("Settlement recorded",
		applog.FieldTripID, tripID, applog.FieldUserID, userID)
	respondJSON(w, http.StatusCreated, toSettlementResponse(settlement))
}

func (s *Server) handleSettlementHistory(w http.ResponseWriter, r *http.Request) {
	tripID, _, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	settlements, err := s.settlements.History(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := make([]settlementResponse, 0, len(settlements))
	for i := range settlements {
		resp = append(resp, toSettlementResponse(&settlements[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}
