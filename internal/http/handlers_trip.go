package http

import (
	"net/http"
	"time"

	"tripsplit/internal/core"
	applog "tripsplit/internal/log"
)

type tripRequest struct {
	Name        string  `json:"name"`
	Destination string  `json:"destination"`
	Description string  `json:"description"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Budget      *amount `json:"budget"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
}

type tripResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Destination string  `json:"destination"`
	Description string  `json:"description"`
	OwnerID     int64   `json:"ownerId"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Budget      float64 `json:"budget"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	Members     []int64 `json:"members"`
	CreatedAt   string  `json:"createdAt"`
}

func toTripResponse(t *core.Trip) tripResponse {
	resp := tripResponse{
		ID:          t.ID,
		Name:        t.Name,
		Destination: t.Destination,
		Description: t.Description,
		OwnerID:     t.OwnerID,
		Budget:      t.Budget.Units(),
		Currency:    t.Currency,
		Status:      string(t.Status),
		Members:     t.Roster(),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !t.StartDate.IsZero() {
		resp.StartDate = t.StartDate.UTC().Format("2006-01-02")
	}
	if !t.EndDate.IsZero() {
		resp.EndDate = t.EndDate.UTC().Format("2006-01-02")
	}
	return resp
}

func (req tripRequest) toTrip() (core.Trip, error) {
	t := core.Trip{
		Name:        sanitizeInput(req.Name),
		Destination: sanitizeInput(req.Destination),
		Description: sanitizeInput(req.Description),
		Currency:    sanitizeInput(req.Currency),
		Status:      core.TripStatus(req.Status),
	}
	if req.Budget != nil {
		t.Budget = req.Budget.Money
	}
	if req.StartDate != "" {
		d, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return t, err
		}
		t.StartDate = d
	}
	if req.EndDate != "" {
		d, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return t, err
		}
		t.EndDate = d
	}
	return t, nil
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trip, err := req.toTrip()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	trip.OwnerID = requestUserID(r)

	created, err := s.trips.CreateTrip(r.Context(), trip)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	applog.FromContext(r.Context()).Info("Trip created",
		applog.FieldTripID, created.ID, applog.FieldUserID, trip.OwnerID)
	respondJSON(w, http.StatusCreated, toTripResponse(created))
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips.ListTrips(r.Context(), requestUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := make([]tripResponse, 0, len(trips))
	for i := range trips {
		resp = append(resp, toTripResponse(&trips[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, _, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	trip, err := s.trips.GetTrip(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTripResponse(trip))
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req tripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trip, err := req.toTrip()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	trip.ID = tripID

	updated, err := s.trips.UpdateTrip(r.Context(), trip, requestUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.reportCache.Delete(reportCacheKey(tripID))
	respondJSON(w, http.StatusOK, toTripResponse(updated))
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.trips.DeleteTrip(r.Context(), tripID, requestUserID(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	s.reportCache.Delete(reportCacheKey(tripID))
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAddTripMember(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.trips.AddMember(r.Context(), tripID, req.UserID, requestUserID(r)); err != nil {
		respondServiceError(w, err)
		return
	}

	trip, err := s.trips.GetTrip(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTripResponse(trip))
}
