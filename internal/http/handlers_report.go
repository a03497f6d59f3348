package http

import (
	"net/http"
	"strconv"

	"tripsplit/internal/core"
	applog "tripsplit/internal/log"
)

type reportResponse struct {
	TripID     int64                    `json:"tripId"`
	Total      float64                  `json:"total"`
	ByCategory []categoryAmountResponse `json:"byCategory"`
	ByMember   []memberAmountResponse   `json:"byMember"`
}

type categoryAmountResponse struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

type memberAmountResponse struct {
	UserID int64   `json:"userId"`
	Name   string  `json:"name"`
	Paid   float64 `json:"paid"`
	Owed   float64 `json:"owed"`
}

func toReportResponse(report *core.TripReport) reportResponse {
	resp := reportResponse{
		TripID:     report.TripID,
		Total:      report.Total.Units(),
		ByCategory: make([]categoryAmountResponse, 0, len(report.ByCategory)),
		ByMember:   make([]memberAmountResponse, 0, len(report.ByMember)),
	}
	for _, ca := range report.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryAmountResponse{
			Category: string(ca.Category),
			Amount:   ca.Amount.Units(),
		})
	}
	for _, ma := range report.ByMember {
		resp.ByMember = append(resp.ByMember, memberAmountResponse{
			UserID: ma.UserID,
			Name:   ma.Name,
			Paid:   ma.Paid.Units(),
			Owed:   ma.Owed.Units(),
		})
	}
	return resp
}

func reportCacheKey(tripID int64) string {
	return "report:" + strconv.FormatInt(tripID, 10)
}

func (s *Server) handleTripReport(w http.ResponseWriter, r *http.Request) {
	tripID, _, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	key := reportCacheKey(tripID)
	if report, ok := s.reportCache.Get(key); ok {
		respondJSON(w, http.StatusOK, toReportResponse(report))
		return
	}

	report, err := s.reports.BuildTripReport(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	s.reportCache.Set(key, report)
	respondJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	tripID, userID, ok := s.requireTripAccess(w, r)
	if !ok {
		return
	}

	if err := s.reports.QueueExport(r.Context(), tripID, userID); err != nil {
		respondServiceError(w, err)
		return
	}

	applog.FromContext(r.Context()).Info("Report export requested",
		applog.FieldTripID, tripID, applog.FieldUserID, userID)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
