package http

import (
	"net/http"
	"time"

	"tripsplit/internal/core"
)

type notificationResponse struct {
	ID        int64  `json:"id"`
	TripID    int64  `json:"tripId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationResponse(n *core.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		TripID:    n.TripID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.notifications.ListUserNotifications(r.Context(), requestUserID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		resp = append(resp, toNotificationResponse(&notifications[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "notificationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.notifications.MarkNotificationRead(r.Context(), id, requestUserID(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
