package amqp

import (
	"encoding/json"
	"time"

	"tripsplit/internal/core"
)

// NotificationMessage asks the notify worker to fan a notification out to a
// trip's members. ActorID is excluded from delivery so people are not told
// about their own actions.
type NotificationMessage struct {
	TripID    int64                 `json:"trip_id"`
	ActorID   int64                 `json:"actor_id"`
	Type      core.NotificationType `json:"type"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewNotificationMessage(tripID, actorID int64, t core.NotificationType, title, message string) *NotificationMessage {
	return &NotificationMessage{
		TripID:    tripID,
		ActorID:   actorID,
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportExportMessage asks the export worker to push a trip's report to the
// configured spreadsheet. The worker reads the trip fresh from storage.
type ReportExportMessage struct {
	TripID      int64     `json:"trip_id"`
	RequestedBy int64     `json:"requested_by"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReportExportMessage(tripID, requestedBy int64) *ReportExportMessage {
	return &ReportExportMessage{
		TripID:      tripID,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

func (m *ReportExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportExportMessageFromJSON(data []byte) (*ReportExportMessage, error) {
	var msg ReportExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
