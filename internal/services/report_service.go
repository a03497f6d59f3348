package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
)

var ErrExportUnavailable = errors.New("report export is not configured")

// ReportService aggregates a trip's spending and queues spreadsheet
// exports.
type ReportService struct {
	store     ReportStore
	publisher ExportPublisher
}

func NewReportService(store ReportStore, publisher ExportPublisher) *ReportService {
	return &ReportService{store: store, publisher: publisher}
}

// BuildTripReport assembles per-category and per-member totals.
func (s *ReportService) BuildTripReport(ctx context.Context, tripID int64) (*core.TripReport, error) {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}

	byCategory, err := s.store.GetTripCategoryTotals(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	byMember, err := s.store.GetTripMemberTotals(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("member totals: %w", err)
	}

	report := &core.TripReport{
		TripID:     tripID,
		ByCategory: byCategory,
		ByMember:   byMember,
	}
	for _, ca := range byCategory {
		report.Total.Cents += ca.Amount.Cents
	}
	return report, nil
}

// QueueExport asks the export worker to push the trip report to the
// configured spreadsheet.
func (s *ReportService) QueueExport(ctx context.Context, tripID, requestedBy int64) error {
	if s.publisher == nil {
		return ErrExportUnavailable
	}
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return fmt.Errorf("get trip: %w", err)
	}

	msg := amqp.NewReportExportMessage(tripID, requestedBy)
	if err := s.publisher.PublishReportExport(ctx, msg); err != nil {
		return fmt.Errorf("publish export message: %w", err)
	}

	slog.InfoContext(ctx, "Report export queued", "trip_id", tripID, "requested_by", requestedBy)
	return nil
}
