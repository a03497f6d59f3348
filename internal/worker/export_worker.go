package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/services"
	"tripsplit/internal/storage"
)

// ReportExporter pushes a finished report somewhere external, e.g. a
// Google spreadsheet.
type ReportExporter interface {
	AppendReport(ctx context.Context, trip *core.Trip, report *core.TripReport) error
}

// ExportWorker builds a trip report and hands it to the exporter.
type ExportWorker struct {
	store    services.ReportStore
	reports  *services.ReportService
	exporter ReportExporter
}

func NewExportWorker(store services.ReportStore, exporter ReportExporter) *ExportWorker {
	return &ExportWorker{
		store:    store,
		reports:  services.NewReportService(store, nil),
		exporter: exporter,
	}
}

func (w *ExportWorker) HandleExport(ctx context.Context, msg *amqp.ReportExportMessage) error {
	trip, err := w.store.GetTrip(ctx, msg.TripID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping export for missing trip", "trip_id", msg.TripID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get trip: %w", err)
	}

	report, err := w.reports.BuildTripReport(ctx, msg.TripID)
	if err != nil {
		return fmt.Errorf("build trip report: %w", err)
	}

	if err := w.exporter.AppendReport(ctx, trip, report); err != nil {
		return fmt.Errorf("append report: %w", err)
	}

	slog.InfoContext(ctx, "Trip report exported",
		"trip_id", msg.TripID,
		"requested_by", msg.RequestedBy,
		"total_cents", report.Total.Cents)
	return nil
}
