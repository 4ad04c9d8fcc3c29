// Package repository provides database persistence for analysis reports.
package repository

import (
	"context"

	"github.com/hprof-analysis/pkg/model"
)

// ReportRepository defines the interface for report persistence.
type ReportRepository interface {
	// Migrate creates or updates the report tables.
	Migrate(ctx context.Context) error

	// SaveReport stores a report, replacing any previous report with the
	// same task UUID.
	SaveReport(ctx context.Context, report *model.HeapDumpReport) error

	// GetReportByTaskUUID retrieves the report for a task.
	GetReportByTaskUUID(ctx context.Context, taskUUID string) (*model.HeapDumpReport, error)

	// Close closes the underlying database connection.
	Close() error
}
