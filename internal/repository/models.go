package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/hprof-analysis/pkg/model"
)

// JSONField stores a JSON document in a database column.
type JSONField []byte

// Value implements driver.Valuer.
func (f JSONField) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return []byte(f), nil
}

// Scan implements sql.Scanner.
func (f *JSONField) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = nil
	case []byte:
		*f = append((*f)[:0], v...)
	case string:
		*f = JSONField(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}

// HeapDumpReportRow represents the heap_dump_reports table.
type HeapDumpReportRow struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TID             string    `gorm:"column:tid;type:varchar(64);uniqueIndex"`
	DumpFile        string    `gorm:"column:dump_file;type:varchar(512)"`
	IdentifierSize  int       `gorm:"column:identifier_size"`
	TimestampMillis uint64    `gorm:"column:timestamp_millis"`
	NumRecords      int       `gorm:"column:num_records"`
	NumSubTags      int       `gorm:"column:num_sub_tags"`
	TotalClasses    int       `gorm:"column:total_classes"`
	TotalInstances  int       `gorm:"column:total_instances"`
	TagCounts       JSONField `gorm:"column:tag_counts;type:json"`
	SubTagCounts    JSONField `gorm:"column:sub_tag_counts;type:json"`
	Coroutines      JSONField `gorm:"column:coroutines;type:json"`
	AnalyzedAt      time.Time `gorm:"column:analyzed_at"`
	AnalysisTimeMs  int64     `gorm:"column:analysis_time_ms"`
	CreateTime      time.Time `gorm:"column:create_time;autoCreateTime"`
}

// TableName returns the table name for HeapDumpReportRow.
func (HeapDumpReportRow) TableName() string {
	return "heap_dump_reports"
}

// ToModel converts HeapDumpReportRow to model.HeapDumpReport.
func (r *HeapDumpReportRow) ToModel() (*model.HeapDumpReport, error) {
	report := &model.HeapDumpReport{
		TaskUUID:        r.TID,
		DumpFile:        r.DumpFile,
		IdentifierSize:  r.IdentifierSize,
		TimestampMillis: r.TimestampMillis,
		NumRecords:      r.NumRecords,
		NumSubTags:      r.NumSubTags,
		TotalClasses:    r.TotalClasses,
		TotalInstances:  r.TotalInstances,
		AnalyzedAt:      r.AnalyzedAt,
		AnalysisTimeMs:  r.AnalysisTimeMs,
	}

	if r.TagCounts != nil {
		if err := json.Unmarshal(r.TagCounts, &report.TagCounts); err != nil {
			return nil, err
		}
	}
	if r.SubTagCounts != nil {
		if err := json.Unmarshal(r.SubTagCounts, &report.SubTagCounts); err != nil {
			return nil, err
		}
	}
	if r.Coroutines != nil {
		if err := json.Unmarshal(r.Coroutines, &report.Coroutines); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// rowFromModel converts a model.HeapDumpReport to its table row.
func rowFromModel(report *model.HeapDumpReport) (*HeapDumpReportRow, error) {
	tagCounts, err := json.Marshal(report.TagCounts)
	if err != nil {
		return nil, err
	}
	subTagCounts, err := json.Marshal(report.SubTagCounts)
	if err != nil {
		return nil, err
	}
	coroutines, err := json.Marshal(report.Coroutines)
	if err != nil {
		return nil, err
	}

	return &HeapDumpReportRow{
		TID:             report.TaskUUID,
		DumpFile:        report.DumpFile,
		IdentifierSize:  report.IdentifierSize,
		TimestampMillis: report.TimestampMillis,
		NumRecords:      report.NumRecords,
		NumSubTags:      report.NumSubTags,
		TotalClasses:    report.TotalClasses,
		TotalInstances:  report.TotalInstances,
		TagCounts:       JSONField(tagCounts),
		SubTagCounts:    JSONField(subTagCounts),
		Coroutines:      JSONField(coroutines),
		AnalyzedAt:      report.AnalyzedAt,
		AnalysisTimeMs:  report.AnalysisTimeMs,
	}, nil
}
