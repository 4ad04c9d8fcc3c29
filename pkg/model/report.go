// Package model defines the data structures shared between the analyzer, the
// formatters and the persistence layers.
package model

import "time"

// AnalysisRequest describes one heap dump analysis task.
type AnalysisRequest struct {
	TaskUUID  string
	DumpFile  string
	OutputDir string
}

// TagCount is one row of the record or sub-record frequency table.
type TagCount struct {
	Name  string `json:"name"`
	Code  uint8  `json:"code"`
	Count int    `json:"count"`
}

// CoroutineEntry is one coroutine in the flattened hierarchy. Entries are in
// depth-first pre-order; Depth encodes nesting, so an entry's parent is the
// nearest preceding entry with a smaller depth.
type CoroutineEntry struct {
	ObjectID string `json:"object_id"`
	Class    string `json:"class"`
	State    string `json:"state"`
	Depth    int    `json:"depth"`
}

// HeapDumpReport is the complete result of analyzing one dump: the record
// frequency summary and the coroutine hierarchy.
type HeapDumpReport struct {
	TaskUUID        string           `json:"task_uuid"`
	DumpFile        string           `json:"dump_file"`
	IdentifierSize  int              `json:"identifier_size"`
	TimestampMillis uint64           `json:"timestamp_millis"`
	NumRecords      int              `json:"num_records"`
	NumSubTags      int              `json:"num_sub_tags"`
	TagCounts       []TagCount       `json:"tag_counts"`
	SubTagCounts    []TagCount       `json:"sub_tag_counts"`
	TotalClasses    int              `json:"total_classes"`
	TotalInstances  int              `json:"total_instances"`
	Coroutines      []CoroutineEntry `json:"coroutines"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
	AnalysisTimeMs  int64            `json:"analysis_time_ms"`
}
