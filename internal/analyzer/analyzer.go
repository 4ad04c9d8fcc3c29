// Package analyzer orchestrates the HPROF parse passes and the coroutine
// hierarchy reconstruction into a single analysis pipeline.
package analyzer

import (
	"context"

	"github.com/hprof-analysis/pkg/model"
)

// Analyzer is the interface for heap dump analyzers.
type Analyzer interface {
	// Analyze reads the dump file named in the request and analyzes it.
	Analyze(ctx context.Context, req *model.AnalysisRequest) (*model.HeapDumpReport, error)

	// AnalyzeBytes analyzes an in-memory dump. The returned report may hold
	// no references into data.
	AnalyzeBytes(ctx context.Context, req *model.AnalysisRequest, data []byte) (*model.HeapDumpReport, error)

	// Name returns the name of this analyzer.
	Name() string
}
