package analyzer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/hprof-analysis/internal/coroutine"
	"github.com/hprof-analysis/internal/heap"
	"github.com/hprof-analysis/internal/parser/hprof"
	"github.com/hprof-analysis/pkg/model"
	"github.com/hprof-analysis/pkg/utils"
)

const tracerName = "github.com/hprof-analysis/internal/analyzer"

// Options configures the coroutine heap analyzer.
type Options struct {
	// Logger receives progress and timing output. Nil suppresses it.
	Logger utils.Logger
	// IncludeInternal keeps coroutine classes whose name contains "internal".
	IncludeInternal bool
}

// DefaultOptions returns the default analyzer options.
func DefaultOptions() *Options {
	return &Options{IncludeInternal: true}
}

// CoroutineHeapAnalyzer parses an HPROF heap dump and reconstructs the
// hierarchy of Kotlin coroutines found in it.
type CoroutineHeapAnalyzer struct {
	opts *Options
}

// NewCoroutineHeapAnalyzer creates a new analyzer.
func NewCoroutineHeapAnalyzer(opts *Options) *CoroutineHeapAnalyzer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &CoroutineHeapAnalyzer{opts: opts}
}

// Name returns the name of this analyzer.
func (a *CoroutineHeapAnalyzer) Name() string {
	return "coroutine-heap"
}

// Analyze reads the dump file into memory and analyzes it. The whole file is
// read at once: the snapshot borrows string, field and array views from the
// buffer, so the buffer must stay alive for the analysis.
func (a *CoroutineHeapAnalyzer) Analyze(ctx context.Context, req *model.AnalysisRequest) (*model.HeapDumpReport, error) {
	data, err := os.ReadFile(req.DumpFile)
	if err != nil {
		return nil, fmt.Errorf("read dump file: %w", err)
	}
	return a.AnalyzeBytes(ctx, req, data)
}

// AnalyzeBytes analyzes an in-memory dump.
func (a *CoroutineHeapAnalyzer) AnalyzeBytes(ctx context.Context, req *model.AnalysisRequest, data []byte) (*model.HeapDumpReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "hprof.analyze")
	defer span.End()

	timer := utils.NewTimer("HPROF Analysis", utils.WithLogger(a.opts.Logger), utils.WithEnabled(a.opts.Logger != nil))
	start := time.Now()

	r := hprof.NewReader(data)
	header, err := hprof.ParseDumpHeader(&r)
	if err != nil {
		return nil, err
	}
	idSize := int(header.IdentifierSize)
	a.debugf("identifier size %d, timestamp millis %d", idSize, header.Millis)

	// Every pass below gets its own copy of the body reader positioned right
	// after the dump header.
	body := r

	var summary hprof.DumpSummary
	if _, err := timer.TimeFuncWithError("Summarize records", func() error {
		summary, err = hprof.Summarize(body, idSize)
		return err
	}); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap *heap.Snapshot
	if _, err := timer.TimeFuncWithError("Materialize heap", func() error {
		snap, err = heap.Build(body, idSize)
		return err
	}); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []coroutine.HierarchyEntry
	if _, err := timer.TimeFuncWithError("Reconstruct coroutines", func() error {
		coro := coroutine.NewAnalyzer(snap)
		coro.SetIncludeInternal(a.opts.IncludeInternal)
		entries, err = coro.Hierarchy()
		return err
	}); err != nil {
		return nil, err
	}

	timer.PrintSummary()

	report := &model.HeapDumpReport{
		TaskUUID:        req.TaskUUID,
		DumpFile:        req.DumpFile,
		IdentifierSize:  idSize,
		TimestampMillis: header.Millis,
		NumRecords:      summary.NumRecords,
		NumSubTags:      summary.NumSubTags,
		TagCounts:       tagRows(summary.TagCounts),
		SubTagCounts:    subTagRows(summary.SubTagCounts),
		TotalClasses:    len(snap.ClassDumps),
		TotalInstances:  len(snap.Instances),
		Coroutines:      coroutineRows(entries),
		AnalyzedAt:      start,
		AnalysisTimeMs:  time.Since(start).Milliseconds(),
	}
	return report, nil
}

func (a *CoroutineHeapAnalyzer) debugf(format string, args ...interface{}) {
	if a.opts.Logger != nil {
		a.opts.Logger.Debug(format, args...)
	}
}

func tagRows(counts map[hprof.Tag]int) []model.TagCount {
	rows := make([]model.TagCount, 0, len(counts))
	for tag, count := range counts {
		rows = append(rows, model.TagCount{Name: tag.Name(), Code: uint8(tag), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

func subTagRows(counts map[hprof.SubTag]int) []model.TagCount {
	rows := make([]model.TagCount, 0, len(counts))
	for subTag, count := range counts {
		rows = append(rows, model.TagCount{Name: subTag.Name(), Code: uint8(subTag), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

func coroutineRows(entries []coroutine.HierarchyEntry) []model.CoroutineEntry {
	rows := make([]model.CoroutineEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, model.CoroutineEntry{
			ObjectID: heap.FormatID(e.ObjectID),
			Class:    e.ClassName,
			State:    string(e.State),
			Depth:    e.Depth,
		})
	}
	return rows
}
