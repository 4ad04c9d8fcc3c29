// Package formatter renders analysis reports as human-readable text.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/hprof-analysis/pkg/model"
)

// HeapFormatter renders a HeapDumpReport: the record frequency summary
// followed by the coroutine hierarchy.
type HeapFormatter struct{}

// NewHeapFormatter creates a new HeapFormatter.
func NewHeapFormatter() *HeapFormatter {
	return &HeapFormatter{}
}

// Write renders the full report to w.
func (f *HeapFormatter) Write(w io.Writer, report *model.HeapDumpReport) {
	fmt.Fprintf(w, "\nHeap Dump Summary:\n\n")
	fmt.Fprintf(w, "Size of identifiers: %d\n", report.IdentifierSize)
	fmt.Fprintf(w, "Milliseconds since 0:00 GMT, 1/1/70: %d\n\n", report.TimestampMillis)
	fmt.Fprintf(w, "Total number of records in dump: %d\n", report.NumRecords)
	fmt.Fprintf(w, "Number of unique tags in dump:   %d\n\n", len(report.TagCounts))

	writeCountTable(w, "tag", report.TagCounts)
	fmt.Fprintln(w)
	writeCountTable(w, "sub-tag", report.SubTagCounts)

	fmt.Fprintf(w, "\nHierarchy:\n\n")
	f.WriteHierarchy(w, report.Coroutines)
}

// WriteHierarchy renders the coroutine hierarchy, indenting children two
// spaces per nesting level.
func (f *HeapFormatter) WriteHierarchy(w io.Writer, coroutines []model.CoroutineEntry) {
	const indentStep = 2
	for _, c := range coroutines {
		fmt.Fprintf(w, "%s%s@%s, state: %s\n",
			strings.Repeat(" ", c.Depth*indentStep), c.Class, c.ObjectID, c.State)
	}
}

// writeCountTable renders one name/code/count table with columns sized to
// their widest entry.
func writeCountTable(w io.Writer, label string, rows []model.TagCount) {
	nameWidth := len(label)
	countWidth := len("count")
	for _, row := range rows {
		if len(row.Name) > nameWidth {
			nameWidth = len(row.Name)
		}
		if n := len(fmt.Sprintf("%d", row.Count)); n > countWidth {
			countWidth = n
		}
	}

	// The name column carries a " (0xXX)" suffix per row.
	fmt.Fprintf(w, "%-*s | %-*s\n", nameWidth+7, label, countWidth+1, "count")
	fmt.Fprintf(w, "%s+%s\n", strings.Repeat("-", nameWidth+8), strings.Repeat("-", countWidth+1))
	for _, row := range rows {
		fmt.Fprintf(w, "%-*s (0x%02X) | %-*d\n", nameWidth, row.Name, row.Code, countWidth, row.Count)
	}
}
