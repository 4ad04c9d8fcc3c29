package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hprof-analysis/internal/testutil"
	"github.com/hprof-analysis/pkg/model"
)

// coroutineDump builds a dump with two coroutines, the second a child of the
// first.
func coroutineDump() []byte {
	b := testutil.NewDumpBuilder(8)

	stateField := testutil.FieldSpec{NameID: 3, Type: testutil.TypeObject}
	handleField := testutil.FieldSpec{NameID: 4, Type: testutil.TypeObject}
	jobField := testutil.FieldSpec{NameID: 7, Type: testutil.TypeObject}

	rootPayload := append(testutil.ObjectValue(0xD0), testutil.ObjectValue(0)...)
	childPayload := append(testutil.ObjectValue(0xD0), testutil.ObjectValue(0x200)...)

	return b.
		StringRecord(1, "kotlinx/coroutines/AbstractCoroutine").
		StringRecord(2, "kotlinx/coroutines/StandaloneCoroutine").
		StringRecord(3, "_state$volatile").
		StringRecord(4, "_parentHandle$volatile").
		StringRecord(5, "kotlinx/coroutines/NodeList").
		StringRecord(6, "kotlinx/coroutines/ChildHandleNode").
		StringRecord(7, "job").
		LoadClassRecord(1, 0xA0, 0, 1).
		LoadClassRecord(2, 0xA1, 0, 2).
		LoadClassRecord(3, 0xB0, 0, 5).
		LoadClassRecord(4, 0xC0, 0, 6).
		HeapDump(
			b.ClassDump(0xA1, 0xA0, stateField, handleField),
			b.ClassDump(0xB0, 0),
			b.ClassDump(0xC0, 0, jobField),
			b.InstanceDump(0xD0, 0xB0, nil),
			b.InstanceDump(0x100, 0xA1, rootPayload),
			b.InstanceDump(0x101, 0xA1, childPayload),
			b.InstanceDump(0x200, 0xC0, testutil.ObjectValue(0x100)),
		).
		Bytes()
}

func TestCoroutineHeapAnalyzer_AnalyzeBytes(t *testing.T) {
	ana := NewCoroutineHeapAnalyzer(nil)
	req := &model.AnalysisRequest{TaskUUID: "task-1", DumpFile: "heap.hprof"}

	report, err := ana.AnalyzeBytes(context.Background(), req, coroutineDump())
	require.NoError(t, err)

	assert.Equal(t, "task-1", report.TaskUUID)
	assert.Equal(t, 8, report.IdentifierSize)
	assert.Equal(t, 12, report.NumRecords) // 7 strings + 4 load classes + 1 heap dump
	assert.Equal(t, 7, report.NumSubTags)
	assert.Equal(t, 3, report.TotalClasses)
	assert.Equal(t, 4, report.TotalInstances)

	// Tag rows are sorted by code.
	require.NotEmpty(t, report.TagCounts)
	assert.Equal(t, "STRING IN UTF8", report.TagCounts[0].Name)
	assert.Equal(t, 7, report.TagCounts[0].Count)

	require.Len(t, report.Coroutines, 2)
	assert.Equal(t, model.CoroutineEntry{
		ObjectID: "100", Class: "StandaloneCoroutine", State: "ACTIVE", Depth: 0,
	}, report.Coroutines[0])
	assert.Equal(t, model.CoroutineEntry{
		ObjectID: "101", Class: "StandaloneCoroutine", State: "ACTIVE", Depth: 1,
	}, report.Coroutines[1])
}

func TestCoroutineHeapAnalyzer_Analyze_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	dumpFile := filepath.Join(dir, "heap.hprof")
	require.NoError(t, os.WriteFile(dumpFile, coroutineDump(), 0644))

	ana := NewCoroutineHeapAnalyzer(DefaultOptions())
	report, err := ana.Analyze(context.Background(), &model.AnalysisRequest{
		TaskUUID: "task-2",
		DumpFile: dumpFile,
	})
	require.NoError(t, err)
	assert.Equal(t, dumpFile, report.DumpFile)
	assert.Len(t, report.Coroutines, 2)
}

func TestCoroutineHeapAnalyzer_Analyze_MissingFile(t *testing.T) {
	ana := NewCoroutineHeapAnalyzer(nil)
	_, err := ana.Analyze(context.Background(), &model.AnalysisRequest{
		DumpFile: filepath.Join(t.TempDir(), "nope.hprof"),
	})
	assert.Error(t, err)
}

func TestCoroutineHeapAnalyzer_AnalyzeBytes_WrongFormat(t *testing.T) {
	ana := NewCoroutineHeapAnalyzer(nil)
	_, err := ana.AnalyzeBytes(context.Background(), &model.AnalysisRequest{}, []byte("JAVA PROFILE 1.0.1\x00garbage"))
	assert.Error(t, err)
}

func TestCoroutineHeapAnalyzer_EmptyDump(t *testing.T) {
	ana := NewCoroutineHeapAnalyzer(nil)
	report, err := ana.AnalyzeBytes(context.Background(), &model.AnalysisRequest{}, testutil.NewDumpBuilder(8).Bytes())
	require.NoError(t, err)

	assert.Equal(t, 0, report.NumRecords)
	assert.Empty(t, report.TagCounts)
	assert.Empty(t, report.Coroutines)
}

func TestCoroutineHeapAnalyzer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ana := NewCoroutineHeapAnalyzer(nil)
	_, err := ana.AnalyzeBytes(ctx, &model.AnalysisRequest{}, testutil.NewDumpBuilder(8).Bytes())
	assert.ErrorIs(t, err, context.Canceled)
}
