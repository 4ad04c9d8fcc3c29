package coroutine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hprof-analysis/internal/heap"
	"github.com/hprof-analysis/internal/parser/hprof"
	"github.com/hprof-analysis/internal/testutil"
)

// Well-known IDs used by the synthetic coroutine dumps.
const (
	abstractCoroutineClassID = 0xA0
	standaloneClassID        = 0xA1
	internalScopeClassID     = 0xA2
	nodeListClassID          = 0xB0
	emptyClassID             = 0xB1
	finishingClassID         = 0xB2
	jobNodeClassID           = 0xB3
	childContinuationClassID = 0xB4
	inactiveNodeListClassID  = 0xB5
	handleNodeClassID        = 0xC0
	objectClassID            = 0xE0

	nodeListStateID     = 0xD0
	emptyActiveStateID  = 0xD1
	emptyNewStateID     = 0xD2
	completingStateID   = 0xD3
	cancellingStateID   = 0xD4
	jobNodeStateID      = 0xD5
	completedStateID    = 0xD6
	inactiveListStateID = 0xD7
)

// coroutineWorld builds a dump pre-loaded with the kotlinx.coroutines runtime
// classes and one instance of every state flavor. Tests append coroutine and
// handle instances before finishing the heap dump.
func coroutineWorld(b *testutil.DumpBuilder, extra ...[]byte) []byte {
	stateField := testutil.FieldSpec{NameID: 3, Type: testutil.TypeObject}
	handleField := testutil.FieldSpec{NameID: 4, Type: testutil.TypeObject}

	subRecords := [][]byte{
		b.ClassDump(standaloneClassID, abstractCoroutineClassID, stateField, handleField),
		b.ClassDump(internalScopeClassID, abstractCoroutineClassID, stateField, handleField),
		b.ClassDump(nodeListClassID, 0),
		b.ClassDump(emptyClassID, 0, testutil.FieldSpec{NameID: 7, Type: testutil.TypeBoolean}),
		b.ClassDump(finishingClassID, 0, testutil.FieldSpec{NameID: 9, Type: testutil.TypeInt}),
		b.ClassDump(jobNodeClassID, 0),
		b.ClassDump(childContinuationClassID, jobNodeClassID),
		b.ClassDump(inactiveNodeListClassID, 0),
		b.ClassDump(handleNodeClassID, jobNodeClassID, testutil.FieldSpec{NameID: 12, Type: testutil.TypeObject}),
		b.ClassDump(objectClassID, 0),

		b.InstanceDump(nodeListStateID, nodeListClassID, nil),
		b.InstanceDump(emptyActiveStateID, emptyClassID, testutil.BoolValue(true)),
		b.InstanceDump(emptyNewStateID, emptyClassID, testutil.BoolValue(false)),
		b.InstanceDump(completingStateID, finishingClassID, testutil.IntValue(1)),
		b.InstanceDump(cancellingStateID, finishingClassID, testutil.IntValue(0)),
		b.InstanceDump(jobNodeStateID, childContinuationClassID, nil),
		b.InstanceDump(completedStateID, objectClassID, nil),
		b.InstanceDump(inactiveListStateID, inactiveNodeListClassID, nil),
	}
	subRecords = append(subRecords, extra...)

	return b.
		StringRecord(1, "kotlinx/coroutines/AbstractCoroutine").
		StringRecord(2, "kotlinx/coroutines/StandaloneCoroutine").
		StringRecord(3, "_state$volatile").
		StringRecord(4, "_parentHandle$volatile").
		StringRecord(5, "kotlinx/coroutines/NodeList").
		StringRecord(6, "kotlinx/coroutines/Empty").
		StringRecord(7, "isActive").
		StringRecord(8, "kotlinx/coroutines/JobSupport$Finishing").
		StringRecord(9, "_isCompleting$volatile").
		StringRecord(10, "kotlinx/coroutines/JobNode").
		StringRecord(11, "kotlinx/coroutines/ChildHandleNode").
		StringRecord(12, "job").
		StringRecord(13, "kotlinx/coroutines/InactiveNodeList").
		StringRecord(14, "kotlinx/coroutines/ChildContinuation").
		StringRecord(15, "java/lang/Object").
		StringRecord(16, "kotlinx/coroutines/internal/ScopeCoroutine").
		LoadClassRecord(1, abstractCoroutineClassID, 0, 1).
		LoadClassRecord(2, standaloneClassID, 0, 2).
		LoadClassRecord(3, nodeListClassID, 0, 5).
		LoadClassRecord(4, emptyClassID, 0, 6).
		LoadClassRecord(5, finishingClassID, 0, 8).
		LoadClassRecord(6, jobNodeClassID, 0, 10).
		LoadClassRecord(7, handleNodeClassID, 0, 11).
		LoadClassRecord(8, inactiveNodeListClassID, 0, 13).
		LoadClassRecord(9, childContinuationClassID, 0, 14).
		LoadClassRecord(10, objectClassID, 0, 15).
		LoadClassRecord(11, internalScopeClassID, 0, 16).
		HeapDump(subRecords...).
		Bytes()
}

// coroutineInstance encodes a coroutine payload: state ref then parent
// handle ref.
func coroutineInstance(b *testutil.DumpBuilder, objectID, stateID, handleID uint64) []byte {
	payload := append(testutil.ObjectValue(stateID), testutil.ObjectValue(handleID)...)
	return b.InstanceDump(objectID, standaloneClassID, payload)
}

// handleInstance encodes a ChildHandleNode pointing at job.
func handleInstance(b *testutil.DumpBuilder, objectID, jobID uint64) []byte {
	return b.InstanceDump(objectID, handleNodeClassID, testutil.ObjectValue(jobID))
}

func newAnalyzer(t *testing.T, dump []byte) *Analyzer {
	t.Helper()
	r := hprof.NewReader(dump)
	header, err := hprof.ParseDumpHeader(&r)
	require.NoError(t, err)
	snap, err := heap.Build(r, int(header.IdentifierSize))
	require.NoError(t, err)
	return NewAnalyzer(snap)
}

func TestAnalyzer_NoCoroutineRuntime(t *testing.T) {
	dump := testutil.NewDumpBuilder(8).
		StringRecord(1, "java/lang/Object").
		LoadClassRecord(1, 0x10, 0, 1).
		Bytes()
	a := newAnalyzer(t, dump)

	classes, err := a.Classes(true)
	require.NoError(t, err)
	assert.Empty(t, classes)

	entries, err := a.Hierarchy()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzer_Classes(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	a := newAnalyzer(t, coroutineWorld(b))

	all, err := a.Classes(true)
	require.NoError(t, err)
	assert.Equal(t, map[hprof.ClassObjectID]struct{}{
		standaloneClassID:    {},
		internalScopeClassID: {},
	}, all)

	public, err := a.Classes(false)
	require.NoError(t, err)
	assert.Equal(t, map[hprof.ClassObjectID]struct{}{standaloneClassID: {}}, public)
}

func TestAnalyzer_State(t *testing.T) {
	tests := []struct {
		name    string
		stateID uint64
		want    State
	}{
		{"NodeList is active", nodeListStateID, StateActive},
		{"active Empty", emptyActiveStateID, StateActive},
		{"inactive Empty is new", emptyNewStateID, StateNew},
		{"InactiveNodeList is new", inactiveListStateID, StateNew},
		{"completing Finishing", completingStateID, StateCompleting},
		{"cancelling Finishing", cancellingStateID, StateCancelling},
		{"JobNode subclass is active", jobNodeStateID, StateActive},
		{"anything else is completed", completedStateID, StateCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewDumpBuilder(8)
			dump := coroutineWorld(b, coroutineInstance(b, 0x100, tt.stateID, 0))
			a := newAnalyzer(t, dump)

			state, err := a.State(0x100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestAnalyzer_Parent(t *testing.T) {
	t.Run("null handle means no parent", func(t *testing.T) {
		b := testutil.NewDumpBuilder(8)
		dump := coroutineWorld(b, coroutineInstance(b, 0x100, nodeListStateID, 0))
		a := newAnalyzer(t, dump)

		_, ok, err := a.Parent(0x100)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("handle of another class means no parent", func(t *testing.T) {
		b := testutil.NewDumpBuilder(8)
		dump := coroutineWorld(b,
			coroutineInstance(b, 0x100, nodeListStateID, completedStateID))
		a := newAnalyzer(t, dump)

		_, ok, err := a.Parent(0x100)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("child handle node resolves to job", func(t *testing.T) {
		b := testutil.NewDumpBuilder(8)
		dump := coroutineWorld(b,
			coroutineInstance(b, 0x100, nodeListStateID, 0),
			coroutineInstance(b, 0x101, nodeListStateID, 0x200),
			handleInstance(b, 0x200, 0x100),
		)
		a := newAnalyzer(t, dump)

		parent, ok, err := a.Parent(0x101)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, hprof.ObjectID(0x100), parent)
	})
}

func TestAnalyzer_SingleActiveCoroutine(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	dump := coroutineWorld(b, coroutineInstance(b, 0x100, nodeListStateID, 0))
	a := newAnalyzer(t, dump)

	entries, err := a.Hierarchy()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, hprof.ObjectID(0x100), entries[0].ObjectID)
	assert.Equal(t, "StandaloneCoroutine", entries[0].ClassName)
	assert.Equal(t, StateActive, entries[0].State)
	assert.Equal(t, 0, entries[0].Depth)

	var buf bytes.Buffer
	WriteHierarchy(&buf, entries)
	assert.Equal(t, "StandaloneCoroutine@100, state: ACTIVE\n", buf.String())
}

func TestAnalyzer_ParentChildHierarchy(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	dump := coroutineWorld(b,
		coroutineInstance(b, 0x100, nodeListStateID, 0),
		coroutineInstance(b, 0x101, nodeListStateID, 0x200),
		handleInstance(b, 0x200, 0x100),
	)
	a := newAnalyzer(t, dump)

	entries, err := a.Hierarchy()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, hprof.ObjectID(0x100), entries[0].ObjectID)
	assert.Equal(t, 0, entries[0].Depth)
	assert.Equal(t, hprof.ObjectID(0x101), entries[1].ObjectID)
	assert.Equal(t, 1, entries[1].Depth)

	var buf bytes.Buffer
	WriteHierarchy(&buf, entries)
	assert.Equal(t,
		"StandaloneCoroutine@100, state: ACTIVE\n"+
			"  StandaloneCoroutine@101, state: ACTIVE\n",
		buf.String())
}

func TestAnalyzer_DeepHierarchyNodesFollowParents(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	dump := coroutineWorld(b,
		coroutineInstance(b, 0x100, nodeListStateID, 0),
		coroutineInstance(b, 0x101, nodeListStateID, 0x200),
		coroutineInstance(b, 0x102, nodeListStateID, 0x201),
		handleInstance(b, 0x200, 0x100),
		handleInstance(b, 0x201, 0x101),
	)
	a := newAnalyzer(t, dump)

	entries, err := a.Hierarchy()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{entries[0].Depth, entries[1].Depth, entries[2].Depth})

	// Every coroutine's parent is itself a coroutine, or it has none.
	classes, err := a.Classes(true)
	require.NoError(t, err)
	for _, e := range entries {
		parent, ok, err := a.Parent(e.ObjectID)
		require.NoError(t, err)
		if ok {
			instance := a.snap.Instances[parent]
			_, isCoroutine := classes[instance.ClassObjectID]
			assert.True(t, isCoroutine)
		}
	}
}

func TestAnalyzer_ParentCycleDetected(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	dump := coroutineWorld(b,
		coroutineInstance(b, 0x100, nodeListStateID, 0x200),
		coroutineInstance(b, 0x101, nodeListStateID, 0x201),
		handleInstance(b, 0x200, 0x101),
		handleInstance(b, 0x201, 0x100),
	)
	a := newAnalyzer(t, dump)

	_, err := a.Hierarchy()
	assert.ErrorIs(t, err, ErrParentCycle)
}

func TestAnalyzer_FormatCoroutine(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	dump := coroutineWorld(b, coroutineInstance(b, 0x1AB, cancellingStateID, 0))
	a := newAnalyzer(t, dump)

	line, err := a.FormatCoroutine(0x1AB)
	require.NoError(t, err)
	assert.Equal(t, "StandaloneCoroutine@1ab, state: CANCELLING", line)
}

func TestAnalyzer_ExcludeInternalClasses(t *testing.T) {
	b := testutil.NewDumpBuilder(8)
	payload := append(testutil.ObjectValue(nodeListStateID), testutil.ObjectValue(0)...)
	dump := coroutineWorld(b,
		coroutineInstance(b, 0x100, nodeListStateID, 0),
		b.InstanceDump(0x101, internalScopeClassID, payload),
	)
	a := newAnalyzer(t, dump)
	a.SetIncludeInternal(false)

	instances, err := a.Instances()
	require.NoError(t, err)
	assert.Equal(t, []hprof.ObjectID{0x100}, instances)
}
