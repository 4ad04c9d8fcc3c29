package coroutine

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hprof-analysis/internal/heap"
	"github.com/hprof-analysis/internal/parser/hprof"
)

// Well-known kotlinx.coroutines runtime class names, as they appear in
// LOAD CLASS records.
const (
	classNamePrefix        = "kotlinx/coroutines/"
	abstractCoroutineClass = "kotlinx/coroutines/AbstractCoroutine"
	inactiveNodeListClass  = "kotlinx/coroutines/InactiveNodeList"
	nodeListClass          = "kotlinx/coroutines/NodeList"
	emptyClass             = "kotlinx/coroutines/Empty"
	finishingClass         = "kotlinx/coroutines/JobSupport$Finishing"
	jobNodeClass           = "kotlinx/coroutines/JobNode"
	childHandleNodeClass   = "kotlinx/coroutines/ChildHandleNode"

	stateField        = "_state$volatile"
	parentHandleField = "_parentHandle$volatile"
	isActiveField     = "isActive"
	isCompletingField = "_isCompleting$volatile"
	jobField          = "job"
)

// ErrParentCycle is returned when following parent handles revisits a
// coroutine, which only happens on malformed input.
var ErrParentCycle = errors.New("cycle in coroutine parent chain")

// State is the public lifecycle state of a coroutine job, inferred from the
// class of its state field.
type State string

const (
	StateNew        State = "New"
	StateActive     State = "ACTIVE"
	StateCompleting State = "COMPLETING"
	StateCancelling State = "CANCELLING"
	StateCompleted  State = "COMPLETED"
)

// Analyzer discovers coroutine instances in a heap snapshot and derives their
// states and parent relationships.
type Analyzer struct {
	snap            *heap.Snapshot
	includeInternal bool
}

// NewAnalyzer creates an Analyzer over the given snapshot. Internal coroutine
// classes are included by default.
func NewAnalyzer(snap *heap.Snapshot) *Analyzer {
	return &Analyzer{snap: snap, includeInternal: true}
}

// SetIncludeInternal controls whether coroutine classes whose name contains
// "internal" take part in the analysis.
func (a *Analyzer) SetIncludeInternal(include bool) {
	a.includeInternal = include
}

// Classes returns the classes whose direct superclass is
// kotlinx/coroutines/AbstractCoroutine. With includeInternal false, classes
// whose name contains "internal" are dropped. The result is nil when no LOAD
// CLASS record names kotlinx/coroutines/AbstractCoroutine.
func (a *Analyzer) Classes(includeInternal bool) (map[hprof.ClassObjectID]struct{}, error) {
	var abstractCoroutineID hprof.ClassObjectID
	for id, lc := range a.snap.LoadClasses {
		name, err := a.snap.StringView(lc.NameStringID)
		if err != nil {
			return nil, err
		}
		if name == abstractCoroutineClass {
			abstractCoroutineID = id
			break
		}
	}
	if hprof.IsNull(abstractCoroutineID) {
		return nil, nil
	}

	classes := make(map[hprof.ClassObjectID]struct{})
	for id, cd := range a.snap.ClassDumps {
		if cd.SuperclassObjectID != abstractCoroutineID {
			continue
		}
		if !includeInternal {
			name, err := a.snap.ClassName(id)
			if err != nil {
				return nil, err
			}
			if strings.Contains(name, "internal") {
				continue
			}
		}
		classes[id] = struct{}{}
	}
	return classes, nil
}

// Instances returns every instance of a coroutine class, sorted by object ID
// for deterministic traversal.
func (a *Analyzer) Instances() ([]hprof.ObjectID, error) {
	classes, err := a.Classes(a.includeInternal)
	if err != nil {
		return nil, err
	}
	var instances []hprof.ObjectID
	for id, instance := range a.snap.Instances {
		if _, ok := classes[instance.ClassObjectID]; ok {
			instances = append(instances, id)
		}
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i] < instances[j] })
	return instances, nil
}

// State derives a coroutine's public state from the class of its state field.
//
//	state class            public state
//	------------           ------------
//	InactiveNodeList       New
//	NodeList               ACTIVE
//	Empty (isActive)       ACTIVE / New
//	Finishing              COMPLETING / CANCELLING
//	JobNode subclass       ACTIVE
//	anything else          COMPLETED
func (a *Analyzer) State(id hprof.ObjectID) (State, error) {
	stateID, err := a.snap.FieldValue(id, stateField)
	if err != nil {
		return "", err
	}
	stateInstance, ok := a.snap.Instances[stateID]
	if !ok {
		return "", fmt.Errorf("%w: state object id 0x%x", heap.ErrUnknownObject, stateID)
	}
	stateClassName, err := a.snap.ClassName(stateInstance.ClassObjectID)
	if err != nil {
		return "", err
	}

	switch stateClassName {
	case inactiveNodeListClass:
		return StateNew, nil

	case nodeListClass:
		return StateActive, nil

	case emptyClass:
		isActive, err := a.snap.FieldValue(stateID, isActiveField)
		if err != nil {
			return "", err
		}
		if uint8(isActive) != 0 {
			return StateActive, nil
		}
		return StateNew, nil

	case finishingClass:
		isCompleting, err := a.snap.FieldValue(stateID, isCompletingField)
		if err != nil {
			return "", err
		}
		if int32(isCompleting) != 0 {
			return StateCompleting, nil
		}
		return StateCancelling, nil
	}

	isJobNode := false
	err = a.snap.ForEachSuperclass(stateInstance.ClassObjectID, func(cd hprof.ClassDump) error {
		name, err := a.snap.ClassName(cd.ClassObjectID)
		if err != nil {
			return err
		}
		if name == jobNodeClass {
			isJobNode = true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if isJobNode {
		return StateActive, nil
	}
	return StateCompleted, nil
}

// Parent resolves a coroutine's parent through its parent handle. A coroutine
// has a tracked parent only when the handle is a ChildHandleNode whose job
// field resolves to an instance.
func (a *Analyzer) Parent(id hprof.ObjectID) (hprof.ObjectID, bool, error) {
	handleID, err := a.snap.FieldValue(id, parentHandleField)
	if err != nil {
		return 0, false, err
	}
	if !a.snap.IsObjectID(handleID) {
		return 0, false, nil
	}

	handleInstance := a.snap.Instances[handleID]
	handleClassName, err := a.snap.ClassName(handleInstance.ClassObjectID)
	if err != nil {
		return 0, false, err
	}
	if handleClassName != childHandleNodeClass {
		return 0, false, nil
	}

	jobID, err := a.snap.FieldValue(handleID, jobField)
	if err != nil {
		return 0, false, err
	}
	if !a.snap.IsObjectID(jobID) {
		return 0, false, nil
	}
	return jobID, true, nil
}

// BuildHierarchy assembles the coroutines into a forest modelling the
// parent/child relation. For each coroutine the parent chain is walked upward
// until a root or an already-placed coroutine, then nodes are created
// top-down so every node exists after its parent. Cycles in the parent chain
// are detected and rejected.
func (a *Analyzer) BuildHierarchy(coroutines []hprof.ObjectID) (*Forest[hprof.ObjectID], error) {
	forest := &Forest[hprof.ObjectID]{}
	idToNode := make(map[hprof.ObjectID]NodeHandle, len(coroutines))

	for _, id := range coroutines {
		if _, ok := idToNode[id]; ok {
			continue
		}

		// Walk upward, collecting the path from id to the first coroutine
		// that is either a root or already placed.
		var path []hprof.ObjectID
		onPath := map[hprof.ObjectID]struct{}{id: {}}
		currID := id
		for {
			parentID, hasParent, err := a.Parent(currID)
			if err != nil {
				return nil, err
			}
			if !hasParent {
				node := forest.NewRoot(currID)
				idToNode[currID] = node
				break
			}
			path = append(path, currID)
			currID = parentID
			if _, ok := idToNode[currID]; ok {
				break
			}
			if _, ok := onPath[currID]; ok {
				return nil, fmt.Errorf("%w: at object id 0x%x", ErrParentCycle, currID)
			}
			onPath[currID] = struct{}{}
		}

		// Create the collected path top-down under the resolved ancestor.
		prevNode := idToNode[currID]
		for i := len(path) - 1; i >= 0; i-- {
			node := forest.NewNode(path[i], prevNode)
			idToNode[path[i]] = node
			prevNode = node
		}
	}
	return forest, nil
}

// FormatCoroutine renders one coroutine as
// "<class-name-without-kotlinx/coroutines/-prefix>@<hex-id>, state: <STATE>".
func (a *Analyzer) FormatCoroutine(id hprof.ObjectID) (string, error) {
	instance, ok := a.snap.Instances[id]
	if !ok {
		return "", fmt.Errorf("%w: object id 0x%x", heap.ErrUnknownObject, id)
	}
	className, err := a.snap.ClassName(instance.ClassObjectID)
	if err != nil {
		return "", err
	}
	state, err := a.State(id)
	if err != nil {
		return "", err
	}
	name := strings.TrimPrefix(className, classNamePrefix)
	return fmt.Sprintf("%s@%s, state: %s", name, heap.FormatID(id), state), nil
}

// HierarchyEntry is one coroutine in the flattened hierarchy. Depth encodes
// nesting below the entry's root; entries are in depth-first pre-order, so a
// node always follows its parent.
type HierarchyEntry struct {
	ObjectID  hprof.ObjectID
	ClassName string
	State     State
	Depth     int
}

// Hierarchy discovers all coroutine instances, assembles the parent/child
// forest and flattens it depth-first.
func (a *Analyzer) Hierarchy() ([]HierarchyEntry, error) {
	instances, err := a.Instances()
	if err != nil {
		return nil, err
	}
	forest, err := a.BuildHierarchy(instances)
	if err != nil {
		return nil, err
	}

	entries := make([]HierarchyEntry, 0, forest.Len())
	var walk func(node NodeHandle, depth int) error
	walk = func(node NodeHandle, depth int) error {
		id := forest.Value(node)
		instance, ok := a.snap.Instances[id]
		if !ok {
			return fmt.Errorf("%w: object id 0x%x", heap.ErrUnknownObject, id)
		}
		className, err := a.snap.ClassName(instance.ClassObjectID)
		if err != nil {
			return err
		}
		state, err := a.State(id)
		if err != nil {
			return err
		}
		entries = append(entries, HierarchyEntry{
			ObjectID:  id,
			ClassName: strings.TrimPrefix(className, classNamePrefix),
			State:     state,
			Depth:     depth,
		})
		for _, child := range forest.Children(node) {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	var walkErr error
	forest.ForEachRoot(func(root NodeHandle) {
		if walkErr == nil {
			walkErr = walk(root, 0)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return entries, nil
}

// WriteHierarchy writes the flattened hierarchy, indenting children two
// spaces per level under their parent.
func WriteHierarchy(w io.Writer, entries []HierarchyEntry) {
	const indentStep = 2
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s@%s, state: %s\n",
			strings.Repeat(" ", e.Depth*indentStep), e.ClassName, heap.FormatID(e.ObjectID), e.State)
	}
}
