// Package coroutine reconstructs the parent/child hierarchy of Kotlin
// structured coroutines from a heap snapshot.
package coroutine

// NodeHandle is an opaque index into a Forest's node arena.
type NodeHandle int32

// NoNode is the null handle sentinel; roots have it as their parent.
const NoNode NodeHandle = -1

type node[T any] struct {
	value    T
	parent   NodeHandle
	children []NodeHandle
}

// Forest is an arena-backed store of trees. Nodes are append-only; a child is
// always created after its parent, so handles of ancestors are always smaller
// than those of their descendants.
type Forest[T any] struct {
	nodes []node[T]
}

// NewRoot appends a node with no parent and returns its handle.
func (f *Forest[T]) NewRoot(value T) NodeHandle {
	handle := NodeHandle(len(f.nodes))
	f.nodes = append(f.nodes, node[T]{value: value, parent: NoNode})
	return handle
}

// NewNode appends a node under parent and returns its handle.
func (f *Forest[T]) NewNode(value T, parent NodeHandle) NodeHandle {
	handle := NodeHandle(len(f.nodes))
	f.nodes = append(f.nodes, node[T]{value: value, parent: parent})
	f.nodes[parent].children = append(f.nodes[parent].children, handle)
	return handle
}

// Value returns the value stored at handle.
func (f *Forest[T]) Value(handle NodeHandle) T {
	return f.nodes[handle].value
}

// Parent returns the parent handle of handle, or NoNode for roots.
func (f *Forest[T]) Parent(handle NodeHandle) NodeHandle {
	return f.nodes[handle].parent
}

// Children returns the child handles of handle in insertion order.
func (f *Forest[T]) Children(handle NodeHandle) []NodeHandle {
	return f.nodes[handle].children
}

// Len returns the number of nodes in the forest.
func (f *Forest[T]) Len() int {
	return len(f.nodes)
}

// ForEachRoot invokes f for every node without a parent, in creation order.
func (f *Forest[T]) ForEachRoot(fn func(NodeHandle)) {
	for i := range f.nodes {
		if f.nodes[i].parent == NoNode {
			fn(NodeHandle(i))
		}
	}
}
