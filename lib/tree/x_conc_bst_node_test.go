package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXConcBSTNode_SnapshotConsistency(t *testing.T) {
	node := newXConcBSTNode[uint64](7)
	child, marked := node.getChild(Left)
	require.Nil(t, child)
	require.False(t, marked)
	require.True(t, node.isLeaf())

	left := newXConcBSTNode[uint64](3)
	require.True(t, node.insertChild(Left, left))
	child, marked = node.getChild(Left)
	require.Same(t, left, child)
	require.False(t, marked)
	require.False(t, node.isLeaf())
	require.Same(t, node, left.loadParent())
}

func TestXConcBSTNode_InsertChildSingleAttempt(t *testing.T) {
	node := newXConcBSTNode[uint64](7)
	require.True(t, node.insertChild(Right, newXConcBSTNode[uint64](9)))
	// Occupied slot, no overwrite.
	require.False(t, node.insertChild(Right, newXConcBSTNode[uint64](8)))
	// Marked nodes refuse child swaps.
	require.True(t, node.mark())
	require.False(t, node.insertChild(Left, newXConcBSTNode[uint64](1)))
}

func TestXConcBSTNode_MarkOnce(t *testing.T) {
	node := newXConcBSTNode[uint64](5)
	left := newXConcBSTNode[uint64](1)
	require.True(t, node.insertChild(Left, left))
	require.True(t, node.mark())
	require.False(t, node.mark())
	// Children survive the mark untouched, and the mark travels with
	// the same snapshot.
	child, marked := node.getChild(Left)
	require.Same(t, left, child)
	require.True(t, marked)
	require.True(t, node.isMarked())
}

func TestXConcBSTNode_CASChildStaleSnapshot(t *testing.T) {
	node := newXConcBSTNode[uint64](5)
	stale := node.loadChildren()
	require.True(t, node.insertChild(Left, newXConcBSTNode[uint64](1)))
	require.False(t, node.casChild(Right, stale, newXConcBSTNode[uint64](9)))
	require.True(t, node.casChild(Right, node.loadChildren(), newXConcBSTNode[uint64](9)))
}

func TestXConcBSTNode_FreezeImmutable(t *testing.T) {
	node := newXConcBSTNode[uint64](5)
	require.True(t, node.insertChild(Right, newXConcBSTNode[uint64](9)))
	frozen := node.freeze()
	require.True(t, frozen.deleted)
	require.Same(t, frozen, node.freeze())
	require.False(t, node.insertChild(Left, newXConcBSTNode[uint64](1)))
	require.False(t, node.casChild(Right, frozen, nil))
	require.Same(t, frozen, node.loadChildren())
}
