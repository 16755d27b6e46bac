package tree

import (
	"sync/atomic"
	"unsafe"

	"github.com/benz9527/xtree/lib/infra"
)

// childPack couples both child pointers and the logical deletion mark
// into one immutable record behind a single atomic pointer. A reader
// always observes the two children and the mark as a snapshot that was
// valid together at some instant, never torn apart. Every mutation
// publishes a freshly allocated record, so a CAS over the cell cannot
// suffer from ABA.
type childPack[E infra.OrderedKey] struct {
	left    *xConcBSTNode[E]
	right   *xConcBSTNode[E]
	deleted bool
}

func (pack *childPack[E]) child(dir Direction) *xConcBSTNode[E] {
	if dir == Left {
		return pack.left
	}
	return pack.right
}

func (pack *childPack[E]) isLeaf() bool {
	return pack.left == nil && pack.right == nil
}

// xConcBSTNode wraps one element of the set. data is write-once at
// construction; the children cell is the only mutable field and changes
// exclusively through single atomic record swaps.
type xConcBSTNode[E infra.OrderedKey] struct {
	// Advisory back reference, useful to orient splicing but never
	// trusted for correctness. Concurrent surgery invalidates it at any
	// time, retries re-derive the real path from the root. Stored
	// atomically because racing adopters may both write it; last writer
	// wins and that is fine for a hint.
	parent   unsafe.Pointer // *xConcBSTNode[E]
	children unsafe.Pointer // *childPack[E]
	data     E
}

func (node *xConcBSTNode[E]) storeParent(p *xConcBSTNode[E]) {
	atomic.StorePointer(&node.parent, unsafe.Pointer(p))
}

func (node *xConcBSTNode[E]) loadParent() *xConcBSTNode[E] {
	return (*xConcBSTNode[E])(atomic.LoadPointer(&node.parent))
}

func newXConcBSTNode[E infra.OrderedKey](e E) *xConcBSTNode[E] {
	return &xConcBSTNode[E]{
		children: unsafe.Pointer(&childPack[E]{}),
		data:     e,
	}
}

// newXConcBSTRouter builds an unmarked routing node adopting both
// children at construction time, before publication.
func newXConcBSTRouter[E infra.OrderedKey](e E, left, right *xConcBSTNode[E]) *xConcBSTNode[E] {
	node := &xConcBSTNode[E]{
		children: unsafe.Pointer(&childPack[E]{left: left, right: right}),
		data:     e,
	}
	if left != nil {
		left.storeParent(node)
	}
	if right != nil {
		right.storeParent(node)
	}
	return node
}

func (node *xConcBSTNode[E]) loadChildren() *childPack[E] {
	return (*childPack[E])(atomic.LoadPointer(&node.children))
}

func (node *xConcBSTNode[E]) casChildren(old, new *childPack[E]) bool {
	return atomic.CompareAndSwapPointer(&node.children, unsafe.Pointer(old), unsafe.Pointer(new))
}

// getChild returns the requested child pointer together with the
// deletion mark, both taken from one snapshot of the children cell.
func (node *xConcBSTNode[E]) getChild(dir Direction) (*xConcBSTNode[E], bool) {
	pack := node.loadChildren()
	return pack.child(dir), pack.deleted
}

// insertChild makes a single CAS attempt to fill an absent child slot of
// an unmarked node. No internal retry, composing retries is the caller's
// job.
func (node *xConcBSTNode[E]) insertChild(dir Direction, child *xConcBSTNode[E]) bool {
	pack := node.loadChildren()
	if pack.deleted || pack.child(dir) != nil {
		return false
	}
	return node.casChild(dir, pack, child)
}

// casChild swaps the child slot at dir against the caller-observed
// snapshot old, copying the untouched side and keeping the mark clear.
// A stale snapshot or a marked node fails the swap.
func (node *xConcBSTNode[E]) casChild(dir Direction, old *childPack[E], child *xConcBSTNode[E]) bool {
	if old.deleted {
		return false
	}
	fresh := &childPack[E]{left: old.left, right: old.right}
	if dir == Left {
		fresh.left = child
	} else {
		fresh.right = child
	}
	if !node.casChildren(old, fresh) {
		return false
	}
	if child != nil {
		child.storeParent(node)
	}
	return true
}

// mark makes a single attempt to flip the deletion mark, leaving both
// child pointers untouched. It only succeeds on a not-yet-marked node; a
// true return is the linearization point of a removal.
func (node *xConcBSTNode[E]) mark() bool {
	pack := node.loadChildren()
	if pack.deleted {
		return false
	}
	return node.casChildren(pack, &childPack[E]{left: pack.left, right: pack.right, deleted: true})
}

// freeze marks the node unconditionally, retrying until the mark sticks,
// and returns the frozen snapshot. A frozen children cell never changes
// again, which fences concurrent child swaps during splicing.
func (node *xConcBSTNode[E]) freeze() *childPack[E] {
	for {
		pack := node.loadChildren()
		if pack.deleted {
			return pack
		}
		frozen := &childPack[E]{left: pack.left, right: pack.right, deleted: true}
		if node.casChildren(pack, frozen) {
			return frozen
		}
	}
}

func (node *xConcBSTNode[E]) isMarked() bool {
	return node.loadChildren().deleted
}

// isLeaf reports whether both children were absent at the time of read.
// Only leaves answer presence queries, internal nodes route only.
func (node *xConcBSTNode[E]) isLeaf() bool {
	return node.loadChildren().isLeaf()
}
