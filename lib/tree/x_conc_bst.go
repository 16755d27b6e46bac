package tree

// A lock-free binary search tree with an external (leaf-oriented) key
// representation:
//  1. Presence is answered by unmarked leaves only. Internal nodes may
//     carry duplicate keys purely to route searches, equal keys always
//     route right so the authoritative leaf stays reachable.
//  2. Removal marks the leaf first (the linearization point), then makes
//     one best-effort attempt to splice the leaf and its routing parent
//     out. Unfinished splices are completed by whichever mutator next
//     walks across the marked node.
//  3. Every structural change is a single CAS over immutable children
//     records, lost races rebuild nothing and retry from the root.
//
// References:
// https://doi.org/10.1145/1835698.1835736 (Ellen et al. non-blocking BST)
// https://people.csail.mit.edu/shanir/publications/LazySkipList.pdf

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/benz9527/xtree/lib/infra"
)

var (
	ErrXBSTNilKeyComparator = errors.New("[x-bst] nil key comparator")
)

var _ ConcurrentOrderedSet[uint8] = (*xConcBST[uint8])(nil)

type xConcBST[E infra.OrderedKey] struct {
	// The root slot is the only process-wide mutable state, padded so
	// root CAS traffic and the size counter never share a cache line.
	root unsafe.Pointer // *xConcBSTNode[E]
	_    [cacheLinePadSize - unsafe.Sizeof(unsafe.Pointer(nil))]byte
	len  int64
	_    [cacheLinePadSize - unsafe.Sizeof(int64(0))]byte
	kcmp infra.OrderedKeyComparator[E]
}

// NewXConcBST builds an empty set ordered by kcmp.
func NewXConcBST[E infra.OrderedKey](kcmp infra.OrderedKeyComparator[E]) (ConcurrentOrderedSet[E], error) {
	if kcmp == nil {
		return nil, infra.WrapErrorStack(ErrXBSTNilKeyComparator)
	}
	return &xConcBST[E]{kcmp: kcmp}, nil
}

// NewXConcBSTByOrder builds an empty set over the key type's natural
// ascending order.
func NewXConcBSTByOrder[E infra.OrderedKey]() ConcurrentOrderedSet[E] {
	bst, _ := NewXConcBST[E](func(i, j E) int64 {
		if i == j {
			return 0
		} else if i < j {
			return -1
		}
		return 1
	})
	return bst
}

func (bst *xConcBST[E]) loadRoot() *xConcBSTNode[E] {
	return (*xConcBSTNode[E])(atomic.LoadPointer(&bst.root))
}

func (bst *xConcBST[E]) casRoot(old, new *xConcBSTNode[E]) bool {
	return atomic.CompareAndSwapPointer(&bst.root, unsafe.Pointer(old), unsafe.Pointer(new))
}

func (bst *xConcBST[E]) Len() int64 {
	return atomic.LoadInt64(&bst.len)
}

// Contains is a pure reader: no CAS, no retry, no helping. Each visited
// node contributes one consistent children-and-mark snapshot, slight
// staleness is tolerated.
func (bst *xConcBST[E]) Contains(e E) bool {
	cur := bst.loadRoot()
	for cur != nil {
		pack := cur.loadChildren()
		res := bst.kcmp(e, cur.data)
		if res == 0 && pack.isLeaf() {
			return !pack.deleted
		}
		if res < 0 {
			cur = pack.left
		} else {
			// Greater, or a routing occurrence of an equal key.
			cur = pack.right
		}
	}
	return false
}

// Insert adds e to the set, reporting false when an unmarked leaf
// already carries it. The linearization point is the successful child
// installation (or root) CAS.
func (bst *xConcBST[E]) Insert(e E) bool {
	if !bst.insert0(e) {
		return false
	}
	atomic.AddInt64(&bst.len, 1)
	return true
}

func (bst *xConcBST[E]) insert0(e E) bool {
	var backoff casBackoff
retry:
	for {
		backoff.once()
		cur := bst.loadRoot()
		if cur == nil {
			if bst.casRoot(nil, newXConcBSTNode(e)) {
				return true
			}
			continue retry
		}
		var (
			gp, p            *xConcBSTNode[E]
			gpPack, pPack    *childPack[E]
			dirToP, dirToCur Direction
		)
		for {
			pack := cur.loadChildren()
			if pack.deleted {
				// A marked node blocks the path: its children cell is
				// immutable, so finish its physical removal first.
				bst.helpSplice(gp, gpPack, dirToP, p, pPack, dirToCur, cur, pack)
				continue retry
			}
			res := bst.kcmp(e, cur.data)
			if res == 0 && pack.isLeaf() {
				return false
			}
			dir := Right
			if res < 0 {
				dir = Left
			}
			if next := pack.child(dir); next != nil {
				gp, gpPack, dirToP = p, pPack, dirToCur
				p, pPack, dirToCur = cur, pack, dir
				cur = next
				continue
			}
			if pack.isLeaf() {
				if bst.splitLeaf(p, pPack, dirToCur, cur, e, dir) {
					return true
				}
				continue retry
			}
			// Half-open routing node, fill the absent slot directly.
			if cur.insertChild(dir, newXConcBSTNode(e)) {
				return true
			}
			continue retry
		}
	}
}

// splitLeaf turns a terminal leaf into a two-key subtree: a fresh
// routing node adopts the existing leaf and the new one, keyed by the
// larger of the two so that equal lookups walk right to the
// authoritative copy.
func (bst *xConcBST[E]) splitLeaf(
	p *xConcBSTNode[E],
	pPack *childPack[E],
	dirToLeaf Direction,
	leaf *xConcBSTNode[E],
	e E,
	dir Direction,
) bool {
	fresh := newXConcBSTNode(e)
	var router *xConcBSTNode[E]
	if dir == Left {
		router = newXConcBSTRouter(leaf.data, fresh, leaf)
	} else {
		router = newXConcBSTRouter(e, leaf, fresh)
	}
	if p == nil {
		// The leaf is the root itself.
		return bst.casRoot(leaf, router)
	}
	return p.casChild(dirToLeaf, pPack, router)
}

// Remove logically deletes the authoritative leaf carrying e. The
// successful mark is the linearization point; the physical splice below
// it is opportunistic and may be finished later by another operation.
func (bst *xConcBST[E]) Remove(e E) (E, bool) {
	var backoff casBackoff
retry:
	for {
		backoff.once()
		var (
			gp, p            *xConcBSTNode[E]
			gpPack, pPack    *childPack[E]
			dirToP, dirToCur Direction
		)
		cur := bst.loadRoot()
		for cur != nil {
			pack := cur.loadChildren()
			if pack.deleted {
				bst.helpSplice(gp, gpPack, dirToP, p, pPack, dirToCur, cur, pack)
				continue retry
			}
			res := bst.kcmp(e, cur.data)
			if res == 0 && pack.isLeaf() {
				if !cur.mark() {
					// Lost the race on this leaf, re-derive the path.
					continue retry
				}
				atomic.AddInt64(&bst.len, -1)
				bst.spliceLeaf(gp, gpPack, dirToP, p, cur)
				return cur.data, true
			}
			dir := Right
			if res < 0 {
				dir = Left
			}
			gp, gpPack, dirToP = p, pPack, dirToCur
			p, pPack, dirToCur = cur, pack, dir
			cur = pack.child(dir)
		}
		return *new(E), false
	}
}

// spliceLeaf makes one attempt to physically unlink a marked leaf
// together with its routing parent, the pair-splice of the deletion
// protocol. Failure is harmless, the marked node stays linked until a
// later traversal helps out.
func (bst *xConcBST[E]) spliceLeaf(
	gp *xConcBSTNode[E],
	gpPack *childPack[E],
	dirToP Direction,
	p, leaf *xConcBSTNode[E],
) {
	if p == nil {
		// The marked leaf is the root, no parent to splice through.
		bst.replaceRoot(leaf)
		return
	}
	// Freeze the routing parent first. Once its cell is immutable a
	// concurrent insert into the sibling slot can no longer be lost
	// behind the grandparent swap.
	frozen := p.freeze()
	repl := bst.replacementFor(p, frozen)
	if gp == nil {
		bst.casRoot(p, repl)
		return
	}
	gp.casChild(dirToP, gpPack, repl)
}

// helpSplice completes the physical removal of a marked node found on a
// search path. The caller restarts from the root afterwards whatever
// the outcome.
func (bst *xConcBST[E]) helpSplice(
	gp *xConcBSTNode[E],
	gpPack *childPack[E],
	dirToP Direction,
	p *xConcBSTNode[E],
	pPack *childPack[E],
	dirToCur Direction,
	cur *xConcBSTNode[E],
	curPack *childPack[E],
) {
	if p == nil {
		bst.replaceRoot(cur)
		return
	}
	if curPack.isLeaf() {
		bst.spliceLeaf(gp, gpPack, dirToP, p, cur)
		return
	}
	// A marked routing node mid-splice: install its replacement where
	// it stands.
	p.casChild(dirToCur, pPack, bst.replacementFor(cur, curPack))
}

// replaceRoot installs a replacement for a marked root, the only node
// with no parent to splice through, by CASing the root slot itself.
func (bst *xConcBST[E]) replaceRoot(oldRoot *xConcBSTNode[E]) {
	if bst.loadRoot() != oldRoot {
		return
	}
	repl := bst.replacementFor(oldRoot, oldRoot.loadChildren())
	if repl != nil {
		repl.storeParent(nil)
	}
	bst.casRoot(oldRoot, repl)
}

// replacementFor derives the subtree that takes a marked node's place:
// nil collapses the slot, a single live child is hoisted whole, and two
// live children hang under a fresh routing node reusing the marked
// node's own key. The key must never be derived from either subtree:
// only the marked node's cell is frozen, the subtrees stay mutable, so
// any leaf observed down there can be undercut by a concurrent split
// before the replacement publishes, stranding the freshly installed
// key on the wrong side of the router. The node's own key is immutable
// and routes exactly as the node itself did; internal keys are
// non-authoritative duplicates, so keeping it around costs nothing.
func (bst *xConcBST[E]) replacementFor(node *xConcBSTNode[E], frozen *childPack[E]) *xConcBSTNode[E] {
	if !frozen.deleted {
		panic("[x-bst] deriving a replacement for an unmarked node")
	}
	left, right := frozen.left, frozen.right
	// Marked leaf children retire together with their parent.
	if retiredLeaf(left) {
		left = nil
	}
	if retiredLeaf(right) {
		right = nil
	}
	switch {
	case left == nil && right == nil:
		return nil
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return newXConcBSTRouter(node.data, left, right)
}

func retiredLeaf[E infra.OrderedKey](n *xConcBSTNode[E]) bool {
	if n == nil {
		return false
	}
	pack := n.loadChildren()
	return pack.deleted && pack.isLeaf()
}
