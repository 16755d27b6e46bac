package tree

import "github.com/benz9527/xtree/lib/infra"

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=Direction
type Direction int8

const (
	Left Direction = -1 + iota
	Root
	Right
)

// ConcurrentOrderedSet is a linearizable lock-free ordered set.
// Insert and Remove resolve contention by internal CAS retry and never
// block; Contains is a pure reader and never retries.
type ConcurrentOrderedSet[E infra.OrderedKey] interface {
	Len() int64
	Insert(e E) bool
	Remove(e E) (E, bool)
	Contains(e E) bool
}
