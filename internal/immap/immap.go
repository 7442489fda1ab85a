// Package immap provides an immutable, structurally shared map keyed by an
// integer hash.
//
// Every update returns a new Map value while the receiver stays unchanged, so
// a Map can be published through an atomic pointer and read by any number of
// goroutines without locks. Unaffected subtrees are shared between versions.
//
// The tree is an AVL tree ordered by hash. Keys whose hashes collide are kept
// in a per-node conflicts list and are told apart with ==.
package immap

import (
	"hash/maphash"
	"iter"
)

// Map is an immutable hash-ordered AVL tree. The zero Map is not usable; create
// one with New, NewInt or NewComparable.
type Map[K comparable, V any] struct {
	root *node[K, V]
	hash func(K) int
}

// Entry is a key/value pair stored in a node's conflicts list.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

type node[K comparable, V any] struct {
	hash      int
	key       K
	value     V
	conflicts []Entry[K, V]
	left      *node[K, V]
	right     *node[K, V]
	height    int
}

var seed = maphash.MakeSeed()

// New returns an empty map that hashes keys with hash.
func New[K comparable, V any](hash func(K) int) Map[K, V] {
	if hash == nil {
		panic("immap: hash function cannot be nil")
	}
	return Map[K, V]{hash: hash}
}

// NewInt returns an empty map whose keys are their own hash.
func NewInt[V any]() Map[int, V] {
	return New[int, V](func(k int) int { return k })
}

// NewComparable returns an empty map hashing keys with hash/maphash.
// Keys holding non-comparable dynamic values panic, like builtin map keys.
func NewComparable[K comparable, V any]() Map[K, V] {
	return New[K, V](Hash[K])
}

// Hash hashes any comparable value with the package seed.
func Hash[K comparable](k K) int {
	return int(maphash.Comparable(seed, k))
}

// IsEmpty reports whether the map has no entries.
func (m Map[K, V]) IsEmpty() bool {
	return m.root == nil
}

// Height returns the height of the underlying tree; Empty has height 0.
func (m Map[K, V]) Height() int {
	return m.root.h()
}

// Len counts entries, conflicts included. It walks the whole tree.
func (m Map[K, V]) Len() int {
	n := 0
	for range m.Enumerate() {
		n++
	}
	return n
}

// AddOrUpdate returns a map with key set to value.
func (m Map[K, V]) AddOrUpdate(key K, value V) Map[K, V] {
	return Map[K, V]{root: m.root.addOrUpdate(m.hash(key), key, value, nil), hash: m.hash}
}

// AddOrUpdateFunc returns a map with key set to value, or to update(old, value)
// when key is already present.
func (m Map[K, V]) AddOrUpdateFunc(key K, value V, update func(old, value V) V) Map[K, V] {
	return Map[K, V]{root: m.root.addOrUpdate(m.hash(key), key, value, update), hash: m.hash}
}

// Update returns a map with key set to value if key is present. Otherwise the
// receiver is returned as is.
func (m Map[K, V]) Update(key K, value V) Map[K, V] {
	root, ok := m.root.update(m.hash(key), key, value)
	if !ok {
		return m
	}
	return Map[K, V]{root: root, hash: m.hash}
}

// Get returns the value stored for key.
func (m Map[K, V]) Get(key K) (V, bool) {
	hash := m.hash(key)
	n := m.root
	for n != nil {
		switch {
		case hash < n.hash:
			n = n.left
		case hash > n.hash:
			n = n.right
		default:
			if n.key == key {
				return n.value, true
			}
			for _, c := range n.conflicts {
				if c.Key == key {
					return c.Value, true
				}
			}
			var zero V
			return zero, false
		}
	}
	var zero V
	return zero, false
}

// GetValueOrDefault returns the value stored for key or the zero value of V.
func (m Map[K, V]) GetValueOrDefault(key K) V {
	v, _ := m.Get(key)
	return v
}

// Enumerate yields all entries ordered by hash. Entries sharing a hash are
// yielded primary key first, then in the order they were added. Each call
// walks from the root, so the sequence can be ranged over repeatedly.
func (m Map[K, V]) Enumerate() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.root.walk(yield)
	}
}

func (n *node[K, V]) walk(yield func(K, V) bool) bool {
	if n == nil {
		return true
	}
	if !n.left.walk(yield) {
		return false
	}
	if !yield(n.key, n.value) {
		return false
	}
	for _, c := range n.conflicts {
		if !yield(c.Key, c.Value) {
			return false
		}
	}
	return n.right.walk(yield)
}

func (n *node[K, V]) h() int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node[K, V]) addOrUpdate(hash int, key K, value V, update func(old, value V) V) *node[K, V] {
	if n == nil {
		return &node[K, V]{hash: hash, key: key, value: value, height: 1}
	}

	switch {
	case hash < n.hash:
		return balance(n, n.left.addOrUpdate(hash, key, value, update), n.right)
	case hash > n.hash:
		return balance(n, n.left, n.right.addOrUpdate(hash, key, value, update))
	}

	if n.key == key {
		if update != nil {
			value = update(n.value, value)
		}
		return &node[K, V]{
			hash: n.hash, key: key, value: value, conflicts: n.conflicts,
			left: n.left, right: n.right, height: n.height,
		}
	}

	conflicts := make([]Entry[K, V], len(n.conflicts), len(n.conflicts)+1)
	copy(conflicts, n.conflicts)

	found := false
	for i := range conflicts {
		if conflicts[i].Key == key {
			if update != nil {
				value = update(conflicts[i].Value, value)
			}
			conflicts[i].Value = value
			found = true
			break
		}
	}
	if !found {
		conflicts = append(conflicts, Entry[K, V]{Key: key, Value: value})
	}

	return &node[K, V]{
		hash: n.hash, key: n.key, value: n.value, conflicts: conflicts,
		left: n.left, right: n.right, height: n.height,
	}
}

func (n *node[K, V]) update(hash int, key K, value V) (*node[K, V], bool) {
	if n == nil {
		return nil, false
	}

	switch {
	case hash < n.hash:
		left, ok := n.left.update(hash, key, value)
		if !ok {
			return n, false
		}
		return n.with(left, n.right), true
	case hash > n.hash:
		right, ok := n.right.update(hash, key, value)
		if !ok {
			return n, false
		}
		return n.with(n.left, right), true
	}

	if n.key == key {
		c := *n
		c.value = value
		return &c, true
	}

	for i := range n.conflicts {
		if n.conflicts[i].Key == key {
			conflicts := make([]Entry[K, V], len(n.conflicts))
			copy(conflicts, n.conflicts)
			conflicts[i].Value = value
			c := *n
			c.conflicts = conflicts
			return &c, true
		}
	}

	return n, false
}

// with copies n's payload onto new children. Heights are unchanged by Update,
// so no rebalancing is needed.
func (n *node[K, V]) with(left, right *node[K, V]) *node[K, V] {
	c := *n
	c.left, c.right = left, right
	return &c
}

func makeNode[K comparable, V any](payload *node[K, V], left, right *node[K, V]) *node[K, V] {
	return &node[K, V]{
		hash:      payload.hash,
		key:       payload.key,
		value:     payload.value,
		conflicts: payload.conflicts,
		left:      left,
		right:     right,
		height:    1 + max(left.h(), right.h()),
	}
}

// balance builds a node from payload and children, rotating when the children
// heights differ by two.
func balance[K comparable, V any](payload, left, right *node[K, V]) *node[K, V] {
	lh, rh := left.h(), right.h()

	switch {
	case lh > rh+1:
		if left.left.h() >= left.right.h() {
			return makeNode(left, left.left, makeNode(payload, left.right, right))
		}
		lr := left.right
		return makeNode(lr, makeNode(left, left.left, lr.left), makeNode(payload, lr.right, right))

	case rh > lh+1:
		if right.right.h() >= right.left.h() {
			return makeNode(right, makeNode(payload, left, right.left), right.right)
		}
		rl := right.left
		return makeNode(rl, makeNode(payload, left, rl.left), makeNode(right, rl.right, right.right))
	}

	return makeNode(payload, left, right)
}
