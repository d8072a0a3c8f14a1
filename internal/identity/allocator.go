// Package identity assigns and reconciles node identifiers for a single
// extraction. Ids inside one shared space are unique across every shape
// drawing from that space, so a reference field resolves to exactly one
// node regardless of shape.
//
// An Allocator is created fresh per extraction and discarded with it.
// It is not safe for concurrent use; an extraction is a single causal
// chain of attempts, so none is needed.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Node is one addressable value in an extraction result.
type Node struct {
	Shape string
	Path  string
	Value map[string]any
}

// Collision records two nodes claiming the same id within one space.
type Collision struct {
	Space string
	ID    string
	First Node
	Other Node
}

// Allocator hands out ids and indexes nodes per shared space. Ids are
// opaque tokens; callers compare them by equality only.
type Allocator struct {
	// space -> id -> node
	nodes map[string]map[string]Node
	// space -> ids bound in any attempt of this extraction. Minted ids
	// are never reissued across attempts.
	seen map[string]map[string]bool
	// collisions observed while claiming model-assigned ids, in claim
	// order. Surfaced by the validator, never silently repaired.
	collisions []Collision
}

// NewAllocator creates an empty allocator for one extraction.
func NewAllocator() *Allocator {
	return &Allocator{
		nodes: make(map[string]map[string]Node),
		seen:  make(map[string]map[string]bool),
	}
}

// NextID mints a fresh id guaranteed unique within the space and binds it
// to the node. Generated ids are uuid-derived short tokens; the format is
// opaque and carries no ordering.
func (a *Allocator) NextID(space string, node Node) string {
	pool := a.pool(space)
	for {
		id := "n-" + strings.Split(uuid.New().String(), "-")[0]
		if _, taken := pool[id]; taken {
			continue
		}
		if a.seen[space][id] {
			continue
		}
		pool[id] = node
		a.mark(space, id)
		return id
	}
}

// Claim records a model-assigned id. A second claim of the same id within
// the space is recorded as a collision rather than renumbered: the model
// set reference fields relative to these ids, so reassignment would
// silently corrupt them.
func (a *Allocator) Claim(space, id string, node Node) {
	pool := a.pool(space)
	if first, taken := pool[id]; taken {
		a.collisions = append(a.collisions, Collision{
			Space: space,
			ID:    id,
			First: first,
			Other: node,
		})
		return
	}
	pool[id] = node
	a.mark(space, id)
}

// Resolve looks up an id within a space.
func (a *Allocator) Resolve(space, id string) (Node, bool) {
	pool, ok := a.nodes[space]
	if !ok {
		return Node{}, false
	}
	n, ok := pool[id]
	return n, ok
}

// Collisions returns every collision recorded so far, in claim order.
func (a *Allocator) Collisions() []Collision {
	return a.collisions
}

// Reset clears per-attempt bindings while keeping the allocator instance.
// Called between retry attempts: the new response re-declares all nodes,
// so stale bindings from the failed attempt must not shadow them. Ids
// minted in earlier attempts stay retired and are never reissued.
func (a *Allocator) Reset() {
	a.nodes = make(map[string]map[string]Node)
	a.collisions = nil
}

func (a *Allocator) mark(space, id string) {
	set, ok := a.seen[space]
	if !ok {
		set = make(map[string]bool)
		a.seen[space] = set
	}
	set[id] = true
}

// Count returns the number of bound ids in a space.
func (a *Allocator) Count(space string) int {
	return len(a.nodes[space])
}

func (a *Allocator) pool(space string) map[string]Node {
	pool, ok := a.nodes[space]
	if !ok {
		pool = make(map[string]Node)
		a.nodes[space] = pool
	}
	return pool
}

func (c Collision) String() string {
	return fmt.Sprintf("id %q in space %q claimed by both %s (%s) and %s (%s)",
		c.ID, c.Space, c.First.Path, c.First.Shape, c.Other.Path, c.Other.Shape)
}
