package identity

import (
	"strings"
	"testing"
)

func TestNextIDUnique(t *testing.T) {
	a := NewAllocator()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := a.NextID("items", Node{Shape: "item"})
		if !strings.HasPrefix(id, "n-") {
			t.Fatalf("id %q lacks expected prefix", id)
		}
		if seen[id] {
			t.Fatalf("id %q minted twice", id)
		}
		seen[id] = true
	}
	if a.Count("items") != 200 {
		t.Errorf("Count = %d, want 200", a.Count("items"))
	}
}

func TestClaimAndResolve(t *testing.T) {
	a := NewAllocator()
	node := Node{Shape: "ticket", Path: "tickets[0]"}
	a.Claim("work-item", "t-1", node)

	got, ok := a.Resolve("work-item", "t-1")
	if !ok {
		t.Fatal("Resolve(t-1) not found")
	}
	if got.Path != "tickets[0]" {
		t.Errorf("resolved path = %q", got.Path)
	}

	if _, ok := a.Resolve("work-item", "t-2"); ok {
		t.Error("Resolve(t-2) should not be found")
	}
	if _, ok := a.Resolve("other-space", "t-1"); ok {
		t.Error("ids must not leak across spaces")
	}
}

func TestClaimCollision(t *testing.T) {
	a := NewAllocator()
	first := Node{Shape: "ticket", Path: "tickets[0]"}
	other := Node{Shape: "subtask", Path: "tickets[0].subtasks[1]"}

	a.Claim("work-item", "t-1", first)
	a.Claim("work-item", "t-1", other)

	collisions := a.Collisions()
	if len(collisions) != 1 {
		t.Fatalf("collisions = %d, want 1", len(collisions))
	}
	c := collisions[0]
	if c.Space != "work-item" || c.ID != "t-1" {
		t.Errorf("collision = %+v", c)
	}
	if c.First.Path != "tickets[0]" || c.Other.Path != "tickets[0].subtasks[1]" {
		t.Errorf("collision nodes = %+v", c)
	}

	// The first claimant keeps the binding; no renumbering.
	got, _ := a.Resolve("work-item", "t-1")
	if got.Path != "tickets[0]" {
		t.Errorf("binding moved to %q", got.Path)
	}

	msg := c.String()
	for _, want := range []string{"t-1", "work-item", "tickets[0]", "subtask"} {
		if !strings.Contains(msg, want) {
			t.Errorf("collision message missing %q: %s", want, msg)
		}
	}
}

func TestNextIDSkipsClaimed(t *testing.T) {
	a := NewAllocator()
	// Claim a large set of ids then mint; minted ids must avoid them all.
	claimed := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := a.NextID("s", Node{})
		claimed[id] = true
	}
	for i := 0; i < 50; i++ {
		id := a.NextID("s", Node{})
		if claimed[id] {
			t.Fatalf("minted id %q duplicates an existing binding", id)
		}
	}
}

func TestResetClearsBindingsKeepsRetired(t *testing.T) {
	a := NewAllocator()
	a.Claim("s", "a", Node{Path: "x"})
	a.Claim("s", "a", Node{Path: "y"}) // collision

	a.Reset()

	if _, ok := a.Resolve("s", "a"); ok {
		t.Error("bindings must not survive Reset")
	}
	if len(a.Collisions()) != 0 {
		t.Error("collisions must not survive Reset")
	}
	if a.Count("s") != 0 {
		t.Errorf("Count = %d after Reset", a.Count("s"))
	}

	// A new attempt re-claiming the same id is not a collision: the new
	// response re-declares every node.
	a.Claim("s", "a", Node{Path: "x"})
	if len(a.Collisions()) != 0 {
		t.Error("re-claim after Reset recorded a collision")
	}
	if _, ok := a.Resolve("s", "a"); !ok {
		t.Error("re-claim after Reset did not bind")
	}
}
