package validate_test

import (
	"testing"

	"github.com/jackzampolin/distill/internal/decode"
	"github.com/jackzampolin/distill/internal/identity"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/testutil"
	"github.com/jackzampolin/distill/internal/validate"
)

func mustDecode(t *testing.T, raw string, desc *schema.Descriptor, alloc *identity.Allocator) *decode.Document {
	t.Helper()
	doc, err := decode.Decode(raw, desc, alloc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return doc
}

func TestValidateClean(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "merchant": "Corner Store",
	  "category": "grocery",
	  "subtotal": 13,
	  "items": [
	    {"name": "milk", "price": 4.5, "quantity": 2},
	    {"name": "bread", "price": 4.0, "quantity": 1}
	  ]
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("violations = %v, want none", violations)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{"category": "grocery", "subtotal": 1, "items": []}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	v := violations[0]
	if v.FieldPath != "merchant" || v.Rule != validate.RuleRequired {
		t.Errorf("violation = %+v", v)
	}
}

func TestValidateEnumMembership(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{"merchant": "X", "category": "snacks", "subtotal": 1, "items": []}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	if violations[0].FieldPath != "category" || violations[0].Rule != validate.RuleEnum {
		t.Errorf("violation = %+v", violations[0])
	}
}

func TestValidateNumericRange(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "merchant": "X",
	  "category": "other",
	  "subtotal": 1,
	  "items": [{"name": "milk", "price": 4.5, "quantity": 0}]
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	if violations[0].FieldPath != "items[0].quantity" || violations[0].Rule != validate.RuleRange {
		t.Errorf("violation = %+v", violations[0])
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "merchant": "X",
	  "category": "other",
	  "subtotal": "a lot",
	  "items": []
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	if violations[0].FieldPath != "subtotal" || violations[0].Rule != validate.RuleType {
		t.Errorf("violation = %+v", violations[0])
	}
}

func TestValidateDeterministicOrder(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	raw := `{
	  "category": "snacks",
	  "items": [{"name": "milk", "price": 4.5, "quantity": 0}]
	}`

	run := func() []schema.Violation {
		alloc := identity.NewAllocator()
		doc := mustDecode(t, raw, desc, alloc)
		violations, err := validate.Validate(doc, desc, alloc)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		return violations
	}

	first := run()
	if len(first) < 3 {
		t.Fatalf("violations = %v, want missing merchant + missing subtotal + enum + range", first)
	}
	// Sorted by path: category < items[0].quantity < merchant < subtotal.
	wantPaths := []string{"category", "items[0].quantity", "merchant", "subtotal"}
	if len(first) != len(wantPaths) {
		t.Fatalf("violations = %v", first)
	}
	for i, want := range wantPaths {
		if first[i].FieldPath != want {
			t.Errorf("violation[%d].FieldPath = %q, want %q", i, first[i].FieldPath, want)
		}
	}

	for i := 0; i < 5; i++ {
		again := run()
		if len(again) != len(first) {
			t.Fatalf("run %d: violation count changed", i)
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: violation %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestSumEquals(t *testing.T) {
	rule := validate.SumEquals("items", "price", "quantity", "subtotal")

	t.Run("decimal-exact match", func(t *testing.T) {
		desc := testutil.ReceiptDescriptor()
		alloc := identity.NewAllocator()
		// 45.1*2 + 17.4*1 = 107.6; exact only under decimal arithmetic.
		doc := mustDecode(t, `{
		  "merchant": "X",
		  "category": "other",
		  "subtotal": 107.6,
		  "items": [
		    {"name": "a", "price": 45.1, "quantity": 2},
		    {"name": "b", "price": 17.4, "quantity": 1}
		  ]
		}`, desc, alloc)

		violations, err := validate.Validate(doc, desc, alloc, rule)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if len(violations) != 0 {
			t.Errorf("violations = %v, want none", violations)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		desc := testutil.ReceiptDescriptor()
		alloc := identity.NewAllocator()
		doc := mustDecode(t, `{
		  "merchant": "X",
		  "category": "other",
		  "subtotal": 100,
		  "items": [
		    {"name": "a", "price": 45.1, "quantity": 2},
		    {"name": "b", "price": 17.4, "quantity": 1}
		  ]
		}`, desc, alloc)

		violations, err := validate.Validate(doc, desc, alloc, rule)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if len(violations) != 1 {
			t.Fatalf("violations = %v, want exactly one", violations)
		}
		v := violations[0]
		if v.FieldPath != "subtotal" || v.Rule != validate.RuleAggregate {
			t.Errorf("violation = %+v", v)
		}
	})
}

func TestRegisteredRulesRunInOrder(t *testing.T) {
	desc := testutil.ReceiptDescriptor()
	desc.RegisterRule("first", func(map[string]any) []schema.Violation {
		return []schema.Violation{{FieldPath: "merchant", Rule: "first", Message: "a"}}
	})
	desc.RegisterRule("second", func(map[string]any) []schema.Violation {
		return []schema.Violation{{FieldPath: "merchant", Rule: "second", Message: "b"}}
	})

	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{"merchant": "X", "category": "other", "subtotal": 1, "items": []}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want 2", violations)
	}
	if violations[0].Rule != "first" || violations[1].Rule != "second" {
		t.Errorf("rule order = %q, %q", violations[0].Rule, violations[1].Rule)
	}
}

func TestDanglingReference(t *testing.T) {
	desc := testutil.TicketDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "tickets": [
	    {
	      "id": "t-1",
	      "title": "Login broken",
	      "subtasks": [
	        {"id": "t-2", "title": "Fix", "blocked_by": "t-99"}
	      ]
	    }
	  ]
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	v := violations[0]
	if v.FieldPath != "tickets[0].subtasks[0].blocked_by" || v.Rule != validate.RuleDangling {
		t.Errorf("violation = %+v", v)
	}
}

func TestReferenceAcrossShapes(t *testing.T) {
	// A subtask may reference a ticket: the space is shared across shapes.
	desc := testutil.TicketDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "tickets": [
	    {
	      "id": "t-1",
	      "title": "Login broken",
	      "subtasks": [
	        {"id": "t-2", "title": "Fix", "blocked_by": "t-1"}
	      ]
	    }
	  ]
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("violations = %v, want none", violations)
	}
}

func TestIDCollisionSurfaced(t *testing.T) {
	desc := testutil.TicketDescriptor()
	alloc := identity.NewAllocator()
	doc := mustDecode(t, `{
	  "tickets": [
	    {"id": "t-1", "title": "First"},
	    {"id": "t-1", "title": "Second"}
	  ]
	}`, desc, alloc)

	violations, err := validate.Validate(doc, desc, alloc)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	v := violations[0]
	if v.FieldPath != "tickets[1].id" || v.Rule != validate.RuleIDCollision {
		t.Errorf("violation = %+v", v)
	}
}
