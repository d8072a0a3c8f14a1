package validate

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jackzampolin/distill/internal/schema"
)

// RuleAggregate is reported when a declared total disagrees with the sum
// of its parts.
const RuleAggregate = "aggregate_mismatch"

// SumEquals builds a rule checking that the sum of price×quantity over an
// items array equals a declared total field. Comparison is decimal-exact:
// financial aggregation must not drift through float rounding.
func SumEquals(itemsField, priceField, qtyField, totalField string) schema.Rule {
	return schema.Rule{
		Name: fmt.Sprintf("sum(%s.%s*%s) == %s", itemsField, priceField, qtyField, totalField),
		Check: func(value map[string]any) []schema.Violation {
			items, ok := value[itemsField].([]any)
			if !ok {
				return nil // structural checks already cover shape problems
			}
			declared, ok := toDecimal(value[totalField])
			if !ok {
				return nil
			}

			sum := decimal.Zero
			for _, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					return nil
				}
				price, pok := toDecimal(obj[priceField])
				qty, qok := toDecimal(obj[qtyField])
				if !pok || !qok {
					return nil
				}
				sum = sum.Add(price.Mul(qty))
			}

			if !sum.Equal(declared) {
				return []schema.Violation{{
					FieldPath: totalField,
					Rule:      RuleAggregate,
					Message: fmt.Sprintf("declared %s is %s but %s sum to %s",
						totalField, declared.String(), itemsField, sum.String()),
				}}
			}
			return nil
		},
	}
}

// toDecimal converts a decoded JSON value into an exact decimal.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
