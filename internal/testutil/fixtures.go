// Package testutil provides shared schema fixtures for tests: a flat
// receipt descriptor for structural and aggregate checks, and a nested
// ticket descriptor exercising shared id spaces and references.
package testutil

import (
	"github.com/jackzampolin/distill/internal/schema"
)

// Float returns a pointer to v, for numeric bounds in field specs.
func Float(v float64) *float64 {
	return &v
}

// ReceiptDescriptor builds a flat purchase-receipt descriptor: merchant,
// category enum, line items, and a declared subtotal.
func ReceiptDescriptor() *schema.Descriptor {
	return schema.New("receipt", &schema.FieldSpec{
		Kind:  schema.KindObject,
		Shape: "receipt",
		Fields: []*schema.FieldSpec{
			{Name: "merchant", Kind: schema.KindString, Required: true},
			{Name: "category", Kind: schema.KindEnum, Required: true, Enum: []schema.EnumValue{
				{Value: "grocery", Meaning: "food and household goods"},
				{Value: "restaurant", Meaning: "prepared meals"},
				{Value: "other"},
			}},
			{Name: "subtotal", Kind: schema.KindNumber, Required: true},
			{Name: "items", Kind: schema.KindArray, Required: true, Elem: &schema.FieldSpec{
				Kind:  schema.KindObject,
				Shape: "line_item",
				Fields: []*schema.FieldSpec{
					{Name: "name", Kind: schema.KindString, Required: true},
					{Name: "price", Kind: schema.KindNumber, Required: true},
					{Name: "quantity", Kind: schema.KindInt, Required: true, Minimum: Float(1)},
				},
			}},
		},
	}).WithGuidance("Amounts are in the receipt's own currency; do not convert.")
}

// TicketDescriptor builds a nested support-ticket descriptor where
// tickets and subtasks draw ids from one shared space and subtasks may
// reference any node in it.
func TicketDescriptor() *schema.Descriptor {
	return schema.New("support_ticket", &schema.FieldSpec{
		Kind: schema.KindObject,
		Fields: []*schema.FieldSpec{
			{Name: "tickets", Kind: schema.KindArray, Required: true, Elem: &schema.FieldSpec{
				Kind:  schema.KindObject,
				Shape: "ticket",
				Space: "work-item",
				Fields: []*schema.FieldSpec{
					{Name: "title", Kind: schema.KindString, Required: true},
					{Name: "status", Kind: schema.KindEnum, Enum: []schema.EnumValue{
						{Value: "open"},
						{Value: "closed"},
					}},
					{Name: "subtasks", Kind: schema.KindArray, Elem: &schema.FieldSpec{
						Kind:  schema.KindObject,
						Shape: "subtask",
						Space: "work-item",
						Fields: []*schema.FieldSpec{
							{Name: "title", Kind: schema.KindString, Required: true},
							{Name: "blocked_by", Kind: schema.KindRef, Space: "work-item",
								Description: "Work item that must finish first"},
						},
					}},
				},
			}},
		},
	}).WithSpaces(schema.IDSpace{Name: "work-item", Shapes: []string{"ticket", "subtask"}})
}
