package main

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
)

func TestParseRecords(t *testing.T) {
	input := strings.Join([]string{
		"code,discount_type,value,description,max_uses,valid_until",
		"# seasonal",
		"eid10, percentage, 10, Eid sale",
		"TAKA50,flat,50,,100",
		"NEWYEAR,Percentage,25,New year,,2027-01-01T00:00:00Z",
		"TAKA50,flat,50,,100",
	}, "\n")

	rules, err := parseRecords(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rules, 3)

	eid := rules["EID10"]
	assert.Equal(t, coupon.DiscountPercentage, eid.DiscountType)
	assert.True(t, decimal.NewFromInt(10).Equal(eid.Value))
	assert.Equal(t, "Eid sale", eid.Description)

	assert.Equal(t, 100, rules["TAKA50"].MaxUses)
	require.NotNil(t, rules["NEWYEAR"].ValidUntil)
	assert.Equal(t, 2027, rules["NEWYEAR"].ValidUntil.Year())
}

func TestParseRecords_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "too few fields", input: "CODE1,flat"},
		{name: "unknown type", input: "CODE1,free_lowest,0"},
		{name: "bad value", input: "CODE1,flat,abc"},
		{name: "negative value", input: "CODE1,flat,-5"},
		{name: "percentage above 100", input: "CODE1,percentage,150"},
		{name: "bad max uses", input: "CODE1,flat,5,,many"},
		{name: "bad date", input: "CODE1,flat,5,,,tomorrow"},
		{name: "conflicting duplicate", input: "CODE1,flat,5\nCODE1,flat,6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecords(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}

func TestMerge(t *testing.T) {
	flat := func(code string, v int64) coupon.Rule {
		return coupon.Rule{Code: code, DiscountType: coupon.DiscountFlat, Value: decimal.NewFromInt(v)}
	}

	rules, err := merge([]fileResult{
		{path: "b.csv.gz", rules: map[string]coupon.Rule{"B": flat("B", 5), "A": flat("A", 1)}},
		{path: "a.csv.gz", rules: map[string]coupon.Rule{"A": flat("A", 1)}},
	})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "A", rules[0].Code)
	assert.Equal(t, "B", rules[1].Code)

	_, err = merge([]fileResult{
		{path: "a.csv.gz", rules: map[string]coupon.Rule{"A": flat("A", 1)}},
		{path: "b.csv.gz", rules: map[string]coupon.Rule{"A": flat("A", 2)}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting")
}
