package metrics

import (
	"math"
	"reflect"
	"testing"
)

func TestCalculatedMetricsNeverProduceNaNOrInf(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	for key, formula := range staticFormulas {
		if formula.Kind != KindCalculated {
			continue
		}
		got := engine.Calculate(key, Metrics{formula.Numerator: 0, formula.Denominator: 0})
		if got != 0 {
			t.Fatalf("calculate %s on zero inputs: got=%v want=0", key, got)
		}
		got = engine.Calculate(key, Metrics{formula.Numerator: 5})
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("calculate %s with missing denominator produced %v", key, got)
		}
	}
}

func TestSafeDivide(t *testing.T) {
	t.Parallel()

	cases := []struct {
		numerator   float64
		denominator float64
		want        float64
	}{
		{numerator: 10, denominator: 2, want: 5},
		{numerator: 10, denominator: 0, want: 0},
		{numerator: 0, denominator: 0, want: 0},
		{numerator: math.Inf(1), denominator: 2, want: 0},
		{numerator: 1, denominator: math.NaN(), want: 0},
	}
	for _, tc := range cases {
		if got := SafeDivide(tc.numerator, tc.denominator); got != tc.want {
			t.Fatalf("SafeDivide(%v, %v)=%v want=%v", tc.numerator, tc.denominator, got, tc.want)
		}
	}
}

func TestAggregateRecomputesRatiosFromSums(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	got := engine.Aggregate([]Metrics{
		{"clicks": 100, "impressions": 1000, "ctr": 10},
		{"clicks": 50, "impressions": 500, "ctr": 10},
	})
	if got["clicks"] != 150 || got["impressions"] != 1500 {
		t.Fatalf("unexpected base sums: %#v", got)
	}
	if got["ctr"] != 10 {
		t.Fatalf("unexpected ctr: got=%v want=10", got["ctr"])
	}

	got = engine.Aggregate([]Metrics{
		{"clicks": 10, "impressions": 100, "ctr": 10},
		{"clicks": 10, "impressions": 900, "ctr": 1.111},
	})
	if got["ctr"] != 2 {
		t.Fatalf("ctr must be recomputed from sums: got=%v want=2", got["ctr"])
	}
}

func TestAggregateAddsMissingDependencies(t *testing.T) {
	t.Parallel()

	got := NewEngine().Aggregate([]Metrics{{"cpc": 3}})
	if _, ok := got["spend"]; !ok {
		t.Fatalf("expected spend dependency in aggregate: %#v", got)
	}
	if got["cpc"] != 0 {
		t.Fatalf("cpc without inputs: got=%v want=0", got["cpc"])
	}
}

func TestAggregateIsAssociative(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	rows := []Metrics{
		{"spend": 12.5, "clicks": 5, "impressions": 400, "cpc": 2.5},
		{"spend": 7.5, "clicks": 3, "impressions": 100, "cpc": 2.5},
		{"spend": 30, "clicks": 0, "impressions": 900, "cpc": 0},
	}
	whole := engine.Aggregate(rows)
	split := engine.Aggregate([]Metrics{
		engine.Aggregate(rows[:1]),
		engine.Aggregate(rows[1:]),
	})
	if !reflect.DeepEqual(whole, split) {
		t.Fatalf("aggregate mismatch: whole=%#v split=%#v", whole, split)
	}
}

func TestDynamicMetricsInheritFamilyFormula(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	if !engine.IsSummable("conversions_purchase") {
		t.Fatal("conversions_purchase must be summable")
	}
	if !engine.IsDerived("cost_per_result_lead") {
		t.Fatal("cost_per_result_lead must be derived")
	}
	deps := engine.DependenciesOf("cost_per_result_lead")
	if !reflect.DeepEqual(deps, []string{"spend", "conversions_lead"}) {
		t.Fatalf("unexpected dependencies: %#v", deps)
	}
	got := engine.Calculate("roas_purchase", Metrics{"conversion_value_purchase": 300, "spend": 100})
	if got != 3 {
		t.Fatalf("roas_purchase: got=%v want=3", got)
	}
	if engine.IsDerived("some_unknown_counter") {
		t.Fatal("unknown keys default to sum")
	}
}

func TestResolveFamilyUsesLongestPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key    string
		family Family
		suffix string
	}{
		{key: "conversions_purchase", family: FamilyConversions, suffix: "purchase"},
		{key: "conversion_value_purchase", family: FamilyConversionValue, suffix: "purchase"},
		{key: "conversion_rate_lead", family: FamilyConversionRate, suffix: "lead"},
		{key: "cost_per_result_lead", family: FamilyCostPerResult, suffix: "lead"},
		{key: "cost_per_action_add_to_cart", family: FamilyCostPerAction, suffix: "add_to_cart"},
		{key: "video_p25_watched", family: FamilyVideo, suffix: "p25_watched"},
		{key: "conversions_", family: FamilyNone, suffix: ""},
		{key: "impressions", family: FamilyNone, suffix: ""},
	}
	for _, tc := range cases {
		family, suffix := ResolveFamily(tc.key)
		if family != tc.family || suffix != tc.suffix {
			t.Fatalf("ResolveFamily(%q)=(%q,%q) want=(%q,%q)", tc.key, family, suffix, tc.family, tc.suffix)
		}
	}
}

func TestStaticKeysWinOverFamilies(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	if formula := engine.Formula("conversion_rate"); formula.Numerator != KeyPurchases {
		t.Fatalf("conversion_rate must use static formula: %#v", formula)
	}
	if formula := engine.Formula("crm_close_rate"); formula.Kind != KindCalculated {
		t.Fatalf("crm_close_rate must be calculated: %#v", formula)
	}
}

func TestExpandKeysAddsDerivableMetrics(t *testing.T) {
	t.Parallel()

	got := NewEngine().ExpandKeys([]string{"clicks", "impressions", "spend", "conversions_lead"})
	want := []string{"clicks", "conversion_rate_lead", "conversions_lead", "cost_per_result_lead", "cpc", "cpm", "ctr", "impressions", "spend"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected keys:\n got=%v\nwant=%v", got, want)
	}
}
