// Package metrics classifies ad metrics as summable or calculated and
// aggregates them so that ratios are always recomputed from summed inputs.
package metrics

import (
	"math"
	"sort"
	"strings"
)

// Metrics maps a metric key to its numeric value.
type Metrics map[string]float64

func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}

// HasNonZero reports whether at least one metric is different from zero.
func (m Metrics) HasNonZero() bool {
	for _, value := range m {
		if value != 0 {
			return true
		}
	}
	return false
}

const maxFormulaDepth = 8

type Engine struct {
	static map[string]Formula
}

var Default = NewEngine()

func NewEngine() *Engine {
	static := make(map[string]Formula, len(staticFormulas))
	for key, formula := range staticFormulas {
		static[key] = formula
	}
	return &Engine{static: static}
}

func (e *Engine) Formula(key string) Formula {
	key = strings.TrimSpace(key)
	if formula, ok := e.static[key]; ok {
		return formula
	}
	family, suffix := ResolveFamily(key)
	if family == FamilyNone {
		return sumFormula()
	}
	return familyFormula(family, suffix)
}

func (e *Engine) IsSummable(key string) bool {
	return e.Formula(key).Kind == KindSum
}

func (e *Engine) IsDerived(key string) bool {
	return e.Formula(key).Kind == KindCalculated
}

// DependenciesOf returns the summable keys a metric ultimately depends on.
// Summable keys depend on themselves.
func (e *Engine) DependenciesOf(key string) []string {
	out := make([]string, 0, 2)
	seen := map[string]struct{}{}
	e.collectDependencies(key, seen, map[string]struct{}{}, &out)
	return out
}

func (e *Engine) collectDependencies(key string, seen map[string]struct{}, visiting map[string]struct{}, out *[]string) {
	if _, ok := visiting[key]; ok {
		return
	}
	formula := e.Formula(key)
	if formula.Kind == KindSum {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			*out = append(*out, key)
		}
		return
	}
	visiting[key] = struct{}{}
	for _, dependency := range formula.Dependencies {
		e.collectDependencies(dependency, seen, visiting, out)
	}
	delete(visiting, key)
}

// Calculate evaluates key against base values. Division by zero yields 0.
func (e *Engine) Calculate(key string, base Metrics) float64 {
	return e.calculate(key, base, 0)
}

func (e *Engine) calculate(key string, base Metrics, depth int) float64 {
	formula := e.Formula(key)
	if formula.Kind == KindSum {
		return finite(base[key])
	}
	if depth >= maxFormulaDepth {
		return 0
	}
	numerator := e.calculate(formula.Numerator, base, depth+1)
	denominator := e.calculate(formula.Denominator, base, depth+1)
	multiplier := formula.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	return finite(SafeDivide(numerator, denominator) * multiplier)
}

func SafeDivide(numerator float64, denominator float64) float64 {
	if denominator == 0 || !isFinite(numerator) || !isFinite(denominator) {
		return 0
	}
	return finite(numerator / denominator)
}

// Aggregate sums the summable metrics of every input and recomputes each
// calculated metric present in any input once, on the sums.
func (e *Engine) Aggregate(items []Metrics) Metrics {
	sums := Metrics{}
	derived := map[string]struct{}{}
	for _, item := range items {
		for key, value := range item {
			if e.IsDerived(key) {
				derived[key] = struct{}{}
				continue
			}
			sums[key] += finite(value)
		}
	}
	for key := range derived {
		for _, dependency := range e.DependenciesOf(key) {
			if _, ok := sums[dependency]; !ok {
				sums[dependency] = 0
			}
		}
	}
	out := sums.Clone()
	for key := range derived {
		out[key] = e.Calculate(key, sums)
	}
	return out
}

// Recompute returns a copy of m whose calculated metrics are derived from the
// summable values in m.
func (e *Engine) Recompute(m Metrics) Metrics {
	return e.Aggregate([]Metrics{m})
}

// MergeInto adds the summable metrics of src into dst and recomputes dst's
// calculated metrics.
func (e *Engine) MergeInto(dst Metrics, src Metrics) Metrics {
	if dst == nil {
		return e.Recompute(src)
	}
	return e.Aggregate([]Metrics{dst, src})
}

// ExpandKeys returns the observed keys plus every calculated key that can be
// derived from them, sorted.
func (e *Engine) ExpandKeys(observed []string) []string {
	set := make(map[string]struct{}, len(observed))
	for _, key := range observed {
		if strings.TrimSpace(key) == "" {
			continue
		}
		set[key] = struct{}{}
	}
	for key, formula := range e.static {
		if formula.Kind != KindCalculated {
			continue
		}
		if hasAll(set, formula.Dependencies) {
			set[key] = struct{}{}
		}
	}
	for _, key := range observed {
		family, suffix := ResolveFamily(key)
		switch family {
		case FamilyConversions:
			for _, candidate := range []string{PrefixCostPerResult + suffix, PrefixConversionRate + suffix} {
				if hasAll(set, e.Formula(candidate).Dependencies) {
					set[candidate] = struct{}{}
				}
			}
		case FamilyConversionValue:
			candidate := PrefixROAS + suffix
			if hasAll(set, e.Formula(candidate).Dependencies) {
				set[candidate] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func hasAll(set map[string]struct{}, keys []string) bool {
	for _, key := range keys {
		if _, ok := set[key]; !ok {
			return false
		}
	}
	return true
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func finite(value float64) float64 {
	if !isFinite(value) {
		return 0
	}
	return value
}
