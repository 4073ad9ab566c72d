// Package view filters, sorts and aggregates precomputed table rows for
// display. Every call recomputes derived metrics from the surviving items.
package view

import (
	"fmt"
	"math"
	"strings"
)

type Mode string

const (
	ModeAll       Mode = "all"
	ModeSelection Mode = "selection"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type ConditionType string

const (
	ConditionText    ConditionType = "text"
	ConditionNumeric ConditionType = "numeric"
	ConditionStatus  ConditionType = "status"
	ConditionDate    ConditionType = "date"
)

type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not-contains"
	OpEqual       Operator = "equal"
	OpGreater     Operator = "greater"
	OpLess        Operator = "less"
	OpNotEqual    Operator = "not-equal"
	OpBetween     Operator = "between"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
	OpOn          Operator = "on"
)

// Scope selects where a numeric condition is evaluated. ScopeDate tests the
// date row's aggregate before any item filtering.
type Scope string

const (
	ScopeItem Scope = "item"
	ScopeDate Scope = "date"
)

// Condition is a tagged union keyed by Type. Only the fields of the active
// type are read.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator,omitempty"`
	Values   []string      `json:"values,omitempty"`
	Value    float64       `json:"value,omitempty"`
	ValueTo  float64       `json:"value_to,omitempty"`
	Date     string        `json:"date,omitempty"`
	Scope    Scope         `json:"scope,omitempty"`
}

func (c Condition) Validate() error {
	switch c.Type {
	case ConditionText:
		switch c.Operator {
		case OpContains, OpNotContains, OpEqual:
			return nil
		}
	case ConditionNumeric:
		switch c.Operator {
		case OpGreater, OpLess, OpEqual, OpNotEqual, OpBetween:
			if c.Scope != "" && c.Scope != ScopeItem && c.Scope != ScopeDate {
				return fmt.Errorf("unsupported numeric scope %q", c.Scope)
			}
			if !finite(c.Value) || !finite(c.ValueTo) {
				return fmt.Errorf("numeric condition requires finite values")
			}
			return nil
		}
	case ConditionStatus:
		return nil
	case ConditionDate:
		switch c.Operator {
		case OpBefore, OpAfter, OpOn:
			if strings.TrimSpace(c.Date) == "" {
				return fmt.Errorf("date condition requires a date")
			}
			return nil
		}
	default:
		return fmt.Errorf("unsupported condition type %q", c.Type)
	}
	return fmt.Errorf("unsupported %s operator %q", c.Type, c.Operator)
}

// ParentFilter matches items by their lower-cased ancestor path.
type ParentFilter struct {
	Operator Operator `json:"operator,omitempty"`
	Values   []string `json:"values,omitempty"`
}

type ColumnSort struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// State is the user-controlled filter and sort state. Filters holds at most
// one condition per column.
type State struct {
	Mode          Mode                 `json:"mode,omitempty"`
	SelectedDates []string             `json:"selected_dates,omitempty"`
	SelectedItems []string             `json:"selected_items,omitempty"`
	Search        string               `json:"search,omitempty"`
	Statuses      []string             `json:"statuses,omitempty"`
	Parent        ParentFilter         `json:"parent,omitempty"`
	Filters       map[string]Condition `json:"filters,omitempty"`
	Sorts         []ColumnSort         `json:"sorts,omitempty"`
}

func (s State) Validate() error {
	switch s.Mode {
	case "", ModeAll, ModeSelection:
	default:
		return fmt.Errorf("unsupported mode %q; expected all|selection", s.Mode)
	}
	switch s.Parent.Operator {
	case "", OpContains, OpNotContains, OpEqual:
	default:
		return fmt.Errorf("unsupported parent operator %q", s.Parent.Operator)
	}
	for column, condition := range s.Filters {
		if err := condition.Validate(); err != nil {
			return fmt.Errorf("filter %s: %w", column, err)
		}
	}
	for _, sort := range s.Sorts {
		if strings.TrimSpace(sort.Column) == "" {
			return fmt.Errorf("sort column is required")
		}
		switch sort.Direction {
		case Asc, Desc:
		default:
			return fmt.Errorf("sort %s: unsupported direction %q", sort.Column, sort.Direction)
		}
	}
	return nil
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
