package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const dateScopePrefix = "row:"

var expressionOperators = []string{"!~", "!=", "==", "~", "=", "<", ">", "@"}

// ParseFilter parses a compact filter expression into a column condition.
//
//	spend>100  ctr<1.5  clicks=10  clicks!=0  cpc=0.5..2
//	name~promo,sale  name!~test  status==ACTIVE
//	date<2024-03-01  date>2024-03-01  date@2024-03-01
//
// A "row:" prefix evaluates a numeric condition against the date aggregate.
func ParseFilter(expression string) (string, Condition, error) {
	expression = strings.TrimSpace(expression)
	scope := ScopeItem
	if strings.HasPrefix(expression, dateScopePrefix) {
		scope = ScopeDate
		expression = strings.TrimPrefix(expression, dateScopePrefix)
	}

	position := strings.IndexAny(expression, "!~=<>@")
	if position <= 0 {
		return "", Condition{}, fmt.Errorf("invalid filter %q: expected <column><operator><value>", expression)
	}
	column := strings.TrimSpace(expression[:position])
	rest := expression[position:]
	operator := ""
	for _, candidate := range expressionOperators {
		if strings.HasPrefix(rest, candidate) {
			operator = candidate
			break
		}
	}
	if operator == "" {
		return "", Condition{}, fmt.Errorf("invalid filter %q: unknown operator", expression)
	}
	value := strings.TrimSpace(rest[len(operator):])
	if value == "" {
		return "", Condition{}, fmt.Errorf("invalid filter %q: value is required", expression)
	}

	if column == DateColumn {
		condition := Condition{Type: ConditionDate, Date: value}
		switch operator {
		case "<":
			condition.Operator = OpBefore
		case ">":
			condition.Operator = OpAfter
		case "@", "=", "==":
			condition.Operator = OpOn
		default:
			return "", Condition{}, fmt.Errorf("invalid date filter %q: use <, > or @", expression)
		}
		return column, condition, nil
	}

	switch operator {
	case "~", "!~", "==":
		condition := Condition{Type: ConditionText, Values: splitValues(value)}
		switch operator {
		case "~":
			condition.Operator = OpContains
		case "!~":
			condition.Operator = OpNotContains
		default:
			condition.Operator = OpEqual
			if column == "status" {
				condition = Condition{Type: ConditionStatus, Values: splitValues(value)}
			}
		}
		return column, condition, nil
	}

	if isTextColumn(column) {
		if operator == "=" {
			if column == "status" {
				return column, Condition{Type: ConditionStatus, Values: splitValues(value)}, nil
			}
			return column, Condition{Type: ConditionText, Operator: OpEqual, Values: splitValues(value)}, nil
		}
		return "", Condition{}, fmt.Errorf("invalid filter %q: column %s is not numeric", expression, column)
	}

	condition := Condition{Type: ConditionNumeric, Scope: scope}
	switch operator {
	case ">":
		condition.Operator = OpGreater
	case "<":
		condition.Operator = OpLess
	case "!=":
		condition.Operator = OpNotEqual
	case "=":
		condition.Operator = OpEqual
		if low, high, ok := strings.Cut(value, ".."); ok {
			from, err := parseNumber(expression, low)
			if err != nil {
				return "", Condition{}, err
			}
			to, err := parseNumber(expression, high)
			if err != nil {
				return "", Condition{}, err
			}
			condition.Operator = OpBetween
			condition.Value = from
			condition.ValueTo = to
			return column, condition, nil
		}
	default:
		return "", Condition{}, fmt.Errorf("invalid numeric filter %q", expression)
	}
	number, err := parseNumber(expression, value)
	if err != nil {
		return "", Condition{}, err
	}
	condition.Value = number
	return column, condition, nil
}

// ParseSort parses "column:asc" or "column:desc". The direction defaults to
// desc.
func ParseSort(expression string) (ColumnSort, error) {
	column, direction, found := strings.Cut(strings.TrimSpace(expression), ":")
	column = strings.TrimSpace(column)
	if column == "" {
		return ColumnSort{}, fmt.Errorf("invalid sort %q: column is required", expression)
	}
	if !found {
		return ColumnSort{Column: column, Direction: Desc}, nil
	}
	switch Direction(strings.ToLower(strings.TrimSpace(direction))) {
	case Asc:
		return ColumnSort{Column: column, Direction: Asc}, nil
	case Desc:
		return ColumnSort{Column: column, Direction: Desc}, nil
	default:
		return ColumnSort{}, fmt.Errorf("invalid sort %q: direction must be asc or desc", expression)
	}
}

func parseNumber(expression string, value string) (float64, error) {
	number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, fmt.Errorf("invalid filter %q: %q is not a finite number", expression, value)
	}
	return number, nil
}

func splitValues(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
