package metrics

import "strings"

// Family groups platform-generated metric keys that share a formula shape,
// e.g. conversions_purchase and conversions_lead.
type Family string

const (
	FamilyNone            Family = ""
	FamilyConversions     Family = "conversions"
	FamilyConversionValue Family = "conversion_value"
	FamilyCostPerResult   Family = "cost_per_result"
	FamilyCostPerAction   Family = "cost_per_action"
	FamilyROAS            Family = "roas"
	FamilyConversionRate  Family = "conversion_rate"
	FamilyVideo           Family = "video"
	FamilyCRM             Family = "crm"
)

const (
	PrefixConversions     = "conversions_"
	PrefixConversionValue = "conversion_value_"
	PrefixCostPerResult   = "cost_per_result_"
	PrefixCostPerAction   = "cost_per_action_"
	PrefixROAS            = "roas_"
	PrefixConversionRate  = "conversion_rate_"
	PrefixVideo           = "video_"
	PrefixCRM             = "crm_"
)

type familyPattern struct {
	prefix string
	family Family
}

var familyPatterns = []familyPattern{
	{prefix: PrefixConversions, family: FamilyConversions},
	{prefix: PrefixConversionValue, family: FamilyConversionValue},
	{prefix: PrefixCostPerResult, family: FamilyCostPerResult},
	{prefix: PrefixCostPerAction, family: FamilyCostPerAction},
	{prefix: PrefixROAS, family: FamilyROAS},
	{prefix: PrefixConversionRate, family: FamilyConversionRate},
	{prefix: PrefixVideo, family: FamilyVideo},
	{prefix: PrefixCRM, family: FamilyCRM},
}

// ResolveFamily returns the family of a dynamic key by longest matching prefix
// together with the remaining suffix (the action type).
func ResolveFamily(key string) (Family, string) {
	best := familyPattern{}
	for _, pattern := range familyPatterns {
		if !strings.HasPrefix(key, pattern.prefix) {
			continue
		}
		if len(pattern.prefix) > len(best.prefix) {
			best = pattern
		}
	}
	if best.prefix == "" {
		return FamilyNone, ""
	}
	suffix := strings.TrimPrefix(key, best.prefix)
	if suffix == "" {
		return FamilyNone, ""
	}
	return best.family, suffix
}

func familyFormula(family Family, suffix string) Formula {
	switch family {
	case FamilyCostPerResult, FamilyCostPerAction:
		return ratioFormula(KeySpend, PrefixConversions+suffix, 1)
	case FamilyROAS:
		return ratioFormula(PrefixConversionValue+suffix, KeySpend, 1)
	case FamilyConversionRate:
		return ratioFormula(PrefixConversions+suffix, KeyClicks, 100)
	default:
		return sumFormula()
	}
}
