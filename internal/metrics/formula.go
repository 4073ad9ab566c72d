package metrics

type Kind int

const (
	KindSum Kind = iota
	KindCalculated
)

func (k Kind) String() string {
	switch k {
	case KindSum:
		return "sum"
	case KindCalculated:
		return "calculated"
	default:
		return "unknown"
	}
}

// Formula describes how a metric behaves under aggregation. Calculated
// formulas are evaluated once on summed dependencies, never summed themselves.
type Formula struct {
	Kind         Kind
	Numerator    string
	Denominator  string
	Multiplier   float64
	Dependencies []string
}

func sumFormula() Formula {
	return Formula{Kind: KindSum}
}

func ratioFormula(numerator string, denominator string, multiplier float64) Formula {
	return Formula{
		Kind:         KindCalculated,
		Numerator:    numerator,
		Denominator:  denominator,
		Multiplier:   multiplier,
		Dependencies: []string{numerator, denominator},
	}
}

const (
	KeyImpressions      = "impressions"
	KeyReach            = "reach"
	KeyClicks           = "clicks"
	KeySpend            = "spend"
	KeyInlineLinkClicks = "inline_link_clicks"
	KeyOutboundClicks   = "outbound_clicks"
	KeyLandingPageViews = "landing_page_views"
	KeyPurchases        = "purchases"
	KeyPurchaseValue    = "purchase_value"
	KeyLeads            = "leads"
	KeyResults          = "results"
	KeyVideo3sViews     = "video_3s_views"
	KeyThruplays        = "thruplays"
	KeyCRMLeads         = "crm_leads"
	KeyCRMDeals         = "crm_deals"
	KeyCRMRevenue       = "crm_revenue"

	KeyCTR                    = "ctr"
	KeyCPC                    = "cpc"
	KeyCPM                    = "cpm"
	KeyFrequency              = "frequency"
	KeyLinkCTR                = "link_ctr"
	KeyCostPerLinkClick       = "cost_per_link_click"
	KeyOutboundCTR            = "outbound_ctr"
	KeyCostPerLandingPageView = "cost_per_landing_page_view"
	KeyROAS                   = "roas"
	KeyCostPerPurchase        = "cost_per_purchase"
	KeyCostPerLead            = "cost_per_lead"
	KeyConversionRate         = "conversion_rate"
	KeyCostPerResult          = "cost_per_result"
	KeyHookRate               = "hook_rate"
	KeyHoldRate               = "hold_rate"
	KeyCRMCloseRate           = "crm_close_rate"
	KeyCRMCostPerDeal         = "crm_cost_per_deal"
	KeyCRMROAS                = "crm_roas"
)

var staticFormulas = map[string]Formula{
	KeyImpressions:      sumFormula(),
	KeyReach:            sumFormula(),
	KeyClicks:           sumFormula(),
	KeySpend:            sumFormula(),
	KeyInlineLinkClicks: sumFormula(),
	KeyOutboundClicks:   sumFormula(),
	KeyLandingPageViews: sumFormula(),
	KeyPurchases:        sumFormula(),
	KeyPurchaseValue:    sumFormula(),
	KeyLeads:            sumFormula(),
	KeyResults:          sumFormula(),
	KeyVideo3sViews:     sumFormula(),
	KeyThruplays:        sumFormula(),
	KeyCRMLeads:         sumFormula(),
	KeyCRMDeals:         sumFormula(),
	KeyCRMRevenue:       sumFormula(),

	KeyCTR:                    ratioFormula(KeyClicks, KeyImpressions, 100),
	KeyCPC:                    ratioFormula(KeySpend, KeyClicks, 1),
	KeyCPM:                    ratioFormula(KeySpend, KeyImpressions, 1000),
	KeyFrequency:              ratioFormula(KeyImpressions, KeyReach, 1),
	KeyLinkCTR:                ratioFormula(KeyInlineLinkClicks, KeyImpressions, 100),
	KeyCostPerLinkClick:       ratioFormula(KeySpend, KeyInlineLinkClicks, 1),
	KeyOutboundCTR:            ratioFormula(KeyOutboundClicks, KeyImpressions, 100),
	KeyCostPerLandingPageView: ratioFormula(KeySpend, KeyLandingPageViews, 1),
	KeyROAS:                   ratioFormula(KeyPurchaseValue, KeySpend, 1),
	KeyCostPerPurchase:        ratioFormula(KeySpend, KeyPurchases, 1),
	KeyCostPerLead:            ratioFormula(KeySpend, KeyLeads, 1),
	KeyConversionRate:         ratioFormula(KeyPurchases, KeyClicks, 100),
	KeyCostPerResult:          ratioFormula(KeySpend, KeyResults, 1),
	KeyHookRate:               ratioFormula(KeyVideo3sViews, KeyImpressions, 100),
	KeyHoldRate:               ratioFormula(KeyThruplays, KeyVideo3sViews, 100),
	KeyCRMCloseRate:           ratioFormula(KeyCRMDeals, KeyCRMLeads, 100),
	KeyCRMCostPerDeal:         ratioFormula(KeySpend, KeyCRMDeals, 1),
	KeyCRMROAS:                ratioFormula(KeyCRMRevenue, KeySpend, 1),
}
