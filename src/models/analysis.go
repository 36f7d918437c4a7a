package models

// Position is the aggregated view of all open lots for a single symbol.
// MarketValue and the P&L fields are nil (not zero) when no price is
// available, so "no data" stays distinguishable from "breakeven".
type Position struct {
	Symbol               string    `json:"symbol"`
	Quantity             float64   `json:"quantity"`
	AvgCostBasis         float64   `json:"avg_cost_basis"`
	TotalCostBasis       float64   `json:"total_cost_basis"`
	CurrentPrice         *float64  `json:"current_price"`
	MarketValue          *float64  `json:"market_value"`
	UnrealizedPNL        *float64  `json:"unrealized_pnl"`
	UnrealizedPNLPct     *float64  `json:"unrealized_pnl_pct"`
	EarliestPurchaseDate Date      `json:"earliest_purchase_date"`
	HoldingPeriodDays    int       `json:"holding_period_days"`
	IsLongTerm           bool      `json:"is_long_term"`
	AssetType            AssetType `json:"asset_type"`
	TaxLots              []*TaxLot `json:"tax_lots"`
	WashSaleRisk         bool      `json:"wash_sale_risk"`
}

// WashSaleFlag records one sale-repurchase pairing that triggers the IRS
// wash-sale rule. Never mutated after creation.
type WashSaleFlag struct {
	Symbol             string  `json:"symbol"`
	SaleDate           Date    `json:"sale_date"`
	SaleQuantity       float64 `json:"sale_quantity"`
	SaleLoss           float64 `json:"sale_loss"` // positive number
	RepurchaseDate     Date    `json:"repurchase_date"`
	RepurchaseQuantity float64 `json:"repurchase_quantity"`
	DisallowedLoss     float64 `json:"disallowed_loss"`
	AdjustedCostBasis  float64 `json:"adjusted_cost_basis"` // per share, after adjustment
	Explanation        string  `json:"explanation"`
}

// ReplacementCandidate is a suggested replacement security that keeps similar
// market exposure without being "substantially identical".
type ReplacementCandidate struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// HarvestingSuggestion is a ranked tax-loss harvesting recommendation for a
// specific loss lot. Computed fresh per analysis run; never persisted here.
type HarvestingSuggestion struct {
	Symbol                string                 `json:"symbol"`
	Action                string                 `json:"action"` // always "SELL"
	Quantity              float64                `json:"quantity"`
	CurrentPrice          *float64               `json:"current_price"`
	CostBasisPerShare     float64                `json:"cost_basis_per_share"`
	EstimatedLoss         float64                `json:"estimated_loss"` // positive magnitude
	TaxSavingsEstimate    float64                `json:"tax_savings_estimate"`
	HoldingPeriodDays     int                    `json:"holding_period_days"`
	IsLongTerm            bool                   `json:"is_long_term"`
	WashSaleRisk          bool                   `json:"wash_sale_risk"`
	WashSaleExplanation   string                 `json:"wash_sale_explanation"`
	ReplacementCandidates []ReplacementCandidate `json:"replacement_candidates"`
	AIExplanation         string                 `json:"ai_explanation"`
	AIGenerated           bool                   `json:"ai_generated"`
	Priority              int                    `json:"priority"` // 1 = highest tax benefit
}

// TaxProfile holds the filer inputs used for bracket lookups.
type TaxProfile struct {
	FilingStatus          FilingStatus `json:"filing_status"`
	EstimatedAnnualIncome float64      `json:"estimated_annual_income"`
	State                 string       `json:"state"`
	TaxYear               int          `json:"tax_year"`
}

// TaxBracket is a half-open income interval with its rate. UpTo nil means the
// bracket is unbounded.
type TaxBracket struct {
	UpTo *float64 `json:"up_to"`
	Rate float64  `json:"rate"`
}

// TaxBracketsSummary is the response for the independently queryable bracket
// lookup (GET /api/tax-brackets).
type TaxBracketsSummary struct {
	TaxYear                      int          `json:"tax_year"`
	FilingStatus                 FilingStatus `json:"filing_status"`
	OrdinaryIncomeBrackets       []TaxBracket `json:"ordinary_income_brackets"`
	LongTermCapitalGainsBrackets []TaxBracket `json:"long_term_capital_gains_brackets"`
	NIITThreshold                float64      `json:"niit_threshold"`
	NIITRate                     float64      `json:"niit_rate"`
	CapitalLossLimit             float64      `json:"capital_loss_limit"`
	MarginalOrdinaryRate         float64      `json:"marginal_ordinary_rate"`
	ApplicableLTCGRate           float64      `json:"applicable_ltcg_rate"`
}

// PortfolioSummary rolls the analysis up into scalar totals for dashboard cards.
type PortfolioSummary struct {
	TotalMarketValue       float64 `json:"total_market_value"`
	TotalCostBasis         float64 `json:"total_cost_basis"`
	TotalUnrealizedPNL     float64 `json:"total_unrealized_pnl"`
	TotalUnrealizedPNLPct  float64 `json:"total_unrealized_pnl_pct"`
	TotalHarvestableLosses float64 `json:"total_harvestable_losses"`
	EstimatedTaxSavings    float64 `json:"estimated_tax_savings"`
	PositionsCount         int     `json:"positions_count"`
	LotsWithLosses         int     `json:"lots_with_losses"`
	LotsWithGains          int     `json:"lots_with_gains"`
	WashSaleFlagsCount     int     `json:"wash_sale_flags_count"`
}

// Disclaimer is attached to every analysis response.
const Disclaimer = "This analysis is for educational and simulation purposes only. " +
	"It does not constitute financial, tax, or investment advice. " +
	"Consult a qualified tax professional before making investment decisions."

// PortfolioAnalysis is the complete engine output. Errors holds conditions
// that prevented analysis entirely; Warnings covers degraded-but-completed
// runs. The caller always receives a well-formed result object.
type PortfolioAnalysis struct {
	Positions     []Position             `json:"positions"`
	TaxLots       []*TaxLot              `json:"tax_lots"`
	Suggestions   []HarvestingSuggestion `json:"suggestions"`
	WashSaleFlags []WashSaleFlag         `json:"wash_sale_flags"`
	Summary       PortfolioSummary       `json:"summary"`
	TaxProfile    *TaxProfile            `json:"tax_profile"`
	Disclaimer    string                 `json:"disclaimer"`
	Errors        []string               `json:"errors"`
	Warnings      []string               `json:"warnings"`
}
