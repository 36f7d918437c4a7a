package models

// TransCode is the transaction type code, matching the Robinhood CSV export format.
type TransCode string

const (
	TransCodeBuy  TransCode = "Buy"
	TransCodeSell TransCode = "Sell"
	// Options transaction codes
	TransCodeSTO   TransCode = "STO"   // Sell to Open
	TransCodeBTC   TransCode = "BTC"   // Buy to Close
	TransCodeBTO   TransCode = "BTO"   // Buy to Open
	TransCodeSTC   TransCode = "STC"   // Sell to Close
	TransCodeOEXP  TransCode = "OEXP"  // Option Expiration
	TransCodeOASGN TransCode = "OASGN" // Option Assignment
)

// IsOpen reports whether the code opens a new lot.
func (c TransCode) IsOpen() bool {
	return c == TransCodeBuy || c == TransCodeBTO || c == TransCodeSTO
}

// IsClose reports whether the code consumes existing lots.
func (c TransCode) IsClose() bool {
	return c == TransCodeSell || c == TransCodeSTC || c == TransCodeBTC ||
		c == TransCodeOEXP || c == TransCodeOASGN
}

// AssetType distinguishes stock lots from option lots. Lots are matched only
// within their own asset type, never across the partition.
type AssetType string

const (
	AssetTypeStock  AssetType = "stock"
	AssetTypeOption AssetType = "option"
)

// FilingStatus is the IRS filing status used for tax bracket determination.
type FilingStatus string

const (
	FilingSingle                  FilingStatus = "single"
	FilingMarriedFilingJointly    FilingStatus = "married_filing_jointly"
	FilingMarriedFilingSeparately FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold         FilingStatus = "head_of_household"
)

// Valid reports whether the status is one of the four recognized IRS statuses.
func (s FilingStatus) Valid() bool {
	switch s {
	case FilingSingle, FilingMarriedFilingJointly, FilingMarriedFilingSeparately, FilingHeadOfHousehold:
		return true
	}
	return false
}

// Transaction is a single brokerage transaction. Ordering by ActivityDate
// defines causality for lot matching; ties are broken by input order.
type Transaction struct {
	ActivityDate Date      `json:"activity_date"`
	ProcessDate  *Date     `json:"process_date,omitempty"`
	SettleDate   *Date     `json:"settle_date,omitempty"`
	Instrument   string    `json:"instrument"`
	Description  string    `json:"description"`
	TransCode    TransCode `json:"trans_code"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"` // Total dollar amount (negative for buys)
	AssetType    AssetType `json:"asset_type"`
}

// TaxLot is an individual purchase batch of a security, tracked separately
// for cost-basis and holding-period purposes. Remaining quantity only ever
// decreases; cost basis per share only increases (wash-sale adjustments).
type TaxLot struct {
	Symbol            string  `json:"symbol"`
	Quantity          float64 `json:"quantity"`
	OriginalQuantity  float64 `json:"original_quantity"`
	CostBasisPerShare float64 `json:"cost_basis_per_share"`
	TotalCostBasis    float64 `json:"total_cost_basis"`
	PurchaseDate      Date    `json:"purchase_date"`

	CurrentPrice *float64  `json:"current_price"`
	AssetType    AssetType `json:"asset_type"`

	// Computed fields populated during analysis
	UnrealizedPNL      *float64 `json:"unrealized_pnl"`
	UnrealizedPNLPct   *float64 `json:"unrealized_pnl_pct"`
	HoldingPeriodDays  int      `json:"holding_period_days"`
	IsLongTerm         bool     `json:"is_long_term"`
	WashSaleDisallowed float64  `json:"wash_sale_disallowed"`

	// Quantity of this lot already consumed as replacement shares for
	// earlier loss sales. Tracked separately from quantity consumed by
	// sales so the same lot can absorb disallowed losses from multiple
	// sales up to its original size.
	WashAbsorbedQuantity float64 `json:"-"`
}

// Open reports whether the lot still has unsold shares.
func (l *TaxLot) Open() bool {
	return l.Quantity > 0
}

// LotClosure records one matched (sale, lot) pair produced while closing lots.
// A sale that crosses several lots produces one closure per consumed lot.
type LotClosure struct {
	Symbol            string    `json:"symbol"`
	AssetType         AssetType `json:"asset_type"`
	SaleDate          Date      `json:"sale_date"`
	PurchaseDate      Date      `json:"purchase_date"`
	Quantity          float64   `json:"quantity"`
	SalePrice         float64   `json:"sale_price"`
	CostBasisPerShare float64   `json:"cost_basis_per_share"`
	Proceeds          float64   `json:"proceeds"`
	CostBasis         float64   `json:"cost_basis"`
	RealizedGain      float64   `json:"realized_gain"` // negative for losses
}

// Loss returns the realized loss as a positive number, or 0 for gains.
func (c LotClosure) Loss() float64 {
	if c.RealizedGain < 0 {
		return -c.RealizedGain
	}
	return 0
}
