package processors

import (
	"sort"

	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/utils"
)

// LongTermHoldingDays is the holding period at which a lot qualifies for
// long-term capital gains treatment.
const LongTermHoldingDays = 365

// PositionProcessor computes per-lot metrics and folds open lots into
// per-symbol position views.
type PositionProcessor struct{}

func NewPositionProcessor() *PositionProcessor { return &PositionProcessor{} }

// ComputeLotMetrics fills in current price, unrealized P&L, holding period
// and long-term status on each lot. A missing price leaves the P&L fields
// nil rather than zero so "no data" stays distinguishable from "breakeven".
func (p *PositionProcessor) ComputeLotMetrics(lots []*models.TaxLot, prices map[string]*float64, asOf models.Date) {
	for _, lot := range lots {
		if quote, ok := prices[lot.Symbol]; ok && quote != nil {
			price := *quote
			lot.CurrentPrice = &price

			pnl := utils.Round2((price - lot.CostBasisPerShare) * lot.Quantity)
			lot.UnrealizedPNL = &pnl

			var pct float64
			if lot.TotalCostBasis > 0 {
				pct = utils.Round2(pnl / lot.TotalCostBasis * 100)
			}
			lot.UnrealizedPNLPct = &pct
		}

		lot.HoldingPeriodDays = lot.PurchaseDate.DaysUntil(asOf)
		lot.IsLongTerm = lot.HoldingPeriodDays >= LongTermHoldingDays
	}
}

// Aggregate groups open lots by symbol into positions. The position quantity
// is always the sum of its constituent lot quantities; holding period runs
// from the earliest open lot. Wash-sale risk is set when any lot carries a
// basis adjustment or sits inside an active 61-day window relative to asOf.
func (p *PositionProcessor) Aggregate(openLots []*models.TaxLot, asOf models.Date) []models.Position {
	bySymbol := make(map[string][]*models.TaxLot)
	var order []string
	for _, lot := range openLots {
		if _, seen := bySymbol[lot.Symbol]; !seen {
			order = append(order, lot.Symbol)
		}
		bySymbol[lot.Symbol] = append(bySymbol[lot.Symbol], lot)
	}
	sort.Strings(order)

	windowStart := asOf.AddDays(-WashSaleWindowDays)

	positions := make([]models.Position, 0, len(order))
	for _, symbol := range order {
		lots := bySymbol[symbol]

		var totalQty, totalCost, weightedCost float64
		earliest := lots[0].PurchaseDate
		washRisk := false
		for _, lot := range lots {
			totalQty += lot.Quantity
			totalCost += lot.TotalCostBasis
			weightedCost += lot.Quantity * lot.CostBasisPerShare
			if lot.PurchaseDate.Before(earliest.Time) {
				earliest = lot.PurchaseDate
			}
			if lot.WashSaleDisallowed > 0 {
				washRisk = true
			}
			if !lot.PurchaseDate.Before(windowStart.Time) && !lot.PurchaseDate.After(asOf.Time) {
				washRisk = true
			}
		}

		var avgCost float64
		if totalQty > 0 {
			avgCost = utils.Round2(weightedCost / totalQty)
		}

		pos := models.Position{
			Symbol:               symbol,
			Quantity:             totalQty,
			AvgCostBasis:         avgCost,
			TotalCostBasis:       utils.Round2(totalCost),
			EarliestPurchaseDate: earliest,
			HoldingPeriodDays:    earliest.DaysUntil(asOf),
			AssetType:            lots[0].AssetType,
			TaxLots:              lots,
			WashSaleRisk:         washRisk,
		}
		pos.IsLongTerm = pos.HoldingPeriodDays >= LongTermHoldingDays

		// All lots of a symbol share one quote; take it from the first lot
		// that has one.
		for _, lot := range lots {
			if lot.CurrentPrice != nil {
				price := *lot.CurrentPrice
				pos.CurrentPrice = &price
				break
			}
		}

		if pos.CurrentPrice != nil {
			mv := utils.Round2(*pos.CurrentPrice * totalQty)
			pos.MarketValue = &mv

			var pnl float64
			for _, lot := range lots {
				if lot.UnrealizedPNL != nil {
					pnl += *lot.UnrealizedPNL
				}
			}
			pnl = utils.Round2(pnl)
			pos.UnrealizedPNL = &pnl

			var pct float64
			if totalCost > 0 {
				pct = utils.Round2(pnl / totalCost * 100)
			}
			pos.UnrealizedPNLPct = &pct
		}

		positions = append(positions, pos)
	}

	return positions
}
