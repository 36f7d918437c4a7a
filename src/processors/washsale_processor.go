package processors

import (
	"fmt"

	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/utils"
)

// WashSaleWindowDays is the reach of the wash-sale window on each side of a
// loss sale (IRC §1091): 30 days before through 30 days after.
const WashSaleWindowDays = 30

// WashSaleProcessor detects wash sales among realized closures and adjusts
// the cost basis of matched repurchase lots. Holding periods are not
// extended, only basis is adjusted (documented simplification).
type WashSaleProcessor struct{}

func NewWashSaleProcessor() *WashSaleProcessor { return &WashSaleProcessor{} }

// Detect scans every loss closure for same-symbol lot openings inside the
// 61-day window around the sale, excluding the sale date itself. Qualifying
// repurchases are consumed in chronological order; each matched pairing
// produces one flag and bumps the repurchase lot's basis by the disallowed
// loss. A lot's capacity to absorb disallowed losses is its original size
// minus what it already absorbed, independent of how much of it was sold.
func (p *WashSaleProcessor) Detect(closures []models.LotClosure, lots []*models.TaxLot) []models.WashSaleFlag {
	lotsBySymbol := make(map[lotKey][]*models.TaxLot)
	for _, lot := range lots {
		key := lotKey{symbol: lot.Symbol, assetType: lot.AssetType}
		lotsBySymbol[key] = append(lotsBySymbol[key], lot)
	}

	var flags []models.WashSaleFlag

	for _, closure := range closures {
		saleLoss := closure.Loss()
		if saleLoss <= 0 || closure.Quantity <= 0 {
			continue
		}

		windowStart := closure.SaleDate.AddDays(-WashSaleWindowDays)
		windowEnd := closure.SaleDate.AddDays(WashSaleWindowDays)

		remaining := closure.Quantity
		key := lotKey{symbol: closure.Symbol, assetType: closure.AssetType}
		for _, lot := range lotsBySymbol[key] {
			if remaining <= 0 {
				break
			}
			if lot.PurchaseDate.Before(windowStart.Time) || lot.PurchaseDate.After(windowEnd.Time) {
				continue
			}
			if lot.PurchaseDate.Equal(closure.SaleDate.Time) {
				continue
			}
			capacity := lot.OriginalQuantity - lot.WashAbsorbedQuantity
			if capacity <= 0 {
				continue
			}

			matched := min(capacity, remaining)
			disallowed := saleLoss * (matched / closure.Quantity)

			lot.WashAbsorbedQuantity += matched
			lot.WashSaleDisallowed = utils.Round2(lot.WashSaleDisallowed + disallowed)
			lot.CostBasisPerShare = utils.Round2(lot.CostBasisPerShare + disallowed/matched)
			lot.TotalCostBasis = utils.Round2(lot.CostBasisPerShare * lot.Quantity)

			flags = append(flags, models.WashSaleFlag{
				Symbol:             closure.Symbol,
				SaleDate:           closure.SaleDate,
				SaleQuantity:       closure.Quantity,
				SaleLoss:           utils.Round2(saleLoss),
				RepurchaseDate:     lot.PurchaseDate,
				RepurchaseQuantity: matched,
				DisallowedLoss:     utils.Round2(disallowed),
				AdjustedCostBasis:  lot.CostBasisPerShare,
				Explanation:        buildWashSaleExplanation(closure, lot.PurchaseDate, matched, saleLoss, disallowed),
			})

			logger.L.Info("Wash sale detected, cost basis adjusted",
				"symbol", closure.Symbol,
				"saleDate", closure.SaleDate.String(),
				"repurchaseDate", lot.PurchaseDate.String(),
				"disallowedLoss", utils.Round2(disallowed))

			remaining -= matched
		}
	}

	return flags
}

// buildWashSaleExplanation phrases the flag with correct chronological
// language depending on whether the repurchase preceded or followed the sale.
func buildWashSaleExplanation(closure models.LotClosure, repurchaseDate models.Date, matched, loss, disallowed float64) string {
	if repurchaseDate.Before(closure.SaleDate.Time) {
		return fmt.Sprintf(
			"Wash sale: Bought %g %s on %s, then sold %g shares at a loss of $%.2f on %s "+
				"(within 30 days of the purchase). $%.2f of the loss is disallowed and added "+
				"to the cost basis of the replacement shares.",
			matched, closure.Symbol, repurchaseDate, closure.Quantity, loss, closure.SaleDate, disallowed)
	}
	return fmt.Sprintf(
		"Wash sale: Sold %g %s on %s at a loss of $%.2f, then repurchased %g shares on %s "+
			"(within 30 days of the sale). $%.2f of the loss is disallowed and added to the "+
			"cost basis of the replacement shares.",
		closure.Quantity, closure.Symbol, closure.SaleDate, loss, matched, repurchaseDate, disallowed)
}

// ProspectiveRisk checks whether selling the symbol on asOf would fall inside
// a wash-sale window because of a purchase in the prior 30 days. Used by the
// suggestion engine before recommending a harvest.
func (p *WashSaleProcessor) ProspectiveRisk(symbol string, lots []*models.TaxLot, asOf models.Date) (bool, string) {
	windowStart := asOf.AddDays(-WashSaleWindowDays)

	var latest *models.TaxLot
	for _, lot := range lots {
		if lot.Symbol != symbol {
			continue
		}
		if lot.PurchaseDate.Before(windowStart.Time) || lot.PurchaseDate.After(asOf.Time) {
			continue
		}
		if latest == nil || lot.PurchaseDate.After(latest.PurchaseDate.Time) {
			latest = lot
		}
	}

	if latest == nil {
		return false, ""
	}

	daysAgo := latest.PurchaseDate.DaysUntil(asOf)
	return true, fmt.Sprintf(
		"Wash-sale risk: %s was purchased %d day(s) ago on %s. Selling now and repurchasing "+
			"within 30 days would trigger a wash sale, disallowing the loss deduction. "+
			"Consider waiting until %s to avoid this.",
		symbol, daysAgo, latest.PurchaseDate, latest.PurchaseDate.AddDays(WashSaleWindowDays+1))
}
