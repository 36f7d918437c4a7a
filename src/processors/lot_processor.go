package processors

import (
	"fmt"
	"sort"

	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/utils"
)

// FIFOStrategy consumes open lots earliest purchase first. This is the
// default lot identification method for the engine.
type FIFOStrategy struct{}

func (FIFOStrategy) SelectLotsToClose(openLots []*models.TaxLot, quantity float64) []LotSelection {
	var selections []LotSelection
	remaining := quantity
	for _, lot := range openLots {
		if remaining <= 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}
		matched := min(lot.Quantity, remaining)
		selections = append(selections, LotSelection{Lot: lot, Quantity: matched})
		remaining -= matched
	}
	return selections
}

// LotProcessor builds tax lots from a transaction stream. Buys open lots;
// sells consume them via the configured selection strategy. Stock and option
// lots of the same underlying are partitioned and never matched against each
// other.
type LotProcessor struct {
	strategy LotSelectionStrategy
}

func NewLotProcessor(strategy LotSelectionStrategy) *LotProcessor {
	if strategy == nil {
		strategy = FIFOStrategy{}
	}
	return &LotProcessor{strategy: strategy}
}

// lotKey partitions lots by symbol and asset type.
type lotKey struct {
	symbol    string
	assetType models.AssetType
}

// BuildLots processes transactions in trade-date order (input order breaks
// ties) and returns every opened lot plus the closures recorded while
// consuming them. The input slice is never modified.
func (p *LotProcessor) BuildLots(transactions []models.Transaction) *LotResult {
	result := &LotResult{}

	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ActivityDate.Before(sorted[j].ActivityDate.Time)
	})

	openLots := make(map[lotKey][]*models.TaxLot)

	for _, txn := range sorted {
		key := lotKey{symbol: txn.Instrument, assetType: txn.AssetType}

		switch {
		case txn.TransCode.IsOpen():
			lot := &models.TaxLot{
				Symbol:            txn.Instrument,
				Quantity:          txn.Quantity,
				OriginalQuantity:  txn.Quantity,
				CostBasisPerShare: txn.Price,
				TotalCostBasis:    utils.Round2(txn.Price * txn.Quantity),
				PurchaseDate:      txn.ActivityDate,
				AssetType:         txn.AssetType,
			}
			openLots[key] = append(openLots[key], lot)
			result.Lots = append(result.Lots, lot)

		case txn.TransCode.IsClose():
			p.closeLots(openLots, key, txn, result)
		}
	}

	return result
}

// closeLots consumes open lots for one closing transaction. Option
// expirations and assignments close at price zero (the position ends with no
// proceeds). An oversell is a data-quality warning, not an error: whatever is
// available is matched and the excess is ignored.
func (p *LotProcessor) closeLots(openLots map[lotKey][]*models.TaxLot, key lotKey, txn models.Transaction, result *LotResult) {
	available := openLots[key]
	if len(available) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Sell of %g %s on %s but no open lots found (short sale or prior history not in export)",
			txn.Quantity, txn.Instrument, txn.ActivityDate))
		return
	}

	closePrice := txn.Price
	if txn.TransCode == models.TransCodeOEXP || txn.TransCode == models.TransCodeOASGN {
		closePrice = 0
	}

	selections := p.strategy.SelectLotsToClose(available, txn.Quantity)

	var matchedTotal float64
	for _, sel := range selections {
		lot := sel.Lot
		matched := sel.Quantity
		if matched > lot.Quantity {
			// The strategy asked for more than the lot holds; clamp so the
			// quantity invariant can never be violated.
			matched = lot.Quantity
		}
		matchedTotal += matched

		result.Closures = append(result.Closures, models.LotClosure{
			Symbol:            txn.Instrument,
			AssetType:         txn.AssetType,
			SaleDate:          txn.ActivityDate,
			PurchaseDate:      lot.PurchaseDate,
			Quantity:          matched,
			SalePrice:         closePrice,
			CostBasisPerShare: lot.CostBasisPerShare,
			Proceeds:          utils.Round2(closePrice * matched),
			CostBasis:         utils.Round2(lot.CostBasisPerShare * matched),
			RealizedGain:      utils.Round2((closePrice - lot.CostBasisPerShare) * matched),
		})

		lot.Quantity -= matched
		lot.TotalCostBasis = utils.Round2(lot.CostBasisPerShare * lot.Quantity)
	}

	// Drop exhausted lots from the open list, preserving order.
	remaining := available[:0]
	for _, lot := range available {
		if lot.Open() {
			remaining = append(remaining, lot)
		}
	}
	openLots[key] = remaining

	if unmatched := txn.Quantity - matchedTotal; unmatched > 1e-9 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Sell of %s on %s: %g shares could not be matched to open lots",
			txn.Instrument, txn.ActivityDate, unmatched))
	}
}
