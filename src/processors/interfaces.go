package processors

import (
	"github.com/username/optionstaxhub/backend/src/models"
)

// LotSelection is one slice of an open lot consumed by a closing transaction.
type LotSelection struct {
	Lot      *models.TaxLot
	Quantity float64
}

// LotSelectionStrategy decides which open lots a closing transaction consumes
// and in what order. The engine ships FIFO; specific-lot identification can be
// plugged in without touching the builder.
type LotSelectionStrategy interface {
	SelectLotsToClose(openLots []*models.TaxLot, quantity float64) []LotSelection
}

// LotResult is the output of building lots from a transaction stream.
// Lots holds every lot ever opened, in chronological open order; closed lots
// are retained for history with Quantity 0.
type LotResult struct {
	Lots     []*models.TaxLot
	Closures []models.LotClosure
	Warnings []string
}

// OpenLots returns the lots that still hold shares.
func (r *LotResult) OpenLots() []*models.TaxLot {
	var open []*models.TaxLot
	for _, lot := range r.Lots {
		if lot.Open() {
			open = append(open, lot)
		}
	}
	return open
}

// LotBuilder converts a chronological transaction stream into tax lots.
type LotBuilder interface {
	BuildLots(transactions []models.Transaction) *LotResult
}

// WashSaleDetector scans loss closures for in-window repurchases and adjusts
// the matched repurchase lots' cost basis.
type WashSaleDetector interface {
	Detect(closures []models.LotClosure, lots []*models.TaxLot) []models.WashSaleFlag
	ProspectiveRisk(symbol string, lots []*models.TaxLot, asOf models.Date) (bool, string)
}

// PositionAggregator folds open lots per symbol into position views.
type PositionAggregator interface {
	ComputeLotMetrics(lots []*models.TaxLot, prices map[string]*float64, asOf models.Date)
	Aggregate(openLots []*models.TaxLot, asOf models.Date) []models.Position
}
