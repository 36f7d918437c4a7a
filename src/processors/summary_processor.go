package processors

import (
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/utils"
)

// BuildSummary reduces positions, suggestions and flags into the scalar
// totals shown on the dashboard cards. Pure fold, no error conditions.
func BuildSummary(positions []models.Position, suggestions []models.HarvestingSuggestion, flags []models.WashSaleFlag) models.PortfolioSummary {
	var marketValue, costBasis, unrealizedPNL float64
	lotsWithLosses, lotsWithGains := 0, 0

	for _, pos := range positions {
		costBasis += pos.TotalCostBasis
		if pos.MarketValue != nil {
			marketValue += *pos.MarketValue
		}
		if pos.UnrealizedPNL != nil {
			unrealizedPNL += *pos.UnrealizedPNL
		}
		for _, lot := range pos.TaxLots {
			if lot.UnrealizedPNL == nil {
				continue
			}
			switch {
			case *lot.UnrealizedPNL < 0:
				lotsWithLosses++
			case *lot.UnrealizedPNL > 0:
				lotsWithGains++
			}
		}
	}

	var pnlPct float64
	if costBasis > 0 {
		pnlPct = utils.Round2(unrealizedPNL / costBasis * 100)
	}

	var harvestable, taxSavings float64
	for _, s := range suggestions {
		harvestable += s.EstimatedLoss
		taxSavings += s.TaxSavingsEstimate
	}

	return models.PortfolioSummary{
		TotalMarketValue:       utils.Round2(marketValue),
		TotalCostBasis:         utils.Round2(costBasis),
		TotalUnrealizedPNL:     utils.Round2(unrealizedPNL),
		TotalUnrealizedPNLPct:  pnlPct,
		TotalHarvestableLosses: utils.Round2(harvestable),
		EstimatedTaxSavings:    utils.Round2(taxSavings),
		PositionsCount:         len(positions),
		LotsWithLosses:         lotsWithLosses,
		LotsWithGains:          lotsWithGains,
		WashSaleFlagsCount:     len(flags),
	}
}
