package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/optionstaxhub/backend/src/models"
)

func price(v float64) *float64 { return &v }

func TestComputeLotMetricsLongTermBoundary(t *testing.T) {
	asOf := day(2026, 1, 15)

	tests := []struct {
		name         string
		purchaseDate models.Date
		wantDays     int
		wantLongTerm bool
	}{
		{"364 days is short-term", asOf.AddDays(-364), 364, false},
		{"365 days is long-term", asOf.AddDays(-365), 365, true},
		{"366 days is long-term", asOf.AddDays(-366), 366, true},
		{"same day", asOf, 0, false},
	}

	p := NewPositionProcessor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := stockLot("AAPL", tt.purchaseDate, 10, 100)
			p.ComputeLotMetrics([]*models.TaxLot{lot}, nil, asOf)
			assert.Equal(t, tt.wantDays, lot.HoldingPeriodDays)
			assert.Equal(t, tt.wantLongTerm, lot.IsLongTerm)
		})
	}
}

func TestComputeLotMetricsPNL(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lot := stockLot("MSFT", day(2025, 1, 1), 100, 10)
	p.ComputeLotMetrics([]*models.TaxLot{lot}, map[string]*float64{"MSFT": price(9)}, asOf)

	require.NotNil(t, lot.CurrentPrice)
	assert.Equal(t, 9.0, *lot.CurrentPrice)
	require.NotNil(t, lot.UnrealizedPNL)
	assert.Equal(t, -100.0, *lot.UnrealizedPNL)
	require.NotNil(t, lot.UnrealizedPNLPct)
	assert.Equal(t, -10.0, *lot.UnrealizedPNLPct)
}

func TestComputeLotMetricsMissingPriceStaysNil(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lot := stockLot("OBSCURE", day(2025, 1, 1), 100, 10)
	p.ComputeLotMetrics([]*models.TaxLot{lot}, map[string]*float64{}, asOf)

	assert.Nil(t, lot.CurrentPrice)
	assert.Nil(t, lot.UnrealizedPNL)
	assert.Nil(t, lot.UnrealizedPNLPct)
	// Holding period is still computed without a price.
	assert.Equal(t, 151, lot.HoldingPeriodDays)
}

func TestAggregateWeightedAverage(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lots := []*models.TaxLot{
		stockLot("AAPL", day(2024, 1, 10), 100, 10),
		stockLot("AAPL", day(2025, 3, 1), 50, 16),
	}
	p.ComputeLotMetrics(lots, map[string]*float64{"AAPL": price(12)}, asOf)

	positions := p.Aggregate(lots, asOf)

	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, 150.0, pos.Quantity)
	assert.Equal(t, 12.0, pos.AvgCostBasis)
	assert.Equal(t, 1800.0, pos.TotalCostBasis)
	assert.Equal(t, day(2024, 1, 10), pos.EarliestPurchaseDate)
	assert.True(t, pos.IsLongTerm)
	require.NotNil(t, pos.MarketValue)
	assert.Equal(t, 1800.0, *pos.MarketValue)
	require.NotNil(t, pos.UnrealizedPNL)
	assert.Equal(t, 0.0, *pos.UnrealizedPNL)
	require.Len(t, pos.TaxLots, 2)
}

func TestAggregateMissingPriceKeepsNilMarketValue(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lots := []*models.TaxLot{stockLot("THINLY", day(2025, 1, 1), 10, 50)}
	p.ComputeLotMetrics(lots, nil, asOf)

	positions := p.Aggregate(lots, asOf)

	require.Len(t, positions, 1)
	assert.Nil(t, positions[0].CurrentPrice)
	assert.Nil(t, positions[0].MarketValue)
	assert.Nil(t, positions[0].UnrealizedPNL)
	assert.Nil(t, positions[0].UnrealizedPNLPct)
	assert.Equal(t, 500.0, positions[0].TotalCostBasis)
}

func TestAggregateSortsSymbols(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lots := []*models.TaxLot{
		stockLot("MSFT", day(2025, 1, 1), 10, 100),
		stockLot("AAPL", day(2025, 1, 1), 10, 100),
		stockLot("GOOGL", day(2025, 1, 1), 10, 100),
	}
	positions := p.Aggregate(lots, asOf)

	require.Len(t, positions, 3)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, "GOOGL", positions[1].Symbol)
	assert.Equal(t, "MSFT", positions[2].Symbol)
}

func TestAggregateWashSaleRisk(t *testing.T) {
	asOf := day(2025, 6, 1)
	p := NewPositionProcessor()

	tests := []struct {
		name     string
		lot      *models.TaxLot
		wantRisk bool
	}{
		{"recent purchase inside window", stockLot("AAPL", asOf.AddDays(-10), 10, 100), true},
		{"old purchase outside window", stockLot("AAPL", asOf.AddDays(-45), 10, 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positions := p.Aggregate([]*models.TaxLot{tt.lot}, asOf)
			require.Len(t, positions, 1)
			assert.Equal(t, tt.wantRisk, positions[0].WashSaleRisk)
		})
	}
}

func TestAggregateAdjustedBasisMarksRisk(t *testing.T) {
	asOf := day(2025, 6, 1)
	p := NewPositionProcessor()

	lot := stockLot("TSLA", asOf.AddDays(-100), 10, 100)
	lot.WashSaleDisallowed = 250

	positions := p.Aggregate([]*models.TaxLot{lot}, asOf)

	require.Len(t, positions, 1)
	assert.True(t, positions[0].WashSaleRisk)
}

func TestBuildSummary(t *testing.T) {
	p := NewPositionProcessor()
	asOf := day(2025, 6, 1)

	lots := []*models.TaxLot{
		stockLot("AAPL", day(2025, 1, 1), 100, 10), // loses 100
		stockLot("MSFT", day(2025, 1, 1), 10, 100), // gains 200
	}
	p.ComputeLotMetrics(lots, map[string]*float64{
		"AAPL": price(9),
		"MSFT": price(120),
	}, asOf)
	positions := p.Aggregate(lots, asOf)

	suggestions := []models.HarvestingSuggestion{
		{Symbol: "AAPL", EstimatedLoss: 100, TaxSavingsEstimate: 22},
	}
	flags := []models.WashSaleFlag{{Symbol: "AAPL"}}

	summary := BuildSummary(positions, suggestions, flags)

	assert.Equal(t, 2100.0, summary.TotalMarketValue)
	assert.Equal(t, 2000.0, summary.TotalCostBasis)
	assert.Equal(t, 100.0, summary.TotalUnrealizedPNL)
	assert.Equal(t, 5.0, summary.TotalUnrealizedPNLPct)
	assert.Equal(t, 100.0, summary.TotalHarvestableLosses)
	assert.Equal(t, 22.0, summary.EstimatedTaxSavings)
	assert.Equal(t, 2, summary.PositionsCount)
	assert.Equal(t, 1, summary.LotsWithLosses)
	assert.Equal(t, 1, summary.LotsWithGains)
	assert.Equal(t, 1, summary.WashSaleFlagsCount)
}
