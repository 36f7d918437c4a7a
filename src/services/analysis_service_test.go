package services

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/parsers"
)

func TestMain(m *testing.M) {
	config.Cfg = &config.AppConfig{
		DefaultTaxYear:       2025,
		AnalysisCacheTTL:     time.Minute,
		AnalysisCacheCleanup: time.Minute,
	}
	os.Exit(m.Run())
}

type stubPriceService struct {
	prices   map[string]float64
	warnings []string
	calls    int
}

func (s *stubPriceService) GetCurrentPrices(_ context.Context, symbols []string, _ map[string]float64) (map[string]float64, []string) {
	s.calls++
	out := make(map[string]float64)
	for _, symbol := range symbols {
		if p, ok := s.prices[symbol]; ok {
			out[symbol] = p
		}
	}
	return out, s.warnings
}

func (s *stubPriceService) ClearCache() {}

type stubAdvisor struct {
	suggestions map[string]AdvisorSuggestion
	err         error
}

func (s *stubAdvisor) SuggestionsFor(context.Context, []*models.TaxLot) (map[string]AdvisorSuggestion, error) {
	return s.suggestions, s.err
}

type stubReplacements struct{}

func (stubReplacements) CandidatesFor(string) []models.ReplacementCandidate {
	return []models.ReplacementCandidate{
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", Reason: "Broad market exposure"},
	}
}

func newTestService(prices map[string]float64, advisor AdvisorService) AnalysisService {
	if advisor == nil {
		advisor = &stubAdvisor{}
	}
	return NewAnalysisService(&stubPriceService{prices: prices}, advisor, stubReplacements{})
}

func buyTxn(symbol string, d models.Date, qty, price float64) models.Transaction {
	return models.Transaction{
		ActivityDate: d,
		Instrument:   symbol,
		TransCode:    models.TransCodeBuy,
		Quantity:     qty,
		Price:        price,
		Amount:       -qty * price,
		AssetType:    models.AssetTypeStock,
	}
}

func sellTxn(symbol string, d models.Date, qty, price float64) models.Transaction {
	return models.Transaction{
		ActivityDate: d,
		Instrument:   symbol,
		TransCode:    models.TransCodeSell,
		Quantity:     qty,
		Price:        price,
		Amount:       qty * price,
		AssetType:    models.AssetTypeStock,
	}
}

func singleProfile() *models.TaxProfile {
	return &models.TaxProfile{
		FilingStatus:          models.FilingSingle,
		EstimatedAnnualIncome: 75000,
		TaxYear:               2025,
	}
}

func TestAnalyzeEmptyTransactions(t *testing.T) {
	svc := newTestService(nil, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{},
	})

	require.Equal(t, []string{"No transactions found in CSV file"}, result.Errors)
	assert.Empty(t, result.Positions)
	assert.Empty(t, result.TaxLots)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, result.WashSaleFlags)
	assert.NotEmpty(t, result.Disclaimer)
}

func TestAnalyzeDefaultProfile(t *testing.T) {
	svc := newTestService(map[string]float64{"AAPL": 150}, nil)
	asOf := models.NewDate(2025, time.November, 1)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 10, 150),
		}},
		AsOf: asOf,
	})

	require.NotNil(t, result.TaxProfile)
	assert.Equal(t, models.FilingSingle, result.TaxProfile.FilingStatus)
	assert.Equal(t, 75000.0, result.TaxProfile.EstimatedAnnualIncome)
	assert.Equal(t, 2025, result.TaxProfile.TaxYear)
	assert.Contains(t, result.Warnings, "No tax profile provided; using single filer, $75,000 income, tax year 2025")
}

func TestAnalyzeProfileNormalization(t *testing.T) {
	svc := newTestService(map[string]float64{"AAPL": 150}, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 10, 150),
		}},
		Profile: &models.TaxProfile{
			FilingStatus:          "weird",
			EstimatedAnnualIncome: -500,
			TaxYear:               2019,
		},
		AsOf: models.NewDate(2025, time.November, 1),
	})

	require.NotNil(t, result.TaxProfile)
	assert.Equal(t, models.FilingSingle, result.TaxProfile.FilingStatus)
	assert.Equal(t, 0.0, result.TaxProfile.EstimatedAnnualIncome)
	assert.Equal(t, 2025, result.TaxProfile.TaxYear)
	assert.Contains(t, result.Warnings, `Unrecognized filing status "weird"; using single`)
	assert.Contains(t, result.Warnings, "Negative estimated income; using $0")
	assert.Contains(t, result.Warnings, "tax brackets not supported for year 2019; using 2025")
}

func TestAnalyzeAllPositionsClosed(t *testing.T) {
	svc := newTestService(nil, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 10, 150),
			sellTxn("AAPL", models.NewDate(2025, time.March, 1), 10, 160),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	assert.Empty(t, result.Errors)
	assert.Contains(t, result.Warnings, "All positions are closed; nothing to harvest")
	assert.Empty(t, result.TaxLots)
	assert.Empty(t, result.Positions)
	assert.Empty(t, result.Suggestions)
	assert.Equal(t, 0, result.Summary.PositionsCount)
}

func TestAnalyzeLossLotSuggestion(t *testing.T) {
	svc := newTestService(map[string]float64{"AAPL": 140}, nil)
	asOf := models.NewDate(2025, time.November, 1)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    asOf,
	})

	assert.Empty(t, result.Errors)
	require.Len(t, result.TaxLots, 1)
	require.Len(t, result.Suggestions, 1)

	s := result.Suggestions[0]
	assert.Equal(t, "AAPL", s.Symbol)
	assert.Equal(t, "SELL", s.Action)
	assert.Equal(t, 100.0, s.Quantity)
	assert.Equal(t, 1000.0, s.EstimatedLoss)
	// short-term loss at the 22% marginal rate
	assert.Equal(t, 220.0, s.TaxSavingsEstimate)
	assert.False(t, s.IsLongTerm)
	assert.Equal(t, 1, s.Priority)
	assert.False(t, s.AIGenerated)
	require.Len(t, s.ReplacementCandidates, 1)
	assert.Equal(t, "VTI", s.ReplacementCandidates[0].Symbol)

	assert.Equal(t, 1000.0, result.Summary.TotalHarvestableLosses)
	assert.Equal(t, 220.0, result.Summary.EstimatedTaxSavings)
	assert.Equal(t, 1, result.Summary.LotsWithLosses)
}

func TestAnalyzeRankingAndPriorities(t *testing.T) {
	svc := newTestService(map[string]float64{"AAPL": 140, "MSFT": 395, "TSLA": 200}, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150), // loss 1000
			buyTxn("MSFT", models.NewDate(2025, time.January, 2), 100, 400), // loss 500
			buyTxn("TSLA", models.NewDate(2025, time.January, 2), 100, 220), // loss 2000
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	require.Len(t, result.Suggestions, 3)
	assert.Equal(t, []string{"TSLA", "AAPL", "MSFT"}, []string{
		result.Suggestions[0].Symbol, result.Suggestions[1].Symbol, result.Suggestions[2].Symbol,
	})
	for i, s := range result.Suggestions {
		assert.Equal(t, i+1, s.Priority)
	}
	assert.GreaterOrEqual(t, result.Suggestions[0].TaxSavingsEstimate, result.Suggestions[1].TaxSavingsEstimate)
	assert.GreaterOrEqual(t, result.Suggestions[1].TaxSavingsEstimate, result.Suggestions[2].TaxSavingsEstimate)
}

func TestAnalyzeGainLotsProduceNoSuggestions(t *testing.T) {
	svc := newTestService(map[string]float64{"AAPL": 160}, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	assert.Empty(t, result.Suggestions)
	assert.Equal(t, 1, result.Summary.LotsWithGains)
	assert.Equal(t, 0, result.Summary.LotsWithLosses)
}

func TestAnalyzeAdvisorErrorFallsBackToStatic(t *testing.T) {
	advisor := &stubAdvisor{err: context.DeadlineExceeded}
	svc := newTestService(map[string]float64{"AAPL": 140}, advisor)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	assert.Contains(t, result.Warnings, "AI advisor unavailable; using static replacement candidates")
	require.Len(t, result.Suggestions, 1)
	assert.False(t, result.Suggestions[0].AIGenerated)
	require.Len(t, result.Suggestions[0].ReplacementCandidates, 1)
	assert.Equal(t, "VTI", result.Suggestions[0].ReplacementCandidates[0].Symbol)
}

func TestAnalyzeAdvisorReplacementsUsedWhenPresent(t *testing.T) {
	advisor := &stubAdvisor{suggestions: map[string]AdvisorSuggestion{
		"AAPL": {
			Replacements: []models.ReplacementCandidate{
				{Symbol: "XLK", Name: "Technology Select Sector SPDR", Reason: "Sector exposure without identical holding"},
			},
			Explanation: "Harvest now, rotate into the sector fund.",
		},
	}}
	svc := newTestService(map[string]float64{"AAPL": 140}, advisor)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	require.Len(t, result.Suggestions, 1)
	s := result.Suggestions[0]
	assert.True(t, s.AIGenerated)
	assert.Equal(t, "Harvest now, rotate into the sector fund.", s.AIExplanation)
	require.Len(t, s.ReplacementCandidates, 1)
	assert.Equal(t, "XLK", s.ReplacementCandidates[0].Symbol)
}

func TestAnalyzeMissingPriceKeepsNilFields(t *testing.T) {
	priceSvc := &stubPriceService{
		prices:   map[string]float64{},
		warnings: []string{"No prices available for: XYZ"},
	}
	svc := NewAnalysisService(priceSvc, &stubAdvisor{}, stubReplacements{})

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("XYZ", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	assert.Contains(t, result.Warnings, "No prices available for: XYZ")
	require.Len(t, result.Positions, 1)
	assert.Nil(t, result.Positions[0].CurrentPrice)
	assert.Nil(t, result.Positions[0].MarketValue)
	assert.Nil(t, result.Positions[0].UnrealizedPNL)
	// unknown P&L never yields a harvesting suggestion
	assert.Empty(t, result.Suggestions)
}

func TestAnalyzeCapitalLossLimitCap(t *testing.T) {
	config.Cfg.CapLossLimitEnabled = true
	defer func() { config.Cfg.CapLossLimitEnabled = false }()

	svc := newTestService(map[string]float64{"AAPL": 150, "TSLA": 200}, nil)

	result := svc.Analyze(context.Background(), AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 175), // loss 2500
			buyTxn("TSLA", models.NewDate(2025, time.January, 2), 100, 220), // loss 2000
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	})

	require.Len(t, result.Suggestions, 2)
	aapl, tsla := result.Suggestions[0], result.Suggestions[1]
	require.Equal(t, "AAPL", aapl.Symbol)
	require.Equal(t, "TSLA", tsla.Symbol)

	// AAPL fits entirely under the $3,000 limit at the 22% rate.
	assert.Equal(t, 550.0, aapl.TaxSavingsEstimate)
	// TSLA gets only the remaining $500 deductible out of its $2,000 loss.
	assert.Equal(t, 110.0, tsla.TaxSavingsEstimate)

	assert.Contains(t, result.Warnings,
		"Total harvestable losses exceed the annual $3000 capital loss deduction limit; $1500.00 would carry forward to future tax years")
}

func TestAnalyzeDeterministic(t *testing.T) {
	request := func() AnalysisRequest {
		return AnalysisRequest{
			Parse: &parsers.ParseResult{Transactions: []models.Transaction{
				buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
				buyTxn("TSLA", models.NewDate(2025, time.February, 3), 50, 220),
				sellTxn("AAPL", models.NewDate(2025, time.March, 1), 40, 130),
			}},
			Profile: singleProfile(),
			AsOf:    models.NewDate(2025, time.November, 1),
		}
	}
	prices := map[string]float64{"AAPL": 140, "TSLA": 200}

	first := newTestService(prices, nil).Analyze(context.Background(), request())
	second := newTestService(prices, nil).Analyze(context.Background(), request())

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestAnalyzeCacheReturnsSameReport(t *testing.T) {
	priceSvc := &stubPriceService{prices: map[string]float64{"AAPL": 140}}
	svc := NewAnalysisService(priceSvc, &stubAdvisor{}, stubReplacements{})

	req := AnalysisRequest{
		Parse: &parsers.ParseResult{Transactions: []models.Transaction{
			buyTxn("AAPL", models.NewDate(2025, time.January, 2), 100, 150),
		}},
		Profile: singleProfile(),
		AsOf:    models.NewDate(2025, time.November, 1),
	}

	first := svc.Analyze(context.Background(), req)
	second := svc.Analyze(context.Background(), req)

	assert.Same(t, first, second)
	assert.Equal(t, 1, priceSvc.calls, "cached run must not refetch prices")
}
