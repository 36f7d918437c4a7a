package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	gocache "github.com/patrickmn/go-cache"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/processors"
	"github.com/username/optionstaxhub/backend/src/tax"
	"github.com/username/optionstaxhub/backend/src/utils"
)

type analysisServiceImpl struct {
	priceService       PriceService
	advisorService     AdvisorService
	replacementService ReplacementService

	lotBuilder processors.LotBuilder
	washSales  processors.WashSaleDetector
	positions  processors.PositionAggregator

	reportCache *gocache.Cache
}

// NewAnalysisService wires the engine pipeline together. Identical requests
// within the cache TTL return the cached report instead of refetching prices
// and re-running the advisor.
func NewAnalysisService(priceService PriceService, advisorService AdvisorService, replacementService ReplacementService) AnalysisService {
	return &analysisServiceImpl{
		priceService:       priceService,
		advisorService:     advisorService,
		replacementService: replacementService,
		lotBuilder:         processors.NewLotProcessor(nil),
		washSales:          processors.NewWashSaleProcessor(),
		positions:          processors.NewPositionProcessor(),
		reportCache:        gocache.New(config.Cfg.AnalysisCacheTTL, config.Cfg.AnalysisCacheCleanup),
	}
}

// Analyze runs the full pipeline. The result object is always well-formed:
// fatal conditions land in Errors, degraded-but-completed conditions in
// Warnings, and the same request always yields the same report.
func (s *analysisServiceImpl) Analyze(ctx context.Context, req AnalysisRequest) *models.PortfolioAnalysis {
	result := newEmptyAnalysis()

	if req.Parse == nil || len(req.Parse.Transactions) == 0 {
		result.Errors = append(result.Errors, "No transactions found in CSV file")
		return result
	}

	profile, profileWarnings := s.resolveProfile(req.Profile)
	result.TaxProfile = &profile
	result.Warnings = append(result.Warnings, profileWarnings...)
	result.Warnings = append(result.Warnings, req.Parse.Warnings...)

	if cacheKey, err := analysisCacheKey(req, profile); err == nil {
		if cached, found := s.reportCache.Get(cacheKey); found {
			logger.L.Debug("Serving analysis from cache", "key", cacheKey)
			return cached.(*models.PortfolioAnalysis)
		}
		defer func() { s.reportCache.SetDefault(cacheKey, result) }()
	}

	lotResult := s.lotBuilder.BuildLots(req.Parse.Transactions)
	result.Warnings = append(result.Warnings, lotResult.Warnings...)

	result.WashSaleFlags = s.washSales.Detect(lotResult.Closures, lotResult.Lots)

	openLots := lotResult.OpenLots()
	if len(openLots) == 0 {
		result.Warnings = append(result.Warnings, "All positions are closed; nothing to harvest")
		result.Summary = processors.BuildSummary(nil, nil, result.WashSaleFlags)
		return result
	}

	symbols := openSymbols(openLots)
	prices, priceWarnings := s.priceService.GetCurrentPrices(ctx, symbols, req.Parse.FallbackPrices)
	result.Warnings = append(result.Warnings, priceWarnings...)

	pricePtrs := make(map[string]*float64, len(prices))
	for symbol, price := range prices {
		p := price
		pricePtrs[symbol] = &p
	}

	s.positions.ComputeLotMetrics(openLots, pricePtrs, req.AsOf)
	result.TaxLots = openLots
	result.Positions = s.positions.Aggregate(openLots, req.AsOf)

	suggestions, suggestionWarnings := s.buildSuggestions(ctx, openLots, lotResult.Lots, profile, req.AsOf)
	result.Suggestions = suggestions
	result.Warnings = append(result.Warnings, suggestionWarnings...)

	result.Summary = processors.BuildSummary(result.Positions, result.Suggestions, result.WashSaleFlags)
	return result
}

func newEmptyAnalysis() *models.PortfolioAnalysis {
	return &models.PortfolioAnalysis{
		Positions:     []models.Position{},
		TaxLots:       []*models.TaxLot{},
		Suggestions:   []models.HarvestingSuggestion{},
		WashSaleFlags: []models.WashSaleFlag{},
		Disclaimer:    models.Disclaimer,
		Errors:        []string{},
		Warnings:      []string{},
	}
}

// resolveProfile normalizes the caller's tax profile. An unusable profile
// falls back to defaults with a warning rather than failing the analysis;
// bracket strictness lives in the tax package for direct callers.
func (s *analysisServiceImpl) resolveProfile(p *models.TaxProfile) (models.TaxProfile, []string) {
	var warnings []string
	profile := models.TaxProfile{
		FilingStatus:          models.FilingSingle,
		EstimatedAnnualIncome: 75000,
		TaxYear:               config.Cfg.DefaultTaxYear,
	}
	if p == nil {
		warnings = append(warnings, fmt.Sprintf("No tax profile provided; using single filer, $75,000 income, tax year %d", profile.TaxYear))
		return profile, warnings
	}

	profile = *p
	if !profile.FilingStatus.Valid() {
		if profile.FilingStatus != "" {
			warnings = append(warnings, fmt.Sprintf("Unrecognized filing status %q; using single", profile.FilingStatus))
		}
		profile.FilingStatus = models.FilingSingle
	}
	if profile.EstimatedAnnualIncome < 0 {
		warnings = append(warnings, "Negative estimated income; using $0")
		profile.EstimatedAnnualIncome = 0
	}
	if !tax.SupportedYear(profile.TaxYear) {
		warnings = append(warnings, fmt.Sprintf("%s; using %d", tax.ErrUnsupportedYear{Year: profile.TaxYear}.Error(), config.Cfg.DefaultTaxYear))
		profile.TaxYear = config.Cfg.DefaultTaxYear
	}
	return profile, warnings
}

func (s *analysisServiceImpl) buildSuggestions(ctx context.Context, openLots, allLots []*models.TaxLot, profile models.TaxProfile, asOf models.Date) ([]models.HarvestingSuggestion, []string) {
	var warnings []string

	var lossLots []*models.TaxLot
	for _, lot := range openLots {
		if lot.UnrealizedPNL != nil && *lot.UnrealizedPNL < 0 {
			lossLots = append(lossLots, lot)
		}
	}
	if len(lossLots) == 0 {
		return []models.HarvestingSuggestion{}, warnings
	}

	aiSuggestions, err := s.advisorService.SuggestionsFor(ctx, lossLots)
	if err != nil {
		warnings = append(warnings, "AI advisor unavailable; using static replacement candidates")
	}

	suggestions := make([]models.HarvestingSuggestion, 0, len(lossLots))
	for _, lot := range lossLots {
		loss := -*lot.UnrealizedPNL

		savings, err := tax.SavingsEstimate(loss, lot.IsLongTerm, profile)
		if err != nil {
			// Profile years are normalized before this point; keep the
			// suggestion with zero savings if that ever regresses.
			warnings = append(warnings, err.Error())
		}

		washRisk, washExplanation := s.washSales.ProspectiveRisk(lot.Symbol, allLots, asOf)

		var replacements []models.ReplacementCandidate
		var aiExplanation string
		aiData, isAI := aiSuggestions[lot.Symbol]
		if isAI && len(aiData.Replacements) > 0 {
			replacements = aiData.Replacements
			aiExplanation = aiData.Explanation
		} else {
			isAI = false
			replacements = s.replacementService.CandidatesFor(lot.Symbol)
		}

		suggestions = append(suggestions, models.HarvestingSuggestion{
			Symbol:                lot.Symbol,
			Action:                "SELL",
			Quantity:              lot.Quantity,
			CurrentPrice:          lot.CurrentPrice,
			CostBasisPerShare:     lot.CostBasisPerShare,
			EstimatedLoss:         utils.Round2(loss),
			TaxSavingsEstimate:    utils.Round2(savings),
			HoldingPeriodDays:     lot.HoldingPeriodDays,
			IsLongTerm:            lot.IsLongTerm,
			WashSaleRisk:          washRisk,
			WashSaleExplanation:   washExplanation,
			ReplacementCandidates: replacements,
			AIExplanation:         aiExplanation,
			AIGenerated:           isAI,
		})
	}

	rankSuggestions(suggestions)

	if config.Cfg.CapLossLimitEnabled {
		warnings = append(warnings, capSuggestionSavings(suggestions, profile)...)
	}

	return suggestions, warnings
}

// rankSuggestions orders by estimated tax savings descending, breaking ties
// by larger loss magnitude and then symbol, and assigns contiguous priorities
// starting at 1.
func rankSuggestions(suggestions []models.HarvestingSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.TaxSavingsEstimate != b.TaxSavingsEstimate {
			return a.TaxSavingsEstimate > b.TaxSavingsEstimate
		}
		if a.EstimatedLoss != b.EstimatedLoss {
			return a.EstimatedLoss > b.EstimatedLoss
		}
		return a.Symbol < b.Symbol
	})
	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
}

// capSuggestionSavings limits savings estimates against the annual capital
// loss deduction limit, consumed in priority order. Losses beyond the limit
// still appear as harvestable but earn no additional current-year savings;
// they carry forward.
func capSuggestionSavings(suggestions []models.HarvestingSuggestion, profile models.TaxProfile) []string {
	limit := tax.CapitalLossLimit(profile.FilingStatus)
	remaining := limit
	var carryForward float64

	for i := range suggestions {
		loss := suggestions[i].EstimatedLoss
		if loss <= remaining {
			remaining -= loss
			continue
		}
		deductible := remaining
		remaining = 0
		carryForward += loss - deductible
		if loss > 0 {
			suggestions[i].TaxSavingsEstimate = utils.Round2(suggestions[i].TaxSavingsEstimate * deductible / loss)
		}
	}

	if carryForward > 0 {
		return []string{fmt.Sprintf(
			"Total harvestable losses exceed the annual $%.0f capital loss deduction limit; $%.2f would carry forward to future tax years",
			limit, utils.Round2(carryForward))}
	}
	return nil
}

func openSymbols(openLots []*models.TaxLot) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, lot := range openLots {
		if !seen[lot.Symbol] {
			seen[lot.Symbol] = true
			symbols = append(symbols, lot.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// analysisCacheKey produces a stable digest of everything that affects the
// report. The capital-loss-cap toggle is part of the key because it changes
// the suggestion figures.
func analysisCacheKey(req AnalysisRequest, profile models.TaxProfile) (string, error) {
	payload := struct {
		Transactions []models.Transaction `json:"transactions"`
		Fallback     map[string]float64   `json:"fallback"`
		Profile      models.TaxProfile    `json:"profile"`
		AsOf         models.Date          `json:"as_of"`
		CapEnabled   bool                 `json:"cap_enabled"`
	}{req.Parse.Transactions, req.Parse.FallbackPrices, profile, req.AsOf, config.Cfg.CapLossLimitEnabled}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
