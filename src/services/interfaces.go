package services

import (
	"context"
	"errors"

	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/parsers"
)

// Define common service errors
var (
	ErrParsingFailed  = errors.New("csv parsing failed")
	ErrAnalysisFailed = errors.New("portfolio analysis failed")
)

// PriceService defines the interface for fetching current market prices.
// The returned map contains only symbols a price was found for; callers decide
// how to treat the rest. Fallback prices (typically carried in the uploaded
// file itself) fill gaps when the live source has no quote.
type PriceService interface {
	GetCurrentPrices(ctx context.Context, symbols []string, fallback map[string]float64) (map[string]float64, []string)
	ClearCache()
}

// AdvisorSuggestion is the per-symbol payload returned by the AI advisor.
type AdvisorSuggestion struct {
	Replacements      []models.ReplacementCandidate `json:"replacements"`
	Explanation       string                        `json:"explanation"`
	PriorityReasoning string                        `json:"priority_reasoning"`
}

// AdvisorService generates replacement candidates and plain-English
// explanations for loss lots. Implementations must degrade gracefully: a nil
// map with no error means the advisor is unavailable and the caller should
// fall back to the static replacement catalog.
type AdvisorService interface {
	SuggestionsFor(ctx context.Context, lossLots []*models.TaxLot) (map[string]AdvisorSuggestion, error)
}

// ReplacementService resolves the static replacement catalog for a symbol.
type ReplacementService interface {
	CandidatesFor(symbol string) []models.ReplacementCandidate
}

// AnalysisRequest bundles everything one analysis run needs. AsOf anchors
// holding periods and wash-sale windows, which keeps a run reproducible.
type AnalysisRequest struct {
	Parse   *parsers.ParseResult
	Profile *models.TaxProfile
	AsOf    models.Date
}

// AnalysisService runs the full pipeline: lots, wash sales, prices,
// positions, suggestions, summary. It always returns a well-formed analysis;
// failures are reported inside the result's Errors slice.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalysisRequest) *models.PortfolioAnalysis
}
