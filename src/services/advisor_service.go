package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/utils"
)

const advisorSystemPrompt = `You are a tax-loss harvesting advisor for a portfolio analysis tool.
Your role is to suggest replacement securities and explain harvesting strategies.

IMPORTANT RULES:
1. ALWAYS include a disclaimer that this is for educational/simulation purposes only,
   not financial or tax advice.
2. Replacement securities must NOT be "substantially identical" to the original
   to avoid triggering IRS wash-sale rules. ETFs tracking the same narrow index
   as the stock being sold should be avoided.
3. Focus on maintaining similar market exposure (sector, risk profile) while
   ensuring the replacement is clearly different from a wash-sale perspective.
4. Explain your reasoning in plain, accessible English suitable for DIY retail traders.
5. Consider both short-term and long-term tax implications in your analysis.

You will receive portfolio positions with unrealized losses. For each position, provide:
- 2-3 replacement securities (ticker, full name, and reason it's safe from wash-sale rules)
- A plain-English explanation of why harvesting this loss is beneficial
- Priority reasoning relative to other positions

Respond in valid JSON format only.`

// advisorPosition is the anonymized per-lot payload sent to the model. Only
// symbols, quantities and P&L figures leave the process; no account or user
// identifying data.
type advisorPosition struct {
	Symbol            string   `json:"symbol"`
	Quantity          float64  `json:"quantity"`
	UnrealizedPNL     float64  `json:"unrealized_pnl"`
	CostBasisPerShare float64  `json:"cost_basis_per_share"`
	CurrentPrice      *float64 `json:"current_price"`
	HoldingPeriodDays int      `json:"holding_period_days"`
	IsLongTerm        bool     `json:"is_long_term"`
}

type advisorResponse struct {
	Suggestions     map[string]AdvisorSuggestion `json:"suggestions"`
	OverallStrategy string                       `json:"overall_strategy"`
	Disclaimer      string                       `json:"disclaimer"`
}

type advisorServiceImpl struct {
	client *genai.Client
	model  string
}

// NewAdvisorService builds the Gemini-backed advisor. Without an API key the
// advisor is disabled and every call reports unavailable, which makes the
// analysis fall back to the static replacement catalog.
func NewAdvisorService(ctx context.Context) AdvisorService {
	if config.Cfg.GeminiAPIKey == "" {
		return &advisorServiceImpl{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.Cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.L.Error("Failed to initialize Gemini client, AI advisor disabled", "error", err)
		return &advisorServiceImpl{}
	}
	return &advisorServiceImpl{client: client, model: config.Cfg.GeminiModel}
}

// SuggestionsFor asks the model for replacement candidates and explanations
// for the given loss lots. Any failure is logged and reported as unavailable
// rather than propagated; AI output is never load-bearing.
func (s *advisorServiceImpl) SuggestionsFor(ctx context.Context, lossLots []*models.TaxLot) (map[string]AdvisorSuggestion, error) {
	if s.client == nil || len(lossLots) == 0 {
		return nil, nil
	}

	positions := prepareAdvisorPositions(lossLots)
	if len(positions) == 0 {
		return nil, nil
	}

	prompt, err := buildAdvisorPrompt(positions)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, config.Cfg.GeminiTimeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: advisorSystemPrompt}}},
		Temperature:       genai.Ptr[float32](0.3),
		MaxOutputTokens:   4096,
	})
	if err != nil {
		logger.L.Error("AI advisor request failed", "error", err)
		return nil, err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		logger.L.Warn("Gemini returned empty response")
		return nil, nil
	}

	parsed, err := parseAdvisorResponse(text)
	if err != nil {
		logger.L.Error("Failed to parse AI response as JSON", "error", err)
		return nil, err
	}
	logger.L.Info("AI suggestions received", "positions", len(parsed))
	return parsed, nil
}

func prepareAdvisorPositions(lossLots []*models.TaxLot) []advisorPosition {
	var positions []advisorPosition
	for _, lot := range lossLots {
		if lot.UnrealizedPNL == nil || *lot.UnrealizedPNL >= 0 {
			continue
		}
		positions = append(positions, advisorPosition{
			Symbol:            lot.Symbol,
			Quantity:          lot.Quantity,
			UnrealizedPNL:     utils.Round2(*lot.UnrealizedPNL),
			CostBasisPerShare: utils.Round2(lot.CostBasisPerShare),
			CurrentPrice:      lot.CurrentPrice,
			HoldingPeriodDays: lot.HoldingPeriodDays,
			IsLongTerm:        lot.IsLongTerm,
		})
	}
	return positions
}

func buildAdvisorPrompt(positions []advisorPosition) (string, error) {
	positionsJSON, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Analyze these portfolio positions that have unrealized losses and provide
tax-loss harvesting recommendations.

Positions with unrealized losses:
%s

For each position, provide your response in this exact JSON structure:
{
  "suggestions": {
    "<SYMBOL>": {
      "replacements": [
        {
          "symbol": "<TICKER>",
          "name": "<FULL_NAME>",
          "reason": "<WHY_NOT_SUBSTANTIALLY_IDENTICAL>"
        }
      ],
      "explanation": "<PLAIN_ENGLISH_EXPLANATION_OF_WHY_TO_HARVEST>",
      "priority_reasoning": "<WHY_THIS_PRIORITY_VS_OTHERS>"
    }
  },
  "overall_strategy": "<BRIEF_OVERALL_HARVESTING_STRATEGY>",
  "disclaimer": "This analysis is for educational and simulation purposes only. It does not constitute financial, tax, or investment advice. Consult a qualified tax professional."
}

Provide 2-3 replacement candidates per position. Ensure replacements are NOT substantially
identical to avoid wash-sale rule violations.`, positionsJSON), nil
}

// parseAdvisorResponse tolerates markdown code fences around the JSON body,
// which the model emits despite being asked for raw JSON.
func parseAdvisorResponse(text string) (map[string]AdvisorSuggestion, error) {
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}

	var parsed advisorResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}
	if parsed.Suggestions == nil {
		return nil, fmt.Errorf("response missing 'suggestions' key")
	}
	return parsed.Suggestions, nil
}
