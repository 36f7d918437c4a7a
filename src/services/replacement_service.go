package services

import (
	"database/sql"
	"strings"

	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/model"
	"github.com/username/optionstaxhub/backend/src/models"
)

type replacementServiceImpl struct {
	db *sql.DB
}

// NewReplacementService returns the catalog-backed replacement source. With a
// nil db it serves the built-in defaults directly, which keeps the engine
// usable without a database.
func NewReplacementService(db *sql.DB) ReplacementService {
	return &replacementServiceImpl{db: db}
}

// CandidatesFor returns curated replacement candidates for a symbol, falling
// back to the broad-market default entry when the symbol has no curated rows.
func (s *replacementServiceImpl) CandidatesFor(symbol string) []models.ReplacementCandidate {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if s.db != nil {
		rows, err := model.GetReplacementsBySymbol(s.db, symbol)
		if err != nil {
			logger.L.Error("Failed to load replacement candidates from DB", "symbol", symbol, "error", err)
		} else if len(rows) == 0 {
			rows, err = model.GetReplacementsBySymbol(s.db, model.DefaultSymbol)
			if err != nil {
				logger.L.Error("Failed to load default replacement candidates from DB", "error", err)
			}
		}
		if len(rows) > 0 {
			return toCandidates(rows)
		}
	}

	return staticCandidates(symbol)
}

func toCandidates(rows []model.ReplacementSecurity) []models.ReplacementCandidate {
	candidates := make([]models.ReplacementCandidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, models.ReplacementCandidate{
			Symbol: r.ReplacementSymbol,
			Name:   r.Name,
			Reason: r.Reason,
		})
	}
	return candidates
}

func staticCandidates(symbol string) []models.ReplacementCandidate {
	var matched, defaults []model.ReplacementSecurity
	for _, r := range model.DefaultReplacements {
		switch r.Symbol {
		case symbol:
			matched = append(matched, r)
		case model.DefaultSymbol:
			defaults = append(defaults, r)
		}
	}
	if len(matched) > 0 {
		return toCandidates(matched)
	}
	return toCandidates(defaults)
}
