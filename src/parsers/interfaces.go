package parsers

import (
	"errors"

	"github.com/username/optionstaxhub/backend/src/models"
)

// ErrUnrecognizedFormat is returned when the CSV header matches no known
// export format.
var ErrUnrecognizedFormat = errors.New(
	"unrecognized CSV format: expected Robinhood transaction history " +
		"(Activity Date, Instrument, Trans Code, Quantity, Price) or a portfolio " +
		"snapshot (symbol, quantity, purchase_price, current_price)")

// ParseResult is the outcome of parsing one upload. FallbackPrices carries
// prices taken from the file itself (snapshot format only); they are used
// when the live price source has no quote for a symbol.
type ParseResult struct {
	Transactions   []models.Transaction
	FallbackPrices map[string]float64
	Warnings       []string
}
