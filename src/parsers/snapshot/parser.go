// Package snapshot parses the simplified portfolio CSV format:
// symbol, quantity, purchase_price, current_price, with an optional
// purchase_date column. Each row becomes one synthetic Buy transaction;
// current prices are surfaced as fallback prices for the price source.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/security/validation"
)

type Parser struct {
	today models.Date
}

// NewParser builds a snapshot parser. Rows without a purchase date are dated
// today, which makes them short-term by construction.
func NewParser(today models.Date) *Parser {
	return &Parser{today: today}
}

func (p *Parser) Parse(r io.Reader) ([]models.Transaction, map[string]float64, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var warnings []string
	if _, hasDates := col["purchase_date"]; !hasDates {
		warnings = append(warnings,
			"CSV has no purchase_date column, all positions treated as short-term. "+
				"Add a purchase_date column (MM/DD/YYYY) for accurate short-term vs long-term classification.")
	}

	var transactions []models.Transaction
	fallbackPrices := make(map[string]float64)

	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Row %d: unreadable row skipped", rowNum))
			continue
		}

		symbol := strings.ToUpper(field(record, col, "symbol"))
		if symbol == "" {
			warnings = append(warnings, fmt.Sprintf("Row %d: missing symbol", rowNum))
			continue
		}
		if err := validation.ValidateTickerSymbol(symbol); err != nil {
			warnings = append(warnings, fmt.Sprintf("Row %d: invalid symbol %q", rowNum, symbol))
			continue
		}
		quantity := parseFloat(field(record, col, "quantity"))
		if quantity <= 0 {
			warnings = append(warnings, fmt.Sprintf("Row %d: invalid quantity for %s", rowNum, symbol))
			continue
		}
		purchasePrice := parseFloat(field(record, col, "purchase_price"))
		currentPrice := parseFloat(field(record, col, "current_price"))

		purchaseDate := p.today
		if raw := field(record, col, "purchase_date"); raw != "" {
			parsed, err := parseDate(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("Row %d: could not parse purchase_date for %s, using today", rowNum, symbol))
			} else {
				purchaseDate = parsed
			}
		}

		transactions = append(transactions, models.Transaction{
			ActivityDate: purchaseDate,
			Instrument:   symbol,
			TransCode:    models.TransCodeBuy,
			Quantity:     quantity,
			Price:        purchasePrice,
			Amount:       -purchasePrice * quantity,
			AssetType:    models.AssetTypeStock,
		})
		if currentPrice > 0 {
			fallbackPrices[symbol] = currentPrice
		}
	}

	return transactions, fallbackPrices, warnings, nil
}

func field(record []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDate(s string) (models.Date, error) {
	for _, layout := range []string{"01/02/2006", "2006-01-02", "01-02-2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return models.DateOf(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("unparseable date %q", s)
}
