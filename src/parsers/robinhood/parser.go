// Package robinhood parses Robinhood transaction history CSV exports.
//
// Columns: Activity Date, Process Date, Settle Date, Instrument, Description,
// Trans Code, Quantity, Price, Amount. Numeric fields may carry dollars,
// commas and accounting parentheses; quantities may carry a trailing "S"
// (shares out in corporate actions).
package robinhood

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

// Non-trading account activity codes, skipped during parsing.
var accountActivityCodes = map[string]bool{
	"ACH": true, "RTP": true, "FUTSWP": true, "MINT": true, "ROC": true,
}

// Corporate action codes: tracked but they do not open or close lots.
var corporateActionCodes = map[string]bool{
	"SPR": true, "OCA": true,
}

var knownTransCodes = map[models.TransCode]bool{
	models.TransCodeBuy: true, models.TransCodeSell: true,
	models.TransCodeSTO: true, models.TransCodeBTC: true,
	models.TransCodeBTO: true, models.TransCodeSTC: true,
	models.TransCodeOEXP: true, models.TransCodeOASGN: true,
}

type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse reads the export and returns transactions in file order plus
// data-quality warnings for rows it had to skip. Row-level problems never
// abort the whole file.
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
		col[strings.TrimSpace(name)] = i
	}

	var transactions []models.Transaction
	var warnings []string

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

		txn, warning := parseRow(record, col, rowNum)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if txn != nil {
			transactions = append(transactions, *txn)
		}
	}

	return transactions, nil, warnings, nil
}

func field(record []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseRow converts one CSV record. Returns (nil, "") for rows that are
// silently skipped (account-level activity, corporate actions).
func parseRow(record []string, col map[string]int, rowNum int) (*models.Transaction, string) {
	rawCode := field(record, col, "Trans Code")
	if accountActivityCodes[rawCode] || corporateActionCodes[rawCode] {
		return nil, ""
	}

	instrument := strings.ToUpper(field(record, col, "Instrument"))
	if instrument == "" {
		return nil, "" // account-level row
	}
	if err := validation.ValidateTickerSymbol(instrument); err != nil {
		return nil, fmt.Sprintf("Row %d: invalid instrument symbol %q", rowNum, instrument)
	}

	activityDate, err := parseDate(field(record, col, "Activity Date"))
	if err != nil {
		return nil, fmt.Sprintf("Row %d: missing or invalid Activity Date", rowNum)
	}

	code := models.TransCode(rawCode)
	if !knownTransCodes[code] {
		return nil, fmt.Sprintf("Row %d: unknown Trans Code %q for %s", rowNum, rawCode, instrument)
	}

	// Descriptions are echoed back in API responses and may be re-exported
	// to CSV by the frontend, so they get the full sanitization treatment.
	description := validation.SanitizeForFormulaInjection(
		validation.SanitizeText(validation.StripUnprintable(field(record, col, "Description"))))

	txn := &models.Transaction{
		ActivityDate: activityDate,
		Instrument:   instrument,
		Description:  description,
		TransCode:    code,
		Quantity:     parseQuantity(field(record, col, "Quantity")),
		Price:        abs(parseAmount(field(record, col, "Price"))),
		Amount:       parseAmount(field(record, col, "Amount")),
		AssetType:    determineAssetType(code, description),
	}
	if d, err := parseDate(field(record, col, "Process Date")); err == nil {
		txn.ProcessDate = &d
	}
	if d, err := parseDate(field(record, col, "Settle Date")); err == nil {
		txn.SettleDate = &d
	}
	return txn, ""
}

// parseDate accepts Robinhood's MM/DD/YYYY plus common fallbacks.
func parseDate(s string) (models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{"01/02/2006", "2006-01-02", "01-02-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("unparseable date %q", s)
}

// parseAmount handles $7.70, ($732.00), ($2,440.10) and empty strings.
// Parenthesized values are negative.
func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.NewReplacer("$", "", ",", "", "(", "", ")", "").Replace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if negative {
		return -v
	}
	return v
}

// parseQuantity strips the trailing "S" Robinhood uses for share-out rows.
func parseQuantity(s string) float64 {
	s = strings.TrimRight(strings.TrimSpace(s), "Ss")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return abs(v)
}

// determineAssetType classifies by trans code first, then by Call/Put
// keywords in the description.
func determineAssetType(code models.TransCode, description string) models.AssetType {
	switch code {
	case models.TransCodeSTO, models.TransCodeBTC, models.TransCodeBTO,
		models.TransCodeSTC, models.TransCodeOEXP, models.TransCodeOASGN:
		return models.AssetTypeOption
	}
	lower := " " + strings.ToLower(description) + " "
	if strings.Contains(lower, " call ") || strings.Contains(lower, " put ") {
		return models.AssetTypeOption
	}
	return models.AssetTypeStock
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
