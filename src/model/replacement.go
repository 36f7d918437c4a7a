package model

import (
	"database/sql"

	"github.com/username/optionstaxhub/backend/src/logger"
)

// ReplacementSecurity is a curated non-substantially-identical alternative for a
// harvested position, keyed by the symbol being sold.
type ReplacementSecurity struct {
	Symbol            string
	ReplacementSymbol string
	Name              string
	Reason            string
	Rank              int
}

// DefaultSymbol keys the catch-all replacement row used when a symbol has no
// curated entries of its own.
const DefaultSymbol = "_DEFAULT"

// GetReplacementsBySymbol retrieves curated replacement candidates for a symbol,
// ordered by rank.
func GetReplacementsBySymbol(db *sql.DB, symbol string) ([]ReplacementSecurity, error) {
	query := `SELECT symbol, replacement_symbol, name, reason, rank FROM replacement_securities WHERE symbol = ? ORDER BY rank ASC`
	rows, err := db.Query(query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var replacements []ReplacementSecurity
	for rows.Next() {
		var r ReplacementSecurity
		if err := rows.Scan(&r.Symbol, &r.ReplacementSymbol, &r.Name, &r.Reason, &r.Rank); err != nil {
			return nil, err
		}
		replacements = append(replacements, r)
	}
	return replacements, rows.Err()
}

// InsertOrUpdateReplacement saves a replacement candidate, updating if the pair
// already exists.
func InsertOrUpdateReplacement(db *sql.DB, r ReplacementSecurity) error {
	query := `
        INSERT INTO replacement_securities (symbol, replacement_symbol, name, reason, rank)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(symbol, replacement_symbol) DO UPDATE SET
            name = excluded.name,
            reason = excluded.reason,
            rank = excluded.rank;
    `
	_, err := db.Exec(query, r.Symbol, r.ReplacementSymbol, r.Name, r.Reason, r.Rank)
	if err != nil {
		logger.L.Error("Failed to insert or update replacement security", "symbol", r.Symbol, "replacement", r.ReplacementSymbol, "error", err)
	}
	return err
}

// DefaultReplacements is the built-in catalog of sector-ETF alternatives seeded
// into the database on startup. Each alternative provides similar market
// exposure without being substantially identical to the sold security.
var DefaultReplacements = []ReplacementSecurity{
	{Symbol: "AAPL", ReplacementSymbol: "XLK", Name: "Technology Select Sector SPDR", Reason: "Broad tech sector ETF", Rank: 1},
	{Symbol: "AAPL", ReplacementSymbol: "QQQ", Name: "Invesco QQQ Trust", Reason: "Nasdaq-100 index ETF with heavy AAPL weight", Rank: 2},
	{Symbol: "MSFT", ReplacementSymbol: "VGT", Name: "Vanguard Information Technology ETF", Reason: "Broad IT sector exposure", Rank: 1},
	{Symbol: "MSFT", ReplacementSymbol: "IGV", Name: "iShares Expanded Tech-Software ETF", Reason: "Software sector ETF", Rank: 2},
	{Symbol: "GOOGL", ReplacementSymbol: "XLC", Name: "Communication Services Select Sector SPDR", Reason: "Communication services sector ETF", Rank: 1},
	{Symbol: "GOOGL", ReplacementSymbol: "VOX", Name: "Vanguard Communication Services ETF", Reason: "Broad communication services exposure", Rank: 2},
	{Symbol: "TSLA", ReplacementSymbol: "DRIV", Name: "Global X Autonomous & Electric Vehicles ETF", Reason: "EV and autonomous driving sector ETF", Rank: 1},
	{Symbol: "TSLA", ReplacementSymbol: "QCLN", Name: "First Trust NASDAQ Clean Edge Green Energy", Reason: "Clean energy focus including EV", Rank: 2},
	{Symbol: "NVDA", ReplacementSymbol: "SMH", Name: "VanEck Semiconductor ETF", Reason: "Broad semiconductor sector ETF", Rank: 1},
	{Symbol: "NVDA", ReplacementSymbol: "SOXX", Name: "iShares Semiconductor ETF", Reason: "Semiconductor index exposure", Rank: 2},
	{Symbol: "AMZN", ReplacementSymbol: "XLY", Name: "Consumer Discretionary Select Sector SPDR", Reason: "Consumer discretionary sector ETF", Rank: 1},
	{Symbol: "AMZN", ReplacementSymbol: "IBUY", Name: "Amplify Online Retail ETF", Reason: "E-commerce focused ETF", Rank: 2},
	{Symbol: "META", ReplacementSymbol: "XLC", Name: "Communication Services Select Sector SPDR", Reason: "Communication services sector", Rank: 1},
	{Symbol: "META", ReplacementSymbol: "SOCL", Name: "Global X Social Media ETF", Reason: "Social media focused ETF", Rank: 2},
	{Symbol: "AMD", ReplacementSymbol: "SMH", Name: "VanEck Semiconductor ETF", Reason: "Semiconductor sector ETF", Rank: 1},
	{Symbol: "AMD", ReplacementSymbol: "PSI", Name: "Invesco Dynamic Semiconductors ETF", Reason: "Dynamic semiconductor exposure", Rank: 2},
	{Symbol: "NFLX", ReplacementSymbol: "XLC", Name: "Communication Services Select Sector SPDR", Reason: "Communication services sector", Rank: 1},
	{Symbol: "NFLX", ReplacementSymbol: "PEJ", Name: "Invesco Dynamic Leisure & Entertainment ETF", Reason: "Entertainment sector ETF", Rank: 2},
	{Symbol: "DIS", ReplacementSymbol: "PEJ", Name: "Invesco Dynamic Leisure & Entertainment ETF", Reason: "Leisure and entertainment sector", Rank: 1},
	{Symbol: "DIS", ReplacementSymbol: "XLC", Name: "Communication Services Select Sector SPDR", Reason: "Communication services exposure", Rank: 2},
	{Symbol: DefaultSymbol, ReplacementSymbol: "VTI", Name: "Vanguard Total Stock Market ETF", Reason: "Broad US market exposure", Rank: 1},
	{Symbol: DefaultSymbol, ReplacementSymbol: "SPY", Name: "SPDR S&P 500 ETF", Reason: "S&P 500 index ETF", Rank: 2},
}

// SeedDefaultReplacements populates the replacement catalog with the built-in
// defaults. When reset is true existing rows are cleared first so edits to the
// defaults take effect.
func SeedDefaultReplacements(db *sql.DB, reset bool) error {
	if reset {
		if _, err := db.Exec(`DELETE FROM replacement_securities`); err != nil {
			return err
		}
	}
	for _, r := range DefaultReplacements {
		if err := InsertOrUpdateReplacement(db, r); err != nil {
			return err
		}
	}
	return nil
}
