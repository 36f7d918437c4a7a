package model

import (
	"database/sql"
	"strings"
	"time"

	"github.com/username/optionstaxhub/backend/src/logger"
)

// DailyPrice represents a cached price for a ticker on a specific day.
type DailyPrice struct {
	TickerSymbol string
	Date         string // YYYY-MM-DD
	Price        float64
	Currency     string
	UpdatedAt    time.Time
}

// GetPricesByTickersAndDate retrieves cached prices for a list of tickers on a specific date.
func GetPricesByTickersAndDate(db *sql.DB, tickers []string, date string) (map[string]DailyPrice, error) {
	prices := make(map[string]DailyPrice)
	if len(tickers) == 0 {
		return prices, nil
	}
	query := `SELECT ticker_symbol, date, price, currency, updated_at FROM daily_prices WHERE date = ? AND ticker_symbol IN (?` + strings.Repeat(",?", len(tickers)-1) + `)`
	args := make([]interface{}, len(tickers)+1)
	args[0] = date
	for i, ticker := range tickers {
		args[i+1] = ticker
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.TickerSymbol, &p.Date, &p.Price, &p.Currency, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prices[p.TickerSymbol] = p
	}
	return prices, rows.Err()
}

// InsertOrUpdatePrice saves a new price to the cache, updating if it already exists for that day.
func InsertOrUpdatePrice(db *sql.DB, price DailyPrice) error {
	// Using ON CONFLICT (UPSERT) is efficient and safe for concurrent operations.
	query := `
        INSERT INTO daily_prices (ticker_symbol, date, price, currency, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(ticker_symbol, date) DO UPDATE SET
            price = excluded.price,
            currency = excluded.currency,
            updated_at = excluded.updated_at;
    `
	_, err := db.Exec(query, price.TickerSymbol, price.Date, price.Price, price.Currency, time.Now())
	if err != nil {
		logger.L.Error("Failed to insert or update daily price", "ticker", price.TickerSymbol, "date", price.Date, "error", err)
	}
	return err
}
