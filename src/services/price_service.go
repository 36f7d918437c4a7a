package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/publicsuffix"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/database"
	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/model"
	"github.com/username/optionstaxhub/backend/src/utils"
)

const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// --- API Response Structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient    http.Client
	memCache      *gocache.Cache
	isInitialized bool
	crumb         string
	mu            sync.Mutex
}

// NewPriceService builds the Yahoo Finance price source. Quotes are cached in
// two layers: a short-TTL in-memory cache for repeated analyses within a
// session, and the daily_prices table so restarts within the same day do not
// refetch.
func NewPriceService() PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: config.Cfg.PriceFetchTimeout,
	}

	s := &priceServiceImpl{
		httpClient: client,
		memCache:   gocache.New(config.Cfg.PriceCacheTTL, 2*config.Cfg.PriceCacheTTL),
	}

	go s.initializeYahooSession()

	return s
}

func (s *priceServiceImpl) initializeYahooSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized && s.crumb != "" {
		return
	}

	logger.L.Info("Initializing Yahoo Finance session and fetching Crumb...")

	req1, _ := http.NewRequest("GET", "https://fc.yahoo.com", nil)
	req1.Header.Set("User-Agent", yahooUserAgent)
	resp1, err := s.httpClient.Do(req1)
	if err == nil {
		io.Copy(io.Discard, resp1.Body)
		resp1.Body.Close()
	}

	req2, _ := http.NewRequest("GET", "https://finance.yahoo.com", nil)
	req2.Header.Set("User-Agent", yahooUserAgent)
	resp2, err := s.httpClient.Do(req2)
	if err == nil {
		io.Copy(io.Discard, resp2.Body)
		resp2.Body.Close()
	}

	req3, _ := http.NewRequest("GET", "https://query1.finance.yahoo.com/v1/test/getcrumb", nil)
	req3.Header.Set("User-Agent", yahooUserAgent)
	resp3, err := s.httpClient.Do(req3)
	if err != nil {
		logger.L.Error("Failed to fetch crumb", "error", err)
		return
	}
	defer resp3.Body.Close()

	if resp3.StatusCode == http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp3.Body)
		s.crumb = string(bodyBytes)
		s.isInitialized = true
		logger.L.Info("Yahoo session initialized successfully")
	} else {
		logger.L.Warn("Failed to fetch crumb", "status", resp3.Status)
	}
}

func (s *priceServiceImpl) ensureSession() {
	s.mu.Lock()
	needsInit := !s.isInitialized || s.crumb == ""
	s.mu.Unlock()

	if needsInit {
		s.initializeYahooSession()
	}
}

// GetCurrentPrices resolves current prices for the given symbols. Each symbol
// is checked against the in-memory cache, then the daily price table, then
// the Yahoo chart API. Symbols still missing afterwards fall back to the
// caller-supplied prices. Per-symbol failures degrade to warnings; the
// analysis proceeds with whatever prices were found.
func (s *priceServiceImpl) GetCurrentPrices(ctx context.Context, symbols []string, fallback map[string]float64) (map[string]float64, []string) {
	prices := make(map[string]float64)
	var warnings []string
	if len(symbols) == 0 {
		return prices, warnings
	}

	var symbolsToFetch []string
	for _, symbol := range uniqueUpper(symbols) {
		if cached, found := s.memCache.Get(symbol); found {
			prices[symbol] = cached.(float64)
		} else {
			symbolsToFetch = append(symbolsToFetch, symbol)
		}
	}

	todayStr := time.Now().Format("2006-01-02")

	if len(symbolsToFetch) > 0 && database.DB != nil {
		dbPrices, err := model.GetPricesByTickersAndDate(database.DB, symbolsToFetch, todayStr)
		if err != nil {
			logger.L.Error("Failed to get daily prices from DB", "error", err)
		}
		var remaining []string
		for _, symbol := range symbolsToFetch {
			if dp, ok := dbPrices[symbol]; ok {
				prices[symbol] = dp.Price
				s.memCache.SetDefault(symbol, dp.Price)
			} else {
				remaining = append(remaining, symbol)
			}
		}
		symbolsToFetch = remaining
	}

	if len(symbolsToFetch) > 0 {
		s.ensureSession()
		for _, symbol := range symbolsToFetch {
			price, currency, err := s.fetchPriceForTicker(ctx, symbol)
			if err != nil {
				logger.L.Warn("Could not get price for symbol from API", "symbol", symbol, "error", err)
				continue
			}
			price = utils.Round2(price)
			prices[symbol] = price
			s.memCache.SetDefault(symbol, price)
			if database.DB != nil {
				model.InsertOrUpdatePrice(database.DB, model.DailyPrice{
					TickerSymbol: symbol,
					Date:         todayStr,
					Price:        price,
					Currency:     currency,
				})
			}
		}
	}

	// Fill in any missing prices with fallback values from the upload itself.
	for _, symbol := range uniqueUpper(symbols) {
		if _, ok := prices[symbol]; ok {
			continue
		}
		if fbPrice, ok := fallback[symbol]; ok {
			prices[symbol] = fbPrice
			warnings = append(warnings, fmt.Sprintf("Using CSV-provided price for %s (live price unavailable)", symbol))
		}
	}

	var missing []string
	for _, symbol := range uniqueUpper(symbols) {
		if _, ok := prices[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("No prices available for: %s", strings.Join(missing, ", ")))
	}

	return prices, warnings
}

// ClearCache drops the in-memory price cache. The daily price table is left
// alone; it expires naturally with the date key.
func (s *priceServiceImpl) ClearCache() {
	s.memCache.Flush()
}

func (s *priceServiceImpl) fetchPriceForTicker(ctx context.Context, ticker string) (float64, string, error) {
	quoteURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?crumb=%s", ticker, s.crumb)
	req, err := http.NewRequestWithContext(ctx, "GET", quoteURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to call Yahoo chart API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == 401 {
		s.mu.Lock()
		s.isInitialized = false
		s.mu.Unlock()
		return 0, "", fmt.Errorf("status 401 (Unauthorized) - Crumb invalid")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("yahoo chart API returned non-OK status %d", resp.StatusCode)
	}
	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return 0, "", fmt.Errorf("failed to decode Yahoo chart response: %w", err)
	}
	if chartData.Chart.Error != nil {
		return 0, "", fmt.Errorf("yahoo chart API returned an error: %v", chartData.Chart.Error)
	}
	if len(chartData.Chart.Result) == 0 || chartData.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return 0, "", fmt.Errorf("no price data found")
	}
	meta := chartData.Chart.Result[0].Meta
	return meta.RegularMarketPrice, meta.Currency, nil
}

func uniqueUpper(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
