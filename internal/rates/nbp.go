// Package rates fetches PLN exchange rates from the NBP table A API with a
// same-day cache and a hardcoded offline fallback.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/metrics"
)

const defaultBaseURL = "https://api.nbp.pl/api"

// fallbackRates are used when the NBP API is unreachable.
var fallbackRates = map[string]float64{
	"PLN": 1.0,
	"EUR": 4.30,
	"USD": 4.00,
	"GBP": 5.10,
	"CHF": 4.50,
	"CZK": 0.17,
}

// Table is one day's set of mid rates to PLN.
type Table struct {
	EffectiveDate string
	Rates         map[string]float64
}

// Rate returns the mid rate for a currency code, defaulting to 1 for PLN
// and unknown codes.
func (t Table) Rate(code string) float64 {
	if code == "" || code == "PLN" {
		return 1.0
	}
	if r, ok := t.Rates[code]; ok {
		return r
	}
	return 1.0
}

// ToPLN converts an amount to PLN, rounded to two decimals.
func (t Table) ToPLN(amount decimal.Decimal, currency string) decimal.Decimal {
	rate := t.Rate(currency)
	return amount.Mul(decimal.NewFromFloat(rate)).Round(2)
}

// Client fetches NBP table A rates. Results are cached per calendar day in
// an explicit cache value owned by the client, never ambient state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache *cachedTable
}

type cachedTable struct {
	day   string // local calendar day the table was fetched on
	table Table
}

// New creates an NBP rates client.
func New(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logger,
		now:        time.Now,
	}
}

// NewWithBaseURL creates a client against a custom endpoint, used by tests.
func NewWithBaseURL(baseURL string, logger *zap.Logger) *Client {
	c := New(logger)
	c.baseURL = baseURL
	return c
}

type nbpTable struct {
	EffectiveDate string `json:"effectiveDate"`
	Rates         []struct {
		Code string  `json:"code"`
		Mid  float64 `json:"mid"`
	} `json:"rates"`
}

// Today returns the current rate table: today's cached result when present,
// otherwise a fresh fetch, otherwise the offline fallback. It never fails;
// rate-source trouble must not block dunning.
func (c *Client) Today(ctx context.Context) Table {
	day := c.now().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache != nil && c.cache.day == day {
		metrics.RecordRateFetch("cache")
		return c.cache.table
	}

	table, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("nbp rates unavailable, using offline fallback", zap.Error(err))
		metrics.RecordRateFetch("fallback")
		rates := make(map[string]float64, len(fallbackRates))
		for code, rate := range fallbackRates {
			rates[code] = rate
		}
		table = Table{EffectiveDate: "offline", Rates: rates}
	} else {
		metrics.RecordRateFetch("nbp")
	}

	c.cache = &cachedTable{day: day, table: table}
	return table
}

func (c *Client) fetch(ctx context.Context) (Table, error) {
	url := c.baseURL + "/exchangerates/tables/A/?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch nbp table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("nbp returned status %d", resp.StatusCode)
	}

	var tables []nbpTable
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		return Table{}, fmt.Errorf("decode nbp response: %w", err)
	}
	if len(tables) == 0 {
		return Table{}, fmt.Errorf("nbp returned no tables")
	}

	rates := map[string]float64{"PLN": 1.0}
	for _, row := range tables[0].Rates {
		rates[row.Code] = row.Mid
	}

	c.logger.Debug("nbp rates fetched",
		zap.String("effective_date", tables[0].EffectiveDate),
		zap.Int("currencies", len(rates)),
	)
	return Table{EffectiveDate: tables[0].EffectiveDate, Rates: rates}, nil
}
