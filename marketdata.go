package schwab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Quotes returns quotes for up to 500 symbols in one call. fields narrows
// the response roots (e.g. "quote", "fundamental"); indicative adds the
// indicative quotes of ETF symbols. Leave either nil for the API default.
func (c *Client) Quotes(ctx context.Context, symbols []string, fields []string, indicative *bool) (map[string]any, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("schwab: at least one symbol is required")
	}
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	if indicative != nil {
		query.Set("indicative", strconv.FormatBool(*indicative))
	}
	return c.getObject(ctx, c.marketURL(quotesPath, query))
}

// Quote returns the quote for a single symbol. Symbols with slashes or
// dollar signs, such as "BRK/B" or "$SPX", are escaped for the path.
func (c *Client) Quote(ctx context.Context, symbol string, fields []string) (map[string]any, error) {
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	query := url.Values{}
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	path := "/" + url.PathEscape(symbol) + "/quotes"
	return c.getObject(ctx, c.marketURL(path, query))
}

// OptionChainQuery narrows an option chain request. Zero fields are omitted
// and fall back to the API defaults (all contracts, all expirations).
type OptionChainQuery struct {
	ContractType           string // "CALL", "PUT", "ALL"
	StrikeCount            int
	IncludeUnderlyingQuote *bool
	Strategy               string // "SINGLE", "ANALYTICAL", "COVERED", "VERTICAL", ...
	Interval               float64
	Strike                 float64
	Range                  string // "ITM", "NTM", "OTM"
	FromDate               time.Time
	ToDate                 time.Time
	ExpMonth               string // "JAN" through "DEC", or "ALL"
	OptionType             string
}

func (q OptionChainQuery) values() url.Values {
	query := url.Values{}
	if q.ContractType != "" {
		query.Set("contractType", q.ContractType)
	}
	if q.StrikeCount > 0 {
		query.Set("strikeCount", strconv.Itoa(q.StrikeCount))
	}
	if q.IncludeUnderlyingQuote != nil {
		query.Set("includeUnderlyingQuote", strconv.FormatBool(*q.IncludeUnderlyingQuote))
	}
	if q.Strategy != "" {
		query.Set("strategy", q.Strategy)
	}
	if q.Interval > 0 {
		query.Set("interval", formatFloat(q.Interval))
	}
	if q.Strike > 0 {
		query.Set("strike", formatFloat(q.Strike))
	}
	if q.Range != "" {
		query.Set("range", q.Range)
	}
	if !q.FromDate.IsZero() {
		query.Set("fromDate", q.FromDate.UTC().Format(time.DateOnly))
	}
	if !q.ToDate.IsZero() {
		query.Set("toDate", q.ToDate.UTC().Format(time.DateOnly))
	}
	if q.ExpMonth != "" {
		query.Set("expMonth", q.ExpMonth)
	}
	if q.OptionType != "" {
		query.Set("optionType", q.OptionType)
	}
	return query
}

// OptionChains returns the option chain for an underlying symbol.
func (c *Client) OptionChains(ctx context.Context, symbol string, query OptionChainQuery) (map[string]any, error) {
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	values := query.values()
	values.Set("symbol", symbol)
	return c.getObject(ctx, c.marketURL(optionChainsPath, values))
}

// OptionExpirationChain returns the expiration dates of an underlying's
// option series, with expiration type and settlement for each.
func (c *Client) OptionExpirationChain(ctx context.Context, symbol string) (map[string]any, error) {
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	query := url.Values{"symbol": []string{symbol}}
	return c.getObject(ctx, c.marketURL(expirationChainPath, query))
}

// PriceHistoryQuery shapes a candle request. Period selects a window ending
// now; Start and End select an explicit window instead and win when set.
type PriceHistoryQuery struct {
	PeriodType    string // "day", "month", "year", "ytd"
	Period        int
	FrequencyType string // "minute", "daily", "weekly", "monthly"
	Frequency     int
	Start         time.Time
	End           time.Time
	ExtendedHours *bool
	PreviousClose *bool
}

func (q PriceHistoryQuery) values() url.Values {
	query := url.Values{}
	if q.PeriodType != "" {
		query.Set("periodType", q.PeriodType)
	}
	if q.Period > 0 {
		query.Set("period", strconv.Itoa(q.Period))
	}
	if q.FrequencyType != "" {
		query.Set("frequencyType", q.FrequencyType)
	}
	if q.Frequency > 0 {
		query.Set("frequency", strconv.Itoa(q.Frequency))
	}
	if !q.Start.IsZero() {
		query.Set("startDate", strconv.FormatInt(q.Start.UnixMilli(), 10))
	}
	if !q.End.IsZero() {
		query.Set("endDate", strconv.FormatInt(q.End.UnixMilli(), 10))
	}
	if q.ExtendedHours != nil {
		query.Set("needExtendedHoursData", strconv.FormatBool(*q.ExtendedHours))
	}
	if q.PreviousClose != nil {
		query.Set("needPreviousClose", strconv.FormatBool(*q.PreviousClose))
	}
	return query
}

// PriceHistory returns OHLCV candles for a symbol.
func (c *Client) PriceHistory(ctx context.Context, symbol string, query PriceHistoryQuery) (map[string]any, error) {
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	values := query.values()
	values.Set("symbol", symbol)
	return c.getObject(ctx, c.marketURL(priceHistoryPath, values))
}

// Movers returns the top movers of an index such as "$DJI", "$SPX" or
// "NASDAQ". sort orders the screen (e.g. "PERCENT_CHANGE_UP") and frequency
// filters by minimum move; zero values fall back to the API defaults.
func (c *Client) Movers(ctx context.Context, index, sort string, frequency int) (map[string]any, error) {
	if index == "" {
		return nil, fmt.Errorf("schwab: index is required")
	}
	query := url.Values{}
	if sort != "" {
		query.Set("sort", sort)
	}
	if frequency > 0 {
		query.Set("frequency", strconv.Itoa(frequency))
	}
	path := moversPath + "/" + url.PathEscape(index)
	return c.getObject(ctx, c.marketURL(path, query))
}

// MarketHours returns session hours for the given markets ("equity",
// "option", "bond", "future", "forex") on a date, today when date is zero.
func (c *Client) MarketHours(ctx context.Context, markets []string, date time.Time) (map[string]any, error) {
	if len(markets) == 0 {
		return nil, fmt.Errorf("schwab: at least one market is required")
	}
	query := url.Values{}
	query.Set("markets", strings.Join(markets, ","))
	if !date.IsZero() {
		query.Set("date", date.UTC().Format(time.DateOnly))
	}
	return c.getObject(ctx, c.marketURL(marketsPath, query))
}

// MarketHour returns session hours for a single market.
func (c *Client) MarketHour(ctx context.Context, market string, date time.Time) (map[string]any, error) {
	if market == "" {
		return nil, fmt.Errorf("schwab: market is required")
	}
	query := url.Values{}
	if !date.IsZero() {
		query.Set("date", date.UTC().Format(time.DateOnly))
	}
	path := marketsPath + "/" + url.PathEscape(market)
	return c.getObject(ctx, c.marketURL(path, query))
}

// Instruments searches instrument reference data. projection picks the
// match mode: "symbol-search", "symbol-regex", "desc-search", "desc-regex",
// "search" or "fundamental".
func (c *Client) Instruments(ctx context.Context, symbol, projection string) (map[string]any, error) {
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	if projection == "" {
		return nil, fmt.Errorf("schwab: projection is required")
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("projection", projection)
	return c.getObject(ctx, c.marketURL(instrumentsPath, query))
}

// Instrument looks up one instrument by CUSIP.
func (c *Client) Instrument(ctx context.Context, cusip string) (map[string]any, error) {
	if cusip == "" {
		return nil, fmt.Errorf("schwab: cusip is required")
	}
	path := instrumentsPath + "/" + url.PathEscape(cusip)
	return c.getObject(ctx, c.marketURL(path, nil))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
