package schwab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TransactionsQuery filters transaction listings. When Start or End is zero
// the window defaults to the last 90 days; the API caps it at one year.
type TransactionsQuery struct {
	Start  time.Time
	End    time.Time
	Types  []string // e.g. "TRADE", "DIVIDEND_OR_INTEREST", "ACH_RECEIPT"
	Symbol string
}

func (q TransactionsQuery) values(now time.Time) url.Values {
	start, end := q.Start, q.End
	if start.IsZero() {
		start = now.AddDate(0, 0, -90)
	}
	if end.IsZero() {
		end = now
	}

	query := url.Values{}
	query.Set("startDate", isoMillisUTC(start))
	query.Set("endDate", isoMillisUTC(end))
	if len(q.Types) > 0 {
		query.Set("types", strings.Join(q.Types, ","))
	}
	if q.Symbol != "" {
		query.Set("symbol", q.Symbol)
	}
	return query
}

// Transactions returns the transactions of one account that match the query.
func (c *Client) Transactions(ctx context.Context, accountHash string, query TransactionsQuery) ([]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	return c.getList(ctx, c.traderURL(transactionsPath(accountHash), query.values(time.Now())))
}

// Transaction returns a single transaction by its activity ID.
func (c *Client) Transaction(ctx context.Context, accountHash string, transactionID int64) (map[string]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	path := transactionsPath(accountHash) + "/" + strconv.FormatInt(transactionID, 10)
	return c.getObject(ctx, c.traderURL(path, nil))
}

func transactionsPath(accountHash string) string {
	return accountsPath + "/" + url.PathEscape(accountHash) + "/transactions"
}
