package schwab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Order instructions accepted by the equity order builders.
const (
	InstructionBuy        = "BUY"
	InstructionSell       = "SELL"
	InstructionSellShort  = "SELL_SHORT"
	InstructionBuyToCover = "BUY_TO_COVER"
)

// OrdersQuery filters order listings. When From or To is zero the window
// defaults to the last 60 days, the widest range the API accepts.
type OrdersQuery struct {
	MaxResults int
	From       time.Time
	To         time.Time
	Status     string // e.g. "WORKING", "FILLED", "CANCELED"
}

func (q OrdersQuery) values(now time.Time) url.Values {
	from, to := q.From, q.To
	if from.IsZero() {
		from = now.AddDate(0, 0, -60)
	}
	if to.IsZero() {
		to = now
	}

	query := url.Values{}
	query.Set("fromEnteredTime", isoMillisUTC(from))
	query.Set("toEnteredTime", isoMillisUTC(to))
	if q.MaxResults > 0 {
		query.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	return query
}

// Orders returns the orders of one account that match the query.
func (c *Client) Orders(ctx context.Context, accountHash string, query OrdersQuery) ([]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	return c.getList(ctx, c.traderURL(ordersPath(accountHash), query.values(time.Now())))
}

// AllOrders returns matching orders across every linked account.
func (c *Client) AllOrders(ctx context.Context, query OrdersQuery) ([]any, error) {
	return c.getList(ctx, c.traderURL(allOrdersPath, query.values(time.Now())))
}

// Order returns a single order by its ID.
func (c *Client) Order(ctx context.Context, accountHash string, orderID int64) (map[string]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	path := ordersPath(accountHash) + "/" + strconv.FormatInt(orderID, 10)
	return c.getObject(ctx, c.traderURL(path, nil))
}

// PlaceOrder submits an order body, either hand-built or from one of the
// builders below. On success it returns the new order's ID, parsed from the
// Location header; the ID is 0 when the header is missing.
func (c *Client) PlaceOrder(ctx context.Context, accountHash string, order map[string]any) (int64, error) {
	if accountHash == "" {
		return 0, fmt.Errorf("schwab: account hash is required")
	}
	resp, _, err := c.request(ctx, http.MethodPost, c.traderURL(ordersPath(accountHash), nil), order)
	if err != nil {
		return 0, err
	}
	return orderIDFromLocation(resp.Header.Get("Location")), nil
}

// ReplaceOrder cancels the given order and submits the new body in its
// place. It returns the replacement order's ID the same way PlaceOrder does.
func (c *Client) ReplaceOrder(ctx context.Context, accountHash string, orderID int64, order map[string]any) (int64, error) {
	if accountHash == "" {
		return 0, fmt.Errorf("schwab: account hash is required")
	}
	path := ordersPath(accountHash) + "/" + strconv.FormatInt(orderID, 10)
	resp, _, err := c.request(ctx, http.MethodPut, c.traderURL(path, nil), order)
	if err != nil {
		return 0, err
	}
	return orderIDFromLocation(resp.Header.Get("Location")), nil
}

// CancelOrder cancels a working order.
func (c *Client) CancelOrder(ctx context.Context, accountHash string, orderID int64) error {
	if accountHash == "" {
		return fmt.Errorf("schwab: account hash is required")
	}
	path := ordersPath(accountHash) + "/" + strconv.FormatInt(orderID, 10)
	_, _, err := c.request(ctx, http.MethodDelete, c.traderURL(path, nil), nil)
	return err
}

// PreviewOrder validates an order body without placing it and returns the
// commission and margin projection.
func (c *Client) PreviewOrder(ctx context.Context, accountHash string, order map[string]any) (map[string]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	path := accountsPath + "/" + url.PathEscape(accountHash) + "/previewOrder"
	_, body, err := c.request(ctx, http.MethodPost, c.traderURL(path, nil), order)
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// MarketEquityOrder builds a day market order body for an equity.
func MarketEquityOrder(instruction, symbol string, quantity float64) (map[string]any, error) {
	return equityOrder("MARKET", instruction, symbol, quantity, 0)
}

// LimitEquityOrder builds a day limit order body for an equity.
func LimitEquityOrder(instruction, symbol string, quantity, limitPrice float64) (map[string]any, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("schwab: limit price must be positive")
	}
	return equityOrder("LIMIT", instruction, symbol, quantity, limitPrice)
}

func equityOrder(orderType, instruction, symbol string, quantity, price float64) (map[string]any, error) {
	switch instruction {
	case InstructionBuy, InstructionSell, InstructionSellShort, InstructionBuyToCover:
	default:
		return nil, fmt.Errorf("schwab: instruction must be one of BUY, SELL, SELL_SHORT, BUY_TO_COVER")
	}
	if symbol == "" {
		return nil, fmt.Errorf("schwab: symbol is required")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("schwab: quantity must be positive")
	}

	order := map[string]any{
		"orderType":         orderType,
		"session":           "NORMAL",
		"duration":          "DAY",
		"orderStrategyType": "SINGLE",
		"orderLegCollection": []any{
			map[string]any{
				"instruction": instruction,
				"quantity":    quantity,
				"instrument": map[string]any{
					"symbol":    symbol,
					"assetType": "EQUITY",
				},
			},
		},
	}
	if orderType == "LIMIT" {
		order["price"] = strconv.FormatFloat(price, 'f', -1, 64)
	}
	return order, nil
}

func ordersPath(accountHash string) string {
	return accountsPath + "/" + url.PathEscape(accountHash) + "/orders"
}

// orderIDFromLocation pulls the trailing ID out of a Location header such as
// "https://api.schwabapi.com/trader/v1/accounts/ABC123/orders/456".
func orderIDFromLocation(location string) int64 {
	if location == "" {
		return 0
	}
	idx := strings.LastIndex(location, "/")
	id, err := strconv.ParseInt(location[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// isoMillisUTC renders a timestamp the way the order and transaction
// endpoints expect, e.g. "2024-03-29T14:30:00.000Z".
func isoMillisUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
