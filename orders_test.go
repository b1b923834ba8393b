package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersQueryValues(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults to the last 60 days", func(t *testing.T) {
		values := OrdersQuery{}.values(now)
		assert.Equal(t, "2024-04-02T12:00:00.000Z", values.Get("fromEnteredTime"))
		assert.Equal(t, "2024-06-01T12:00:00.000Z", values.Get("toEnteredTime"))
		assert.Empty(t, values.Get("maxResults"))
		assert.Empty(t, values.Get("status"))
	})

	t.Run("explicit fields", func(t *testing.T) {
		query := OrdersQuery{
			MaxResults: 50,
			From:       time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
			To:         time.Date(2024, 5, 2, 16, 0, 0, 0, time.UTC),
			Status:     "FILLED",
		}
		values := query.values(now)
		assert.Equal(t, "50", values.Get("maxResults"))
		assert.Equal(t, "2024-05-01T09:30:00.000Z", values.Get("fromEnteredTime"))
		assert.Equal(t, "2024-05-02T16:00:00.000Z", values.Get("toEnteredTime"))
		assert.Equal(t, "FILLED", values.Get("status"))
	})

	t.Run("non-utc times are converted", func(t *testing.T) {
		est := time.FixedZone("EST", -5*3600)
		query := OrdersQuery{From: time.Date(2024, 5, 1, 9, 30, 0, 0, est)}
		values := query.values(now)
		assert.Equal(t, "2024-05-01T14:30:00.000Z", values.Get("fromEnteredTime"))
	})
}

func TestOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trader/v1/accounts/AF12B3/orders", r.URL.Path)
		query := r.URL.Query()
		assert.NotEmpty(t, query.Get("fromEnteredTime"))
		assert.NotEmpty(t, query.Get("toEnteredTime"))
		assert.Equal(t, "WORKING", query.Get("status"))
		fmt.Fprint(w, `[{"orderId":456}]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	orders, err := c.Orders(context.Background(), "AF12B3", OrdersQuery{Status: "WORKING"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = c.Orders(context.Background(), "", OrdersQuery{})
	assert.EqualError(t, err, "schwab: account hash is required")
}

func TestAllOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trader/v1/orders", r.URL.Path)
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	orders, err := c.AllOrders(context.Background(), OrdersQuery{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trader/v1/accounts/AF12B3/orders/456", r.URL.Path)
		fmt.Fprint(w, `{"orderId":456,"status":"FILLED"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	order, err := c.Order(context.Background(), "AF12B3", 456)
	require.NoError(t, err)
	assert.Equal(t, float64(456), order["orderId"])
}

func TestPlaceOrder(t *testing.T) {
	t.Run("returns the id from the location header", func(t *testing.T) {
		var gotBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/trader/v1/accounts/AF12B3/orders", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &gotBody))
			w.Header().Set("Location", "https://api.schwabapi.com/trader/v1/accounts/AF12B3/orders/1003811730601")
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		order, err := MarketEquityOrder(InstructionBuy, "AAPL", 10)
		require.NoError(t, err)

		c := newTestClient(t, server.URL)
		id, err := c.PlaceOrder(context.Background(), "AF12B3", order)
		require.NoError(t, err)
		assert.Equal(t, int64(1003811730601), id)
		assert.Equal(t, "MARKET", gotBody["orderType"])
	})

	t.Run("missing location header is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		order, err := MarketEquityOrder(InstructionBuy, "AAPL", 10)
		require.NoError(t, err)

		c := newTestClient(t, server.URL)
		id, err := c.PlaceOrder(context.Background(), "AF12B3", order)
		require.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("rejection surfaces the error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"Order validation failed","errors":["Quantity exceeds buying power"]}`)
		}))
		defer server.Close()

		order, err := MarketEquityOrder(InstructionBuy, "AAPL", 1000000)
		require.NoError(t, err)

		c := newTestClient(t, server.URL)
		_, err = c.PlaceOrder(context.Background(), "AF12B3", order)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Contains(t, apiErr.Error(), "Quantity exceeds buying power")
	})
}

func TestReplaceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/trader/v1/accounts/AF12B3/orders/456", r.URL.Path)
		w.Header().Set("Location", "https://api.schwabapi.com/trader/v1/accounts/AF12B3/orders/457")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	order, err := LimitEquityOrder(InstructionSell, "AAPL", 10, 195.50)
	require.NoError(t, err)

	c := newTestClient(t, server.URL)
	id, err := c.ReplaceOrder(context.Background(), "AF12B3", 456, order)
	require.NoError(t, err)
	assert.Equal(t, int64(457), id)
}

func TestCancelOrder(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		assert.Equal(t, "/trader/v1/accounts/AF12B3/orders/456", r.URL.Path)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.CancelOrder(context.Background(), "AF12B3", 456)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestPreviewOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trader/v1/accounts/AF12B3/previewOrder", r.URL.Path)
		fmt.Fprint(w, `{"orderStrategy":{"status":"ACCEPTED"},"commissionAndFee":{}}`)
	}))
	defer server.Close()

	order, err := MarketEquityOrder(InstructionBuy, "AAPL", 10)
	require.NoError(t, err)

	c := newTestClient(t, server.URL)
	preview, err := c.PreviewOrder(context.Background(), "AF12B3", order)
	require.NoError(t, err)
	assert.NotNil(t, preview["orderStrategy"])
}

func TestMarketEquityOrder(t *testing.T) {
	order, err := MarketEquityOrder(InstructionBuy, "AAPL", 10)
	require.NoError(t, err)

	assert.Equal(t, "MARKET", order["orderType"])
	assert.Equal(t, "NORMAL", order["session"])
	assert.Equal(t, "DAY", order["duration"])
	assert.Equal(t, "SINGLE", order["orderStrategyType"])
	assert.NotContains(t, order, "price")

	legs, ok := order["orderLegCollection"].([]any)
	require.True(t, ok)
	require.Len(t, legs, 1)
	leg, ok := legs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, InstructionBuy, leg["instruction"])
	assert.Equal(t, float64(10), leg["quantity"])

	instrument, ok := leg["instrument"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AAPL", instrument["symbol"])
	assert.Equal(t, "EQUITY", instrument["assetType"])
}

func TestLimitEquityOrder(t *testing.T) {
	order, err := LimitEquityOrder(InstructionSell, "MSFT", 5, 420.69)
	require.NoError(t, err)
	assert.Equal(t, "LIMIT", order["orderType"])
	assert.Equal(t, "420.69", order["price"])

	_, err = LimitEquityOrder(InstructionSell, "MSFT", 5, 0)
	assert.EqualError(t, err, "schwab: limit price must be positive")
}

func TestEquityOrder_InvalidInstruction(t *testing.T) {
	_, err := MarketEquityOrder("INVALID", "AAPL", 1)
	if err == nil {
		t.Fatal("expected error for invalid instruction")
	}
	if err.Error() != "schwab: instruction must be one of BUY, SELL, SELL_SHORT, BUY_TO_COVER" {
		t.Errorf("unexpected error: %v", err)
	}

	_, err = MarketEquityOrder("", "AAPL", 1)
	if err == nil {
		t.Fatal("expected error for empty instruction")
	}
}

func TestEquityOrder_Validation(t *testing.T) {
	_, err := MarketEquityOrder(InstructionBuy, "", 1)
	assert.EqualError(t, err, "schwab: symbol is required")

	_, err = MarketEquityOrder(InstructionBuy, "AAPL", 0)
	assert.EqualError(t, err, "schwab: quantity must be positive")

	_, err = MarketEquityOrder(InstructionBuy, "AAPL", -5)
	assert.EqualError(t, err, "schwab: quantity must be positive")
}

func TestOrderIDFromLocation(t *testing.T) {
	cases := []struct {
		location string
		want     int64
	}{
		{"https://api.schwabapi.com/trader/v1/accounts/AF12B3/orders/1003811730601", 1003811730601},
		{"/trader/v1/accounts/AF12B3/orders/456", 456},
		{"456", 456},
		{"", 0},
		{"https://api.schwabapi.com/trader/v1/accounts/AF12B3/orders/", 0},
		{"https://api.schwabapi.com/trader/v1/accounts/AF12B3/orders/not-a-number", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, orderIDFromLocation(tc.location), "location %q", tc.location)
	}
}
