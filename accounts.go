package schwab

import (
	"context"
	"fmt"
	"net/url"
)

// AccountNumbers returns the account numbers the tokens are entitled to,
// each paired with the opaque hash value that all account-scoped endpoints
// take in place of the plain number.
func (c *Client) AccountNumbers(ctx context.Context) ([]any, error) {
	return c.getList(ctx, c.traderURL(accountNumbersPath, nil))
}

// Accounts returns balances for every linked account. Positions are included
// when includePositions is set.
func (c *Client) Accounts(ctx context.Context, includePositions bool) ([]any, error) {
	return c.getList(ctx, c.traderURL(accountsPath, positionsQuery(includePositions)))
}

// Account returns balances, and optionally positions, for the account
// identified by its hash value.
func (c *Client) Account(ctx context.Context, accountHash string, includePositions bool) (map[string]any, error) {
	if accountHash == "" {
		return nil, fmt.Errorf("schwab: account hash is required")
	}
	path := accountsPath + "/" + url.PathEscape(accountHash)
	return c.getObject(ctx, c.traderURL(path, positionsQuery(includePositions)))
}

// UserPreference returns account nicknames and the streamer connection
// settings for the logged-in user.
func (c *Client) UserPreference(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, c.traderURL(userPreferencePath, nil))
}

func positionsQuery(includePositions bool) url.Values {
	if !includePositions {
		return nil
	}
	return url.Values{"fields": []string{"positions"}}
}
