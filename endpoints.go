package schwab

// Production endpoints for the Schwab developer platform. OAuth lives under
// /v1/oauth, account and order data under /trader/v1, and market data under
// /marketdata/v1. The base URLs can be overridden through Config so tests
// can point the client at a local server.
const (
	DefaultAuthBaseURL       = "https://api.schwabapi.com/v1/oauth"
	DefaultTraderBaseURL     = "https://api.schwabapi.com/trader/v1"
	DefaultMarketDataBaseURL = "https://api.schwabapi.com/marketdata/v1"
)

// Trader API paths, relative to the trader base URL.
const (
	accountNumbersPath = "/accounts/accountNumbers"
	accountsPath       = "/accounts"
	allOrdersPath      = "/orders"
	userPreferencePath = "/userPreference"
)

// Market Data API paths, relative to the market data base URL.
const (
	quotesPath          = "/quotes"
	optionChainsPath    = "/chains"
	expirationChainPath = "/expirationchain"
	priceHistoryPath    = "/pricehistory"
	moversPath          = "/movers"
	marketsPath         = "/markets"
	instrumentsPath     = "/instruments"
)
