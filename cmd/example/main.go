package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/michaeldrennen/schwab-api-go"
	"github.com/rs/zerolog"
)

func main() {
	// Load .env from project root (assuming we run from cmd/example or root)
	// Try loading from parent directory if not found in current
	if err := godotenv.Load("../../.env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("Could not load ../../.env or ../.env, trying .env")
			godotenv.Load(".env")
		}
	}

	apiKey := os.Getenv("SCHWAB_API_KEY")
	apiSecret := os.Getenv("SCHWAB_API_SECRET")
	callbackURL := os.Getenv("SCHWAB_CALLBACK_URL")
	if apiKey == "" || apiSecret == "" || callbackURL == "" {
		log.Fatal("SCHWAB_API_KEY, SCHWAB_API_SECRET and SCHWAB_CALLBACK_URL must be set")
	}

	tokenPath := os.Getenv("SCHWAB_TOKEN_PATH")
	if tokenPath == "" {
		tokenPath = "schwab_token.json"
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if os.Getenv("SCHWAB_DEBUG") == "" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	client, err := schwab.NewClient(schwab.Config{
		APIKey:      apiKey,
		APISecret:   apiSecret,
		CallbackURL: callbackURL,
		Logger:      &logger,
		TokenStore:  schwab.NewFileTokenStore(tokenPath),
	})
	if err != nil {
		log.Fatalf("Failed to build client: %v", err)
	}

	ctx := context.Background()

	if client.Token() == nil {
		if err := authorize(ctx, client); err != nil {
			log.Fatalf("Authorization failed: %v", err)
		}
		fmt.Println("Authorization successful!")
	}

	fmt.Println("Fetching account numbers...")
	numbers, err := client.AccountNumbers(ctx)
	if err != nil {
		log.Fatalf("Failed to get account numbers: %v", err)
	}
	for _, entry := range numbers {
		if m, ok := entry.(map[string]any); ok {
			fmt.Printf("Account %v -> hash %v\n", m["accountNumber"], m["hashValue"])
		}
	}

	fmt.Println("Fetching balances...")
	accounts, err := client.Accounts(ctx, false)
	if err != nil {
		log.Fatalf("Failed to get accounts: %v", err)
	}
	for _, entry := range accounts {
		account, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		sec, _ := account["securitiesAccount"].(map[string]any)
		balances, _ := sec["currentBalances"].(map[string]any)
		fmt.Printf("Account %v\n", sec["accountNumber"])
		fmt.Printf("  Liquidation Value: %v\n", balances["liquidationValue"])
		fmt.Printf("  Cash: %v\n", balances["cashBalance"])
	}

	fmt.Println("Fetching a quote...")
	quote, err := client.Quote(ctx, "AAPL", nil)
	if err != nil {
		log.Fatalf("Failed to get quote: %v", err)
	}
	if aapl, ok := quote["AAPL"].(map[string]any); ok {
		if q, ok := aapl["quote"].(map[string]any); ok {
			fmt.Printf("AAPL last: %v\n", q["lastPrice"])
		}
	}

	if len(numbers) > 0 {
		if m, ok := numbers[0].(map[string]any); ok {
			if hash, ok := m["hashValue"].(string); ok {
				fmt.Println("Fetching recent transactions...")
				txns, err := client.Transactions(ctx, hash, schwab.TransactionsQuery{
					Start: time.Now().AddDate(0, 0, -30),
				})
				if err != nil {
					log.Fatalf("Failed to get transactions: %v", err)
				}
				fmt.Printf("%d transactions in the last 30 days\n", len(txns))
			}
		}
	}
}

// authorize obtains the first token. With SCHWAB set (username:password:totpSecret)
// it drives the login page in a browser; otherwise it prints the authorization
// URL and waits for the redirected URL to be pasted back.
func authorize(ctx context.Context, client *schwab.Client) error {
	if creds := os.Getenv("SCHWAB"); creds != "" {
		first := strings.Split(strings.Split(creds, ",")[0], ":")
		if len(first) < 3 {
			return fmt.Errorf("invalid SCHWAB format, expected username:password:totpSecret")
		}
		username, password, totpSecret := first[0], first[1], first[2]
		if totpSecret == "NA" {
			totpSecret = ""
		}
		log.Printf("Attempting login for user: %s", username)
		return client.Login(ctx, username, password, totpSecret)
	}

	fmt.Println("Open this URL, log in, and approve access:")
	fmt.Println(client.AuthorizeURL(""))
	fmt.Print("Paste the full redirect URL here: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("no redirect URL entered")
	}
	code, err := schwab.CodeFromRedirectURL(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return err
	}
	_, err = client.ExchangeCode(ctx, code)
	return err
}
