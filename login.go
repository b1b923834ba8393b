package schwab

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/pquerna/otp/totp"
)

const (
	loginUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	loginNavigationTimeout = 60 * time.Second
	loginSelectorTimeout   = 30 * time.Second
	// loginCallbackTimeout is generous: the account holder may still have to
	// answer a 2FA prompt or click through the consent screens before Schwab
	// redirects to the callback URL.
	loginCallbackTimeout = 5 * time.Minute
)

// Login drives a Chromium window through the authorization flow with
// Playwright: it opens AuthorizeURL, fills in the account holder's
// credentials, waits for the redirect to the callback URL, and exchanges the
// captured authorization code. When totpSecret is set, a TOTP code is
// generated and appended to the password, which satisfies Schwab's
// authenticator-app second factor in one submit.
//
// The browser runs headful: Schwab rejects headless sessions, and remaining
// consent or 2FA screens are completed by the user in the open window.
func (c *Client) Login(ctx context.Context, username, password, totpSecret string) error {
	fullPassword := password
	if totpSecret != "" {
		code, err := totp.GenerateCode(totpSecret, time.Now())
		if err != nil {
			return fmt.Errorf("schwab: generate totp code: %w", err)
		}
		fullPassword = password + code
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("schwab: start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(false),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-automation",
		},
	})
	if err != nil {
		return fmt.Errorf("schwab: launch browser: %w", err)
	}
	defer browser.Close()

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(loginUserAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return fmt.Errorf("schwab: create browser context: %w", err)
	}
	defer browserCtx.Close()

	page, err := browserCtx.NewPage()
	if err != nil {
		return fmt.Errorf("schwab: create page: %w", err)
	}

	c.logger.Debug().Msg("opening authorization page")
	_, err = page.Goto(c.AuthorizeURL(""), playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(loginNavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("schwab: open authorization page: %w", err)
	}

	_, err = page.WaitForSelector("#loginIdInput", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(loginSelectorTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("schwab: wait for login form: %w", err)
	}

	c.logger.Debug().Msg("submitting credentials")
	if err := page.Locator("#loginIdInput").Fill(username); err != nil {
		return fmt.Errorf("schwab: fill login id: %w", err)
	}
	if err := page.Locator("#passwordInput").Fill(fullPassword); err != nil {
		return fmt.Errorf("schwab: fill password: %w", err)
	}
	if err := page.Locator("#passwordInput").Press("Enter"); err != nil {
		return fmt.Errorf("schwab: submit login: %w", err)
	}

	c.logger.Debug().Msg("waiting for callback redirect")
	callbackPattern := regexp.MustCompile("^" + regexp.QuoteMeta(c.callbackURL))
	err = page.WaitForURL(callbackPattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(loginCallbackTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("schwab: timed out waiting for callback redirect: %w", err)
	}

	code, err := CodeFromRedirectURL(page.URL())
	if err != nil {
		return err
	}

	if _, err := c.ExchangeCode(ctx, code); err != nil {
		return err
	}
	return nil
}
