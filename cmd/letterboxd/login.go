package letterboxd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/lepinkainen/rats/internal/automation"
)

const (
	signInPath   = "/sign-in/"
	fieldTimeout = 15 * time.Second
	loginTimeout = 30 * time.Second
)

var (
	usernameSelectors = []string{
		`//input[@id="field-username"]`,
		`//input[@type="text" and @autocomplete="username"]`,
		`//input[@name="username"]`,
	}
	passwordSelectors = []string{
		`//input[@id="field-password"]`,
		`//input[@type="password"]`,
		`//input[@name="password"]`,
	}
	submitSelectors = []string{
		`//form[contains(@class, 'js-sign-in-form')]//button[@type='submit']`,
		`//button[@type='submit' and contains(@class, 'standalone-flow-button')]`,
		`.standalone-flow-form button[type=submit]`,
	}
)

// login signs the browser session in. Private profiles need it; public
// ratings pages do not.
func login(ctx context.Context, session *automation.BrowserSession, baseURL, username, password string) error {
	slog.Info("Logging in to Letterboxd", "username", username)

	if err := session.Run(ctx, chromedp.Navigate(baseURL+signInPath)); err != nil {
		return fmt.Errorf("failed to open Letterboxd login page: %w", err)
	}

	usernameSelector, err := session.WaitForSelector(ctx, usernameSelectors, "username field", fieldTimeout)
	if err != nil {
		return err
	}

	// The form ships with disabled inputs until its script runs
	if err := session.Run(ctx, chromedp.Evaluate(`
		(function() {
			const username = document.querySelector('#field-username');
			const password = document.querySelector('#field-password');
			if (username) username.removeAttribute('disabled');
			if (password) password.removeAttribute('disabled');
		})()
	`, nil)); err != nil {
		slog.Debug("Failed to remove disabled attribute", "error", err)
	}

	if err := session.Run(ctx, chromedp.SendKeys(usernameSelector, username, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}

	passwordSelector, err := session.WaitForSelector(ctx, passwordSelectors, "password field", fieldTimeout)
	if err != nil {
		return err
	}
	if err := session.Run(ctx, chromedp.SendKeys(passwordSelector, password, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	buttonSelector, err := session.WaitForSelector(ctx, submitSelectors, "sign in button", fieldTimeout)
	if err != nil {
		return err
	}
	slog.Debug("Clicking sign in button", "selector", buttonSelector)
	if err := session.Run(ctx, chromedp.Click(buttonSelector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to click sign in: %w", err)
	}

	getURL := func() (string, error) { return session.CurrentURL(ctx) }
	if err := automation.WaitForURLChange(ctx, getURL, []string{signInPath}, loginTimeout); err != nil {
		return fmt.Errorf("letterboxd login did not complete: %w", err)
	}

	slog.Info("Letterboxd login completed")
	return nil
}
