// Package garmin speaks to the Garmin Connect REST API: SSO authentication,
// activity inventory listing, per-format activity export and activity upload.
//
// For details about the services used here, log in to a Garmin Connect
// account through the web browser and visit the API documentation pages for
// the REST service of interest.
package garmin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://connect.garmin.com"
	defaultSSOURL  = "https://sso.garmin.com"
)

// authTicketURLPattern extracts the auth ticket URL from the response of an
// authentication form submission. The URL is typically of the form
// https://connect.garmin.com/modern?ticket=ST-0123456-aBCDefgh1iJkLmN5opQ9R-cas.
var authTicketURLPattern = regexp.MustCompile(`response_url\s*=\s*"(https?:[^"]+)"`)

// Config holds the settings needed to open an authenticated session.
type Config struct {
	// Username is the Garmin Connect user name or email address.
	Username string
	// Password is the account password.
	Password string
	// BaseURL overrides the Garmin Connect endpoint. Empty means production.
	BaseURL string
	// SSOBaseURL overrides the single-sign-on endpoint. Empty means production.
	SSOBaseURL string
	// Timeout bounds individual HTTP requests. Zero means 30 seconds.
	Timeout time.Duration
	// Log receives client events. Nil discards them.
	Log *slog.Logger
}

// Client is an authenticated Garmin Connect session. A Client value exists
// only after Dial succeeded, so every method can assume a live session.
type Client struct {
	http    *http.Client
	baseURL string
	ssoURL  string
	log     *slog.Logger
}

// Dial authenticates against Garmin Connect and returns a connected client.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("garmin: username and password are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ssoURL := cfg.SSOBaseURL
	if ssoURL == "" {
		ssoURL = defaultSSOURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to create cookie jar: %w", err)
	}

	c := &Client{
		http:    &http.Client{Jar: jar, Timeout: timeout},
		baseURL: baseURL,
		ssoURL:  ssoURL,
		log:     log,
	}
	if err := c.authenticate(ctx, cfg.Username, cfg.Password); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) authenticate(ctx context.Context, username, password string) error {
	c.log.Info("authenticating user", "username", username)

	form := url.Values{
		"username": {username},
		"password": {password},
		"embed":    {"false"},
	}
	loginURL := c.ssoURL + "/sso/signin?" + url.Values{
		"service": {c.baseURL + "/modern"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("garmin: failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.ssoURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("garmin: login request failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("garmin: authentication failure (%d): did you enter valid credentials?", resp.StatusCode)
	}

	ticketURL, err := extractAuthTicketURL(string(body))
	if err != nil {
		return err
	}
	c.log.Debug("claiming auth ticket", "url", ticketURL)

	claim, err := c.get(ctx, ticketURL)
	if err != nil {
		return fmt.Errorf("garmin: failed to claim auth ticket: %w", err)
	}
	claimBody, err := readBody(claim)
	if err != nil {
		return err
	}
	if claim.StatusCode != http.StatusOK {
		return fmt.Errorf("garmin: failed to claim auth ticket %s: %d: %s",
			ticketURL, claim.StatusCode, claimBody)
	}

	// Touch base with the old API to initiate a legacy session. Certain
	// downloads fail without it.
	if legacy, err := c.get(ctx, c.baseURL+"/legacy/session"); err == nil {
		_, _ = readBody(legacy)
	}
	return nil
}

// extractAuthTicketURL pulls the auth ticket URL out of the HTML response of
// an auth form submission.
func extractAuthTicketURL(authResponse string) (string, error) {
	match := authTicketURLPattern.FindStringSubmatch(authResponse)
	if match == nil {
		return "", fmt.Errorf("garmin: unable to extract auth ticket URL: did you provide correct credentials?")
	}
	return strings.ReplaceAll(match[1], "\\", ""), nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// readBody drains and closes a response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to read response body: %w", err)
	}
	return body, nil
}
