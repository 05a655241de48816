package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// DefaultVerifyURL is Google's token verification endpoint
const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Client defines the interface for checking a reCAPTCHA token
type Client interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type clientImpl struct {
	secret     string
	verifyURL  string
	minScore   float64
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client
type Option func(*clientImpl)

// WithVerifyURL points the client at a different verification endpoint
func WithVerifyURL(u string) Option {
	return func(c *clientImpl) { c.verifyURL = u }
}

// WithMinScore rejects v3 tokens scoring below min. Zero disables the check.
func WithMinScore(min float64) Option {
	return func(c *clientImpl) { c.minScore = min }
}

// WithHTTPClient replaces the HTTP client used for verification
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientImpl) { c.httpClient = hc }
}

// NewClient creates a new reCAPTCHA client
func NewClient(secret string, logger *zap.Logger, opts ...Option) Client {
	c := &clientImpl{
		secret:     secret,
		verifyURL:  DefaultVerifyURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (c *clientImpl) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	params := url.Values{}
	params.Set("secret", c.secret)
	params.Set("response", token)
	if remoteIP != "" {
		params.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("error verifying reCAPTCHA token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("error from reCAPTCHA API: %s", string(body))
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("error parsing response: %w", err)
	}

	ok := result.Success
	if ok && c.minScore > 0 && result.Score != nil && *result.Score < c.minScore {
		ok = false
	}

	c.logger.Debug("reCAPTCHA verification",
		zap.Bool("success", ok),
		zap.String("hostname", result.Hostname),
		zap.Strings("error_codes", result.ErrorCodes))
	return ok, nil
}
