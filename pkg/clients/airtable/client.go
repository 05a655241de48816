package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Airtable REST API root
const DefaultBaseURL = "https://api.airtable.com/v0"

// Client defines the interface for interacting with Airtable API
type Client interface {
	CreateRecord(ctx context.Context, table string, fields map[string]any) (string, error)
}

type clientImpl struct {
	apiKey     string
	baseID     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Airtable client. An empty baseURL selects the public API.
func NewClient(apiKey, baseID, baseURL string, httpClient *http.Client, logger *zap.Logger) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &clientImpl{
		apiKey:     apiKey,
		baseID:     baseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateRecord inserts one record and returns its Airtable id
func (c *clientImpl) CreateRecord(ctx context.Context, table string, fields map[string]any) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))

	// Format data for Airtable API
	payload := map[string]any{
		"records": []map[string]any{
			{
				"fields": fields,
			},
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Add("Authorization", "Bearer "+c.apiKey)
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error creating Airtable record: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error from Airtable API: %s", string(body))
	}

	var response struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if len(response.Records) == 0 {
		return "", fmt.Errorf("error from Airtable API: no record created")
	}

	c.logger.Debug("Created Airtable record", zap.String("table", table), zap.String("record_id", response.Records[0].ID))
	return response.Records[0].ID, nil
}
