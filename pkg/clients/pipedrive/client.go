package pipedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Pipedrive API host
const DefaultBaseURL = "https://api.pipedrive.com"

// Client defines the interface for the Pipedrive calls the relay needs.
// Search methods return nil without error when nothing matches.
type Client interface {
	SearchPersonByEmail(ctx context.Context, email string) (*Person, error)
	CreatePerson(ctx context.Context, person NewPerson) (*Person, error)
	SearchLead(ctx context.Context, title string, personID int64) (*Lead, error)
	CreateLead(ctx context.Context, lead NewLead) (*Lead, error)
	CreateNote(ctx context.Context, note NewNote) error
}

// Person is a Pipedrive contact
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Lead is a Pipedrive lead. Lead ids are UUID strings.
type Lead struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PersonID int64  `json:"person_id,omitempty"`
}

// ContactValue is one email address or phone number of a person
type ContactValue struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Label   string `json:"label,omitempty"`
}

type NewPerson struct {
	Name      string         `json:"name"`
	Emails    []ContactValue `json:"email,omitempty"`
	Phones    []ContactValue `json:"phone,omitempty"`
	OwnerID   int64          `json:"owner_id,omitempty"`
	VisibleTo string         `json:"visible_to,omitempty"`
}

type NewLead struct {
	Title     string `json:"title"`
	PersonID  int64  `json:"person_id"`
	OwnerID   int64  `json:"owner_id,omitempty"`
	VisibleTo string `json:"visible_to,omitempty"`
}

type NewNote struct {
	Content  string `json:"content"`
	LeadID   string `json:"lead_id,omitempty"`
	PersonID int64  `json:"person_id,omitempty"`
}

type clientImpl struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Pipedrive client. An empty baseURL selects the public API.
func NewClient(apiToken, baseURL string, httpClient *http.Client, logger *zap.Logger) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &clientImpl{
		apiToken:   apiToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data"`
	Error   string `json:"error,omitempty"`
}

type searchData[T any] struct {
	Items []struct {
		Item T `json:"item"`
	} `json:"items"`
}

func (c *clientImpl) SearchPersonByEmail(ctx context.Context, email string) (*Person, error) {
	params := url.Values{}
	params.Set("term", email)
	params.Set("fields", "email")
	params.Set("exact_match", "true")
	params.Set("limit", "1")

	var resp envelope[searchData[Person]]
	if err := c.do(ctx, http.MethodGet, "/v1/persons/search", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("error searching for person: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 {
		return nil, nil
	}

	person := resp.Data.Items[0].Item
	c.logger.Debug("Found existing Pipedrive person", zap.Int64("person_id", person.ID))
	return &person, nil
}

func (c *clientImpl) CreatePerson(ctx context.Context, person NewPerson) (*Person, error) {
	var resp envelope[Person]
	if err := c.do(ctx, http.MethodPost, "/v1/persons", nil, person, &resp); err != nil {
		return nil, fmt.Errorf("error creating person: %w", err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.ID == 0 {
		return nil, nil
	}

	c.logger.Info("Created Pipedrive person", zap.Int64("person_id", resp.Data.ID))
	return resp.Data, nil
}

func (c *clientImpl) SearchLead(ctx context.Context, title string, personID int64) (*Lead, error) {
	params := url.Values{}
	params.Set("term", title)
	params.Set("fields", "title")
	params.Set("person_id", strconv.FormatInt(personID, 10))
	params.Set("exact_match", "true")
	params.Set("limit", "1")

	var resp envelope[searchData[Lead]]
	if err := c.do(ctx, http.MethodGet, "/v1/leads/search", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("error searching for lead: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 {
		return nil, nil
	}

	lead := resp.Data.Items[0].Item
	c.logger.Debug("Found existing Pipedrive lead", zap.String("lead_id", lead.ID))
	return &lead, nil
}

func (c *clientImpl) CreateLead(ctx context.Context, lead NewLead) (*Lead, error) {
	var resp envelope[Lead]
	if err := c.do(ctx, http.MethodPost, "/v1/leads", nil, lead, &resp); err != nil {
		return nil, fmt.Errorf("error creating lead: %w", err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.ID == "" {
		return nil, nil
	}

	c.logger.Info("Created Pipedrive lead", zap.String("lead_id", resp.Data.ID))
	return resp.Data, nil
}

func (c *clientImpl) CreateNote(ctx context.Context, note NewNote) error {
	var resp envelope[struct {
		ID int64 `json:"id"`
	}]
	if err := c.do(ctx, http.MethodPost, "/v1/notes", nil, note, &resp); err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("error from Pipedrive API: note not created: %s", resp.Error)
	}
	return nil
}

// do sends one API request. payload, when non-nil, is sent as the JSON body
// and the JSON response is decoded into out.
func (c *clientImpl) do(ctx context.Context, method, path string, params url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error creating payload: %w", err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("x-api-token", c.apiToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("error from Pipedrive API (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
