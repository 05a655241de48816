package pipedrive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	Method string
	Path   string
	Query  url.Values
	Token  string
	Body   map[string]any
}

type fakeAPI struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]string
	status    int
}

func newFakeAPI(t *testing.T, responses map[string]string) (*fakeAPI, Client) {
	t.Helper()
	api := &fakeAPI{responses: responses, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Token:  r.Header.Get("x-api-token"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &c.Body)
		}

		api.mu.Lock()
		api.calls = append(api.calls, c)
		status := api.status
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(api.responses[r.Method+" "+r.URL.Path]))
	}))
	t.Cleanup(srv.Close)

	return api, NewClient("secret-token", srv.URL+"/", nil, zap.NewNop())
}

func (f *fakeAPI) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestSearchPersonByEmailFound(t *testing.T) {
	api, client := newFakeAPI(t, map[string]string{
		"GET /v1/persons/search": `{"success":true,"data":{"items":[{"result_score":1,"item":{"id":42,"name":"Jane Doe"}}]}}`,
	})

	person, err := client.SearchPersonByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, int64(42), person.ID)
	assert.Equal(t, "Jane Doe", person.Name)

	c := api.last()
	assert.Equal(t, "secret-token", c.Token)
	assert.Equal(t, "a@x.com", c.Query.Get("term"))
	assert.Equal(t, "email", c.Query.Get("fields"))
	assert.Equal(t, "true", c.Query.Get("exact_match"))
	assert.Equal(t, "1", c.Query.Get("limit"))
}

func TestSearchPersonByEmailMiss(t *testing.T) {
	_, client := newFakeAPI(t, map[string]string{
		"GET /v1/persons/search": `{"success":true,"data":{"items":[]}}`,
	})

	person, err := client.SearchPersonByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, person)
}

func TestCreatePerson(t *testing.T) {
	api, client := newFakeAPI(t, map[string]string{
		"POST /v1/persons": `{"success":true,"data":{"id":7,"name":"Jane Doe"}}`,
	})

	person, err := client.CreatePerson(context.Background(), NewPerson{
		Name:      "Jane Doe",
		Emails:    []ContactValue{{Value: "a@x.com", Primary: true, Label: "work"}},
		OwnerID:   3,
		VisibleTo: "3",
	})
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, int64(7), person.ID)

	body := api.last().Body
	assert.Equal(t, "Jane Doe", body["name"])
	assert.Equal(t, "3", body["visible_to"])
	assert.EqualValues(t, 3, body["owner_id"])
	assert.NotContains(t, body, "phone")
	emails := body["email"].([]any)
	require.Len(t, emails, 1)
	assert.Equal(t, map[string]any{"value": "a@x.com", "primary": true, "label": "work"}, emails[0])
}

func TestCreatePersonWithoutEntity(t *testing.T) {
	_, client := newFakeAPI(t, map[string]string{
		"POST /v1/persons": `{"success":false,"data":null}`,
	})

	person, err := client.CreatePerson(context.Background(), NewPerson{Name: "Jane"})
	require.NoError(t, err)
	assert.Nil(t, person)
}

func TestSearchLeadScopedToPerson(t *testing.T) {
	api, client := newFakeAPI(t, map[string]string{
		"GET /v1/leads/search": `{"success":true,"data":{"items":[{"item":{"id":"5d1c-lead","title":"Jane Doe"}}]}}`,
	})

	lead, err := client.SearchLead(context.Background(), "Jane Doe", 42)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "5d1c-lead", lead.ID)

	q := api.last().Query
	assert.Equal(t, "Jane Doe", q.Get("term"))
	assert.Equal(t, "title", q.Get("fields"))
	assert.Equal(t, "42", q.Get("person_id"))
	assert.Equal(t, "true", q.Get("exact_match"))
	assert.Equal(t, "1", q.Get("limit"))
}

func TestCreateLeadAndNote(t *testing.T) {
	api, client := newFakeAPI(t, map[string]string{
		"POST /v1/leads": `{"success":true,"data":{"id":"lead-1","title":"Jane Doe"}}`,
		"POST /v1/notes": `{"success":true,"data":{"id":99}}`,
	})

	lead, err := client.CreateLead(context.Background(), NewLead{Title: "Jane Doe", PersonID: 42, VisibleTo: "1"})
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "lead-1", lead.ID)
	assert.EqualValues(t, 42, api.last().Body["person_id"])

	require.NoError(t, client.CreateNote(context.Background(), NewNote{Content: "hello", LeadID: "lead-1", PersonID: 42}))
	body := api.last().Body
	assert.Equal(t, "hello", body["content"])
	assert.Equal(t, "lead-1", body["lead_id"])
	assert.EqualValues(t, 42, body["person_id"])
}

func TestCreateNoteRejected(t *testing.T) {
	_, client := newFakeAPI(t, map[string]string{
		"POST /v1/notes": `{"success":false,"error":"lead not found"}`,
	})

	err := client.CreateNote(context.Background(), NewNote{Content: "x"})
	assert.ErrorContains(t, err, "lead not found")
}

func TestNon2xxIsError(t *testing.T) {
	api, client := newFakeAPI(t, map[string]string{
		"GET /v1/persons/search": `{"success":false,"error":"unauthorized"}`,
	})
	api.mu.Lock()
	api.status = http.StatusUnauthorized
	api.mu.Unlock()

	_, err := client.SearchPersonByEmail(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "unauthorized")
}
