// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"property-concierge/internal/common/config"
	"property-concierge/internal/common/logger"
	"property-concierge/internal/intent"
	"property-concierge/internal/llm"
	"property-concierge/internal/responder"
	"property-concierge/internal/session"
	"property-concierge/internal/store"
)

// fakeCompleter stands in for the Groq client in both the router and the
// responder. When replies is set, each call pops the next one; otherwise
// every call returns reply.
type fakeCompleter struct {
	reply   string
	replies []string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) > 0 {
		next := f.replies[0]
		f.replies = f.replies[1:]
		return next, nil
	}
	return f.reply, nil
}

// Logger adapters for packages that declare their own Logger interfaces.
type intentLoggerAdapter struct {
	logger.Logger
}

func (a *intentLoggerAdapter) With(fields map[string]interface{}) intent.Logger {
	return &intentLoggerAdapter{a.Logger.With(fields)}
}

type responderLoggerAdapter struct {
	logger.Logger
}

func (a *responderLoggerAdapter) With(fields map[string]interface{}) responder.Logger {
	return &responderLoggerAdapter{a.Logger.With(fields)}
}

type storeLoggerAdapter struct {
	logger.Logger
}

func (a *storeLoggerAdapter) With(fields map[string]interface{}) store.Logger {
	return &storeLoggerAdapter{a.Logger.With(fields)}
}

type sessionLoggerAdapter struct {
	logger.Logger
}

func (a *sessionLoggerAdapter) With(fields map[string]interface{}) session.Logger {
	return &sessionLoggerAdapter{a.Logger.With(fields)}
}

type serverFixture struct {
	server *Server
	mock   sqlmock.Sqlmock
	db     *sql.DB
	fc     *fakeCompleter
}

func newFixture(t *testing.T, apiKey string) *serverFixture {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	fc := &fakeCompleter{reply: `{"type": "general", "propertyId": null}`}

	properties := store.NewPropertyStore(db, &storeLoggerAdapter{log})
	conversations := store.NewConversationStore(db, &storeLoggerAdapter{log})
	messages := store.NewMessageStore(db, &storeLoggerAdapter{log})
	cache := store.NewPropertyCache(properties, nil, time.Minute, 300, &storeLoggerAdapter{log})
	sessions := session.NewManager(conversations, properties, messages, &sessionLoggerAdapter{log})

	llmClient := llm.NewClient(&llm.Config{
		BaseURL: "http://localhost:0",
		APIKey:  apiKey,
		Model:   "llama3-8b-8192",
		Timeout: time.Second,
	}, &llmLoggerAdapter{log})

	srv := New(
		&config.Config{},
		intent.NewRouter(fc, &intentLoggerAdapter{log}),
		responder.New(fc, &responderLoggerAdapter{log}),
		sessions,
		cache,
		llmClient,
		nil, // observability is optional; its methods tolerate a nil receiver
		log,
	)

	return &serverFixture{server: srv, mock: mock, db: db, fc: fc}
}

type llmLoggerAdapter struct {
	logger.Logger
}

func (a *llmLoggerAdapter) With(fields map[string]interface{}) llm.Logger {
	return &llmLoggerAdapter{a.Logger.With(fields)}
}

func (f *serverFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_MethodAndCORS(t *testing.T) {
	f := newFixture(t, "test-key")

	rec := f.do(http.MethodOptions, "/chat", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = f.do(http.MethodGet, "/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChat_MissingMessages(t *testing.T) {
	f := newFixture(t, "test-key")

	for _, body := range []interface{}{
		map[string]interface{}{},
		map[string]interface{}{"messages": []interface{}{}},
		map[string]interface{}{"messages": "not a list"},
	} {
		rec := f.do(http.MethodPost, "/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, `Missing or invalid "messages" array`, resp["error"])
	}
}

func TestChat_SinglePropertyAnswer(t *testing.T) {
	f := newFixture(t, "test-key")

	rec := f.do(http.MethodPost, "/chat", map[string]interface{}{
		"messages": []map[string]string{
			{"role": "assistant", "content": "hi!"},
			{"role": "user", "content": "sunset villa"},
		},
		"property": map[string]string{
			"id":          "p1",
			"name":        "Sunset Villa",
			"address":     "123 Palm St",
			"description": "Pool, 3 bedrooms",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Based on the property record for \"Sunset Villa\":\n\nPool, 3 bedrooms", resp["content"])
}

func TestChat_ClientCandidateListPreferred(t *testing.T) {
	f := newFixture(t, "test-key")

	// No SQL expectations: the caller-supplied list must keep the store out
	// of the request entirely.
	rec := f.do(http.MethodPost, "/chat", map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": "sunset villa"},
		},
		"properties": []map[string]string{
			{"id": "p1", "name": "Sunset Villa", "description": "Pool, 3 bedrooms"},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["content"], "Based on our records for \"Sunset Villa\"")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestChat_ApologyBelowThreshold(t *testing.T) {
	f := newFixture(t, "test-key")

	rec := f.do(http.MethodPost, "/chat", map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": "what is the weather on mars?"},
		},
		"properties": []map[string]string{
			{"id": "p1", "name": "Sunset Villa"},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sorry — I don't have information about that.", resp["content"])
}

func TestChat_DatabaseFailure(t *testing.T) {
	f := newFixture(t, "test-key")

	f.mock.ExpectQuery("FROM properties").
		WithArgs(300).
		WillReturnError(assert.AnError)

	rec := f.do(http.MethodPost, "/chat", map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": "anything"},
		},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to read from database", resp["error"])
}

func TestDetect_EmptyPropertiesShortCircuits(t *testing.T) {
	f := newFixture(t, "test-key")

	rec := f.do(http.MethodPost, "/detect-property", map[string]interface{}{
		"message":    "hello",
		"properties": []interface{}{},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp detectResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "general", resp.Type)
	assert.Nil(t, resp.PropertyID)
	assert.Equal(t, 0, f.fc.calls, "no candidates means no model call")
}

func TestDetect_MissingMessage(t *testing.T) {
	f := newFixture(t, "test-key")

	rec := f.do(http.MethodPost, "/detect-property", map[string]interface{}{
		"properties": []map[string]string{{"id": "p1", "name": "Sunset Villa"}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, `Missing or invalid "message" field`, resp["error"])
}

func TestDetect_MissingAPIKey(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodPost, "/detect-property", map[string]interface{}{
		"message":    "about sunset villa",
		"properties": []map[string]string{{"id": "p1", "name": "Sunset Villa"}},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "LLM configuration missing", resp["error"])
}

func TestDetect_PropertyRoute(t *testing.T) {
	f := newFixture(t, "test-key")
	f.fc.reply = `{"type": "property", "propertyId": "p1"}`

	rec := f.do(http.MethodPost, "/detect-property", map[string]interface{}{
		"message":    "wifi at sunset villa?",
		"properties": []map[string]string{{"id": "p1", "name": "Sunset Villa"}},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp detectResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "property", resp.Type)
	assert.Equal(t, "p1", *resp.PropertyID)
}

func TestDetect_ClassifierFailureDegradesToGeneral(t *testing.T) {
	f := newFixture(t, "test-key")
	f.fc.err = assert.AnError

	rec := f.do(http.MethodPost, "/detect-property", map[string]interface{}{
		"message":    "wifi at sunset villa?",
		"properties": []map[string]string{{"id": "p1", "name": "Sunset Villa"}},
	})

	assert.Equal(t, http.StatusOK, rec.Code, "classification errors never surface")
	var resp detectResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "general", resp.Type)
	assert.Nil(t, resp.PropertyID)
}

func TestProperties_List(t *testing.T) {
	f := newFixture(t, "test-key")

	now := time.Now().UTC()
	f.mock.ExpectQuery("FROM properties").
		WithArgs(300).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "description", "extra", "slug", "created_at"}).
			AddRow("p1", "Sunset Villa", nil, nil, nil, nil, now))

	rec := f.do(http.MethodGet, "/properties", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp propertiesResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Properties, 1)
	assert.Equal(t, "Sunset Villa", resp.Properties[0].Name)
}
