package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
)

type fakeAgent struct {
	lastInput model.QueryInput
	response  *model.AgentResponse
	err       error
}

func (f *fakeAgent) Initialize(ctx context.Context) error { return nil }

func (f *fakeAgent) Invoke(ctx context.Context, in model.QueryInput) (*model.AgentResponse, error) {
	f.lastInput = in
	return f.response, f.err
}

type fakeFeedbackStore struct {
	saved *repo.FeedbackRecord
	err   error
}

func (f *fakeFeedbackStore) AddFeedback(ctx context.Context, record *repo.FeedbackRecord) error {
	if f.err != nil {
		return f.err
	}
	record.ID = "fb-1"
	f.saved = record
	return nil
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAgentTurnEndpoint(t *testing.T) {
	agent := &fakeAgent{response: &model.AgentResponse{
		Content:        "25 days.",
		References:     []string{"Leave Policy"},
		ResponseID:     "r1",
		IsTaskComplete: true,
	}}
	router := New(agent, &fakeFeedbackStore{}, nil).Router()

	t.Run("valid request", func(t *testing.T) {
		rec := postJSON(t, router, "/hrpolicy/agent", map[string]string{
			"session_id": "s1",
			"user_input": "how much annual leave do I get?",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var out model.AgentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "25 days.", out.Content)
		assert.Equal(t, []string{"Leave Policy"}, out.References)
		assert.Equal(t, "r1", out.ResponseID)
		assert.Equal(t, "s1", agent.lastInput.SessionID)
	})

	t.Run("missing session_id", func(t *testing.T) {
		rec := postJSON(t, router, "/hrpolicy/agent", map[string]string{"user_input": "hi"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user_input", func(t *testing.T) {
		rec := postJSON(t, router, "/hrpolicy/agent", map[string]string{"session_id": "s1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hrpolicy/agent", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAgentTurnEndpointAgentFailure(t *testing.T) {
	agent := &fakeAgent{err: errors.New("model exploded")}
	router := New(agent, &fakeFeedbackStore{}, nil).Router()

	rec := postJSON(t, router, "/hrpolicy/agent", map[string]string{
		"session_id": "s1",
		"user_input": "hi",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	store := &fakeFeedbackStore{}
	router := New(&fakeAgent{}, store, nil).Router()

	t.Run("valid feedback", func(t *testing.T) {
		rec := postJSON(t, router, "/feedback", map[string]string{
			"session_id":  "s1",
			"response_id": "r1",
			"feedback":    "the answer was wrong",
		})

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, store.saved)
		assert.Equal(t, "r1", store.saved.ResponseID)
		assert.Equal(t, "the answer was wrong", store.saved.Feedback)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postJSON(t, router, "/feedback", map[string]string{"session_id": "s1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := New(&fakeAgent{}, &fakeFeedbackStore{}, nil).Router()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
