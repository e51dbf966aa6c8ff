package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/agent"
	"github.com/gradpath/advisor/internal/classify"
	"github.com/gradpath/advisor/internal/compose"
	"github.com/gradpath/advisor/internal/config"
	"github.com/gradpath/advisor/internal/convo"
	"github.com/gradpath/advisor/internal/engine"
	"github.com/gradpath/advisor/internal/model"
	"github.com/gradpath/advisor/internal/records"
	"github.com/gradpath/advisor/internal/router"
)

func newTestServer(t *testing.T) (*httptest.Server, convo.ContextStore) {
	t.Helper()

	recordStore := records.NewMemory()
	require.NoError(t, recordStore.SeedFaculty(context.Background(), []model.FacultyRecord{
		{
			ID: "f-chen", Name: "Alice Chen", UniversityName: "Stanford University",
			ResearchAreas: []string{"machine learning"},
			Hiring:        model.HiringYes,
			LastScraped:   time.Now().UTC().Add(-24 * time.Hour),
		},
	}))

	scoringCfg := config.ScoringConfig{InterestWeight: 0.5, AvailabilityWeight: 0.3, RecencyWeight: 0.2, DecayHalfLifeDays: 30}
	routerCfg := config.RouterConfig{AgentTimeoutSecs: 5, TurnTimeoutSecs: 10, MaxMatches: 10, DegradedCeiling: 0.6}

	contexts := convo.NewMemory()
	conversational := agent.NewConversational(nil)
	r := router.New(
		classify.New(nil, config.ClassifierConfig{LexicalThreshold: 0.55}),
		conversational,
		routerCfg,
		agent.NewFaculty(recordStore, scoringCfg, nil),
		agent.NewProgram(recordStore, scoringCfg, nil),
		conversational,
	)
	e := engine.New(contexts, r, compose.New(routerCfg), routerCfg)

	srv := httptest.NewServer(newAPIHandler(e))
	t.Cleanup(srv.Close)
	return srv, contexts
}

func postChat(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	srv, contexts := newTestServer(t)

	resp, body := postChat(t, srv, `{"message":"Which professors work on machine learning?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionID string
	require.NoError(t, json.Unmarshal(body["session_id"], &sessionID))
	require.NotEmpty(t, sessionID)

	var matches []model.MatchResult
	require.NoError(t, json.Unmarshal(body["faculty_matches"], &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "Alice Chen", matches[0].Name)

	conv, err := contexts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 2)
}

func TestChatEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("empty message", func(t *testing.T) {
		resp, _ := postChat(t, srv, `{"message":""}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := postChat(t, srv, `{not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp, _ := postChat(t, srv, `{"message":"hello","session_id":"missing"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestConversationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := postChat(t, srv, `{"message":"Which professors work on machine learning?"}`)
	var sessionID string
	require.NoError(t, json.Unmarshal(body["session_id"], &sessionID))

	resp, err := http.Get(srv.URL + "/api/v1/conversations/" + sessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conv model.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	assert.Equal(t, sessionID, conv.ID)
	assert.Len(t, conv.Turns, 2)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/conversations/"+sessionID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/v1/conversations/" + sessionID)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}
