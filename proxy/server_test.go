package proxy

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
)

// scriptedLLM replays canned responses in order.
type scriptedLLM struct {
	responses []*LLMResponse
	err       error
	calls     []LLMRequest
}

func (s *scriptedLLM) Generate(_ context.Context, req LLMRequest) (*LLMResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.calls) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

type stubTool struct {
	name   string
	result string
	err    error
}

func (t stubTool) Name() string { return t.name }

func (t stubTool) Invoke(context.Context, string) (string, error) {
	return t.result, t.err
}

func newTestServer(llm LLMClient, tools ...Tool) *Server {
	return NewServer(":0", NewAgent(llm, tools, nil), nil, nil)
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestChatSuccess(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{{Reply: "hello there"}}}
	srv := newTestServer(llm)

	w := postChat(t, srv.Handler(), `{"message":"hi"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp.Text)
}

func TestChatMalformedBody(t *testing.T) {
	srv := newTestServer(&scriptedLLM{responses: []*LLMResponse{{Reply: "unused"}}})

	w := postChat(t, srv.Handler(), `{not json`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid request body", resp.Error)
	assert.Equal(t, w.Header().Get("X-Request-Id"), resp.RequestID)
}

func TestChatAgentFailureIsGeneric(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("api key leaked in this message")}
	srv := newTestServer(llm)

	w := postChat(t, srv.Handler(), `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "api key", "raw errors stay out of response bodies")

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "agent error", resp.Error)
	assert.NotEmpty(t, resp.RequestID)
}

func TestUnmatchedRouteIs404WithRequestID(t *testing.T) {
	srv := newTestServer(&scriptedLLM{responses: []*LLMResponse{{Reply: "unused"}}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"), "correlation header on every response")
}

func TestChatRunsRequestedTools(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{ToolCalls: []ToolCall{{Name: "market_data"}}},
		{Reply: "BTC is up"},
	}}
	srv := newTestServer(llm, stubTool{name: "market_data", result: `{"listing":[]}`})

	w := postChat(t, srv.Handler(), `{"message":"how is the market"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, llm.calls, 2)
	require.Len(t, llm.calls[1].Observations, 1)
	assert.Equal(t, "market_data", llm.calls[1].Observations[0].Tool)
	assert.Equal(t, `{"listing":[]}`, llm.calls[1].Observations[0].Content)
}

func TestChatToolFailureStillAnswers(t *testing.T) {
	llm := &scriptedLLM{responses: []*LLMResponse{
		{ToolCalls: []ToolCall{{Name: "market_data"}}},
		{Reply: "market data is unavailable right now"},
	}}
	srv := newTestServer(llm, stubTool{name: "market_data", err: errors.New("upstream 503")})

	w := postChat(t, srv.Handler(), `{"message":"how is the market"}`)

	assert.Equal(t, http.StatusOK, w.Code, "tool failure must not fail the turn")
	require.Len(t, llm.calls, 2)
	assert.Contains(t, llm.calls[1].Observations[0].Content, "tool failed")
}

func TestMarketDataToolEnvelope(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[{"symbol":"BTC","name":"Bitcoin","price_usd":"64000"}]}`))
	}))
	defer upstream.Close()

	tool := NewMarketDataTool(upstream.URL)
	out, err := tool.Invoke(context.Background(), "")
	require.NoError(t, err)

	assert.Contains(t, out, `"symbol":"BTC"`)
	assert.Contains(t, out, upstream.URL)
}

func TestMarketDataToolFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	tool := NewMarketDataTool(upstream.URL)
	_, err := tool.Invoke(context.Background(), "")
	assert.Error(t, err)
}
