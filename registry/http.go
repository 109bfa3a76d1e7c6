package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neuroverse/icpay/types"
)

const defaultRegistryTimeout = 30 * time.Second

// HTTPRegistry talks to the marketplace canister gateway over HTTP/JSON.
type HTTPRegistry struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRegistry(baseURL string, timeout time.Duration) *HTTPRegistry {
	if timeout <= 0 {
		timeout = defaultRegistryTimeout
	}
	return &HTTPRegistry{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Registry = (*HTTPRegistry)(nil)

func (r *HTTPRegistry) CreateAgent(ctx context.Context, agent types.Agent) (CreateResult, error) {
	var result CreateResult
	if err := r.call(ctx, http.MethodPost, "/agents", agent, &result); err != nil {
		return CreateResult{}, err
	}
	return result, nil
}

func (r *HTTPRegistry) SubscribeToAgent(ctx context.Context, agentID, principal string) (bool, error) {
	var result struct {
		Subscribed bool `json:"subscribed"`
	}
	body := map[string]string{"principal": principal}
	if err := r.call(ctx, http.MethodPost, "/agents/"+agentID+"/subscribers", body, &result); err != nil {
		return false, err
	}
	return result.Subscribed, nil
}

func (r *HTTPRegistry) DeleteAgent(ctx context.Context, agentID string) error {
	return r.call(ctx, http.MethodDelete, "/agents/"+agentID, nil, nil)
}

func (r *HTTPRegistry) GetAgentsForUser(ctx context.Context, principal string) ([]types.Agent, error) {
	var agents []types.Agent
	if err := r.call(ctx, http.MethodGet, "/agents?creator="+principal, nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *HTTPRegistry) GetAllAgents(ctx context.Context) ([]types.Agent, error) {
	var agents []types.Agent
	if err := r.call(ctx, http.MethodGet, "/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *HTTPRegistry) GetTools(ctx context.Context) ([]types.Tool, error) {
	var tools []types.Tool
	if err := r.call(ctx, http.MethodGet, "/tools", nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func (r *HTTPRegistry) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode registry request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return types.ICPayError{Code: types.ErrRegistryFailure, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.ICPayError{
			Code:    types.ErrRegistryFailure,
			Message: fmt.Sprintf("registry status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.ICPayError{Code: types.ErrRegistryFailure, Message: fmt.Sprintf("malformed registry response: %v", err)}
	}
	return nil
}
