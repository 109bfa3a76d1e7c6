package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLLMBaseURL = "https://api.openai.com/v1"
	defaultLLMModel   = "gpt-4o-mini"
	defaultLLMTimeout = 60 * time.Second
)

// LLMRequest carries one user turn plus the tool observations gathered
// so far. On the first model call Observations is empty; after tools
// run, the same message is resubmitted with their results attached.
type LLMRequest struct {
	Message      string
	Observations []Observation
}

// Observation is the outcome of one tool invocation, successful or not.
// Failures are reported as text so the model can work around them
// instead of the turn crashing.
type Observation struct {
	Tool    string
	Content string
}

// ToolCall is a structured request from the model to run a named tool.
type ToolCall struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// LLMResponse is the model's structured output for one call: either a
// final reply, or tool calls to execute before answering.
type LLMResponse struct {
	Reply     string     `json:"reply"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// LLMClient is the model backend the agent runs on.
type LLMClient interface {
	Generate(ctx context.Context, req LLMRequest) (*LLMResponse, error)
}

// LLMConfig configures the OpenAI-compatible chat completions client.
type LLMConfig struct {
	APIKey  string        `yaml:"apiKey"`
	BaseURL string        `yaml:"baseUrl"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint and
// parses the model's structured output.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates the client, filling defaults for anything the
// config leaves unset. The API key is mandatory.
func NewOpenAIClient(cfg LLMConfig) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultLLMModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

const agentSystemPrompt = `You are the NeuroVerse marketplace assistant. You answer questions about crypto markets and the agent marketplace.
You may call tools before answering. Respond ONLY with a JSON object of the shape
{"reply": string, "toolCalls": [{"name": string, "query": string}]}.
Set "toolCalls" when you need tool output, otherwise set "reply" with your final answer.
Available tools: "market_data" (current crypto market listing), "web_search" (general web search).`

// Generate performs one chat completion and decodes the structured
// response. A model that answers in plain text instead of the JSON
// envelope is tolerated: the text becomes the reply.
func (c *OpenAIClient) Generate(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building llm request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding llm response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("llm response contained no choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("llm response was empty")
	}

	var structured LLMResponse
	if err := json.Unmarshal([]byte(content), &structured); err != nil {
		return &LLMResponse{Reply: content}, nil
	}
	if structured.Reply == "" && len(structured.ToolCalls) == 0 {
		structured.Reply = content
	}
	return &structured, nil
}

func (c *OpenAIClient) buildPayload(req LLMRequest) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	var user strings.Builder
	user.WriteString(req.Message)
	if len(req.Observations) > 0 {
		user.WriteString("\n\nTool results:\n")
		for _, obs := range req.Observations {
			user.WriteString("[" + obs.Tool + "] " + obs.Content + "\n")
		}
		user.WriteString("\nAnswer the question using these results. Do not request more tools.")
	}

	body := map[string]any{
		"model": c.model,
		"messages": []message{
			{Role: "system", Content: agentSystemPrompt},
			{Role: "user", Content: user.String()},
		},
		"temperature": 0.2,
	}
	return json.Marshal(body)
}
