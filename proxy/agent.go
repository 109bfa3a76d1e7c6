package proxy

import (
	"context"
	"strings"

	"github.com/neuroverse/icpay/logger"
)

// Agent turns one user message into one text reply, running at most one
// round of tool calls between two model passes. Conversation state is
// rebuilt per request; nothing survives between calls.
type Agent struct {
	llm   LLMClient
	tools map[string]Tool
	log   logger.Logger
}

// NewAgent wires the model and tools together. A nil logger falls back
// to the noop logger.
func NewAgent(llm LLMClient, tools []Tool, log logger.Logger) *Agent {
	if log == nil {
		log = logger.NoopLogger{}
	}
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Agent{llm: llm, tools: byName, log: log}
}

// Respond produces the agent's reply for message. Tool failures never
// abort the turn: each failure is fed back to the model as an
// observation so it can answer around the gap.
func (a *Agent) Respond(ctx context.Context, message string) (string, error) {
	first, err := a.llm.Generate(ctx, LLMRequest{Message: message})
	if err != nil {
		return "", err
	}
	if len(first.ToolCalls) == 0 {
		return first.Reply, nil
	}

	observations := make([]Observation, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		observations = append(observations, a.runTool(ctx, call))
	}

	second, err := a.llm.Generate(ctx, LLMRequest{Message: message, Observations: observations})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(second.Reply) == "" && first.Reply != "" {
		return first.Reply, nil
	}
	return second.Reply, nil
}

func (a *Agent) runTool(ctx context.Context, call ToolCall) Observation {
	tool, ok := a.tools[call.Name]
	if !ok {
		a.log.Warn("model requested unknown tool", map[string]any{"tool": call.Name})
		return Observation{Tool: call.Name, Content: "tool not available: " + call.Name}
	}

	result, err := tool.Invoke(ctx, call.Query)
	if err != nil {
		a.log.Warn("tool invocation failed", map[string]any{"tool": call.Name, "error": err.Error()})
		return Observation{Tool: call.Name, Content: "tool failed: " + err.Error()}
	}
	return Observation{Tool: call.Name, Content: result}
}
