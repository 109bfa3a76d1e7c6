package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neuroverse/icpay/types"
)

// MemoryRegistry is a full in-process Registry implementation.
type MemoryRegistry struct {
	mu     sync.RWMutex
	agents map[string]types.Agent
	tools  map[string]types.Tool
	order  []string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		agents: make(map[string]types.Agent),
		tools:  make(map[string]types.Tool),
	}
}

var _ Registry = (*MemoryRegistry)(nil)

// AddTool seeds a tool listing.
func (m *MemoryRegistry) AddTool(tool types.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[tool.ID] = tool
}

// CreateAgent registers the agent. Unknown tool references are rejected
// with a tagged failure rather than an error: the call reached the
// backend, the backend said no.
func (m *MemoryRegistry) CreateAgent(_ context.Context, agent types.Agent) (CreateResult, error) {
	if agent.Name == "" {
		return CreateResult{Reason: "agent name is required"}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, toolID := range agent.ToolIDs {
		if _, ok := m.tools[toolID]; !ok {
			return CreateResult{Reason: fmt.Sprintf("unknown tool %q", toolID)}, nil
		}
	}

	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if _, exists := m.agents[agent.ID]; exists {
		return CreateResult{Reason: fmt.Sprintf("agent %q already exists", agent.ID)}, nil
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}

	m.agents[agent.ID] = agent
	m.order = append(m.order, agent.ID)
	return CreateResult{OK: true, AgentID: agent.ID}, nil
}

// SubscribeToAgent adds the principal to the agent's subscriber list.
// Returns false when the agent does not exist or the principal is
// already subscribed.
func (m *MemoryRegistry) SubscribeToAgent(_ context.Context, agentID, principal string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[agentID]
	if !ok {
		return false, nil
	}
	for _, sub := range agent.Subscribers {
		if sub == principal {
			return false, nil
		}
	}
	agent.Subscribers = append(agent.Subscribers, principal)
	m.agents[agentID] = agent
	return true, nil
}

func (m *MemoryRegistry) DeleteAgent(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[agentID]; !ok {
		return types.ICPayError{Code: types.ErrRegistryFailure, Message: fmt.Sprintf("agent %q not found", agentID)}
	}
	delete(m.agents, agentID)
	for i, id := range m.order {
		if id == agentID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetAgentsForUser lists agents created by the principal, in creation order.
func (m *MemoryRegistry) GetAgentsForUser(_ context.Context, principal string) ([]types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Agent
	for _, id := range m.order {
		agent := m.agents[id]
		if agent.Creator.Owner == principal {
			out = append(out, agent)
		}
	}
	return out, nil
}

func (m *MemoryRegistry) GetAllAgents(_ context.Context) ([]types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Agent, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id])
	}
	return out, nil
}

func (m *MemoryRegistry) GetTools(_ context.Context) ([]types.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Tool, 0, len(m.tools))
	for _, tool := range m.tools {
		out = append(out, tool)
	}
	return out, nil
}
