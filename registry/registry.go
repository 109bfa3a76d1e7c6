// Package registry is the marketplace backend surface the payment
// pipeline consumes: agent and tool listings, subscriptions and agent
// lifecycle. The production backend is a canister; tests use the memory
// implementation.
package registry

import (
	"context"

	"github.com/neuroverse/icpay/types"
)

// CreateResult is the tagged outcome of a CreateAgent call. Callers
// branch on OK explicitly; there is no duck-typed success/failed shape.
type CreateResult struct {
	OK      bool   `json:"ok"`
	AgentID string `json:"agentId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Registry is the backend RPC surface.
type Registry interface {
	CreateAgent(ctx context.Context, agent types.Agent) (CreateResult, error)
	SubscribeToAgent(ctx context.Context, agentID, principal string) (bool, error)
	DeleteAgent(ctx context.Context, agentID string) error
	GetAgentsForUser(ctx context.Context, principal string) ([]types.Agent, error)
	GetAllAgents(ctx context.Context) ([]types.Agent, error)
	GetTools(ctx context.Context) ([]types.Tool, error)
}
