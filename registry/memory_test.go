package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroverse/icpay/types"
)

func TestCreateAgent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRegistry()
	m.AddTool(types.Tool{ID: "tool-a", Name: "a"})

	t.Run("success", func(t *testing.T) {
		result, err := m.CreateAgent(ctx, types.Agent{
			Name:    "trader",
			Creator: types.NewAccount("alice-principal"),
			ToolIDs: []string{"tool-a"},
		})
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.NotEmpty(t, result.AgentID)
	})

	t.Run("missing name is a tagged failure", func(t *testing.T) {
		result, err := m.CreateAgent(ctx, types.Agent{})
		require.NoError(t, err, "backend rejections are not transport errors")
		assert.False(t, result.OK)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("unknown tool reference", func(t *testing.T) {
		result, err := m.CreateAgent(ctx, types.Agent{Name: "x", ToolIDs: []string{"nope"}})
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Contains(t, result.Reason, "nope")
	})

	t.Run("duplicate id", func(t *testing.T) {
		first, err := m.CreateAgent(ctx, types.Agent{ID: "fixed", Name: "a"})
		require.NoError(t, err)
		require.True(t, first.OK)

		second, err := m.CreateAgent(ctx, types.Agent{ID: "fixed", Name: "b"})
		require.NoError(t, err)
		assert.False(t, second.OK)
	})
}

func TestSubscribeToAgent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRegistry()

	created, err := m.CreateAgent(ctx, types.Agent{Name: "trader"})
	require.NoError(t, err)
	require.True(t, created.OK)

	ok, err := m.SubscribeToAgent(ctx, created.AgentID, "alice-principal")
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-subscribing is a no-op, not an error.
	ok, err = m.SubscribeToAgent(ctx, created.AgentID, "alice-principal")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.SubscribeToAgent(ctx, "missing", "alice-principal")
	require.NoError(t, err)
	assert.False(t, ok)

	agents, err := m.GetAllAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, []string{"alice-principal"}, agents[0].Subscribers)
}

func TestGetAgentsForUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRegistry()

	for _, name := range []string{"first", "second"} {
		result, err := m.CreateAgent(ctx, types.Agent{
			Name:    name,
			Creator: types.NewAccount("alice-principal"),
		})
		require.NoError(t, err)
		require.True(t, result.OK)
	}
	other, err := m.CreateAgent(ctx, types.Agent{Name: "third", Creator: types.NewAccount("bob-principal")})
	require.NoError(t, err)
	require.True(t, other.OK)

	agents, err := m.GetAgentsForUser(ctx, "alice-principal")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "first", agents[0].Name, "creation order preserved")
	assert.Equal(t, "second", agents[1].Name)
}

func TestDeleteAgent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRegistry()

	created, err := m.CreateAgent(ctx, types.Agent{Name: "trader"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteAgent(ctx, created.AgentID))
	assert.Error(t, m.DeleteAgent(ctx, created.AgentID))

	agents, err := m.GetAllAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)
}
