// Package wallet adapts a user-held wallet to the payment pipeline. The
// original marketplace fronted a browser wallet extension; here the same
// surface is an interface so orchestrators never depend on how the keys
// are held.
package wallet

import (
	"context"
	"sync"

	"github.com/neuroverse/icpay/ledger"
	"github.com/neuroverse/icpay/types"
)

// Receipt acknowledges a wallet-mediated transfer.
type Receipt struct {
	Height uint64 `json:"height"`
}

// Connector is the wallet surface the pipeline consumes: connect once
// with a canister whitelist, then request transfers against the held
// identity.
type Connector interface {
	Connect(ctx context.Context, whitelist []string) (bool, error)
	RequestTransfer(ctx context.Context, intent types.TransferIntent) (Receipt, error)
	Principal() string
	Connected() bool
}

// LocalConnector is a Connector backed by a process-held identity and a
// ledger client. It enforces the connect-before-transfer lifecycle the
// extension contract requires.
type LocalConnector struct {
	mu        sync.Mutex
	principal string
	ledger    ledger.Client
	connected bool
	whitelist []string
}

// NewLocalConnector creates a connector for the given principal.
func NewLocalConnector(principal string, client ledger.Client) *LocalConnector {
	return &LocalConnector{principal: principal, ledger: client}
}

var _ Connector = (*LocalConnector)(nil)

// Connect records the whitelist and marks the connector usable.
func (c *LocalConnector) Connect(_ context.Context, whitelist []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.whitelist = append([]string(nil), whitelist...)
	c.connected = true
	return true, nil
}

// Disconnect tears the session down; subsequent transfers fail until
// Connect is called again.
func (c *LocalConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.whitelist = nil
}

// RequestTransfer fills in the sender from the held identity and submits
// the transfer through the ledger client.
func (c *LocalConnector) RequestTransfer(ctx context.Context, intent types.TransferIntent) (Receipt, error) {
	c.mu.Lock()
	connected := c.connected
	principal := c.principal
	c.mu.Unlock()

	if !connected {
		return Receipt{}, types.ICPayError{Code: types.ErrNotConnected, Message: "wallet is not connected"}
	}

	if intent.From.Owner == "" {
		intent.From = types.NewAccount(principal)
	}

	block, err := c.ledger.Transfer(ctx, intent)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Height: block}, nil
}

func (c *LocalConnector) Principal() string {
	return c.principal
}

func (c *LocalConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
