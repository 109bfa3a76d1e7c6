package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neuroverse/icpay/types"
)

const defaultGatewayTimeout = 30 * time.Second

// GatewayClient talks to an ICRC ledger gateway over HTTP/JSON. The
// gateway fronts the ledger canister and exposes the icrc1 transfer and
// balance methods; transfer rejections come back as structured variants
// that map 1:1 onto TransferError codes.
type GatewayClient struct {
	baseURL    string
	token      string
	decimals   int32
	fee        types.Amount
	httpClient *http.Client
}

// NewGatewayClient creates a ledger client from configuration. The
// transfer fee is fixed per ledger and parsed once up front.
func NewGatewayClient(cfg types.LedgerConfig) (*GatewayClient, error) {
	if cfg.GatewayURL == "" {
		return nil, types.ICPayError{Code: types.ErrConfigError, Message: "ledger gateway URL is required"}
	}

	fee := types.NewAmount(0)
	if cfg.TransferFee != "" {
		parsed, err := types.AmountFromString(cfg.TransferFee)
		if err != nil {
			return nil, types.ICPayError{
				Code:    types.ErrConfigError,
				Message: fmt.Sprintf("invalid transfer fee for %s: %v", cfg.Token, err),
			}
		}
		fee = parsed
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &GatewayClient{
		baseURL:    strings.TrimRight(cfg.GatewayURL, "/"),
		token:      cfg.Token,
		decimals:   cfg.Decimals,
		fee:        fee,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

var _ Client = (*GatewayClient)(nil)

type gatewayAccount struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

type gatewayTransferRequest struct {
	From          gatewayAccount `json:"from"`
	To            gatewayAccount `json:"to"`
	Amount        string         `json:"amount"`
	Fee           string         `json:"fee,omitempty"`
	Memo          string         `json:"memo,omitempty"`
	CreatedAtTime int64          `json:"created_at_time,omitempty"`
}

type gatewayError struct {
	Code        string `json:"code"`
	Message     string `json:"message,omitempty"`
	ExpectedFee string `json:"expected_fee,omitempty"`
	DuplicateOf uint64 `json:"duplicate_of,omitempty"`
}

type gatewayTransferResponse struct {
	BlockIndex uint64        `json:"blockIndex"`
	Error      *gatewayError `json:"error,omitempty"`
}

// Transfer submits the intent to the gateway and maps rejection variants
// onto the TransferError taxonomy.
func (c *GatewayClient) Transfer(ctx context.Context, intent types.TransferIntent) (uint64, error) {
	if err := intent.Validate(); err != nil {
		return 0, types.ICPayError{Code: types.ErrInvalidIntent, Message: err.Error()}
	}

	req := gatewayTransferRequest{
		From:   toGatewayAccount(intent.From),
		To:     toGatewayAccount(intent.To),
		Amount: intent.Amount.String(),
	}
	if !intent.Fee.IsZero() {
		req.Fee = intent.Fee.String()
	}
	if len(intent.Memo) > 0 {
		req.Memo = base64.StdEncoding.EncodeToString(intent.Memo)
	}
	if !intent.CreatedAt.IsZero() {
		req.CreatedAtTime = intent.CreatedAt.UnixNano()
	}

	var resp gatewayTransferResponse
	if err := c.post(ctx, "/icrc1/transfer", req, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, resp.Error.toTransferError()
	}
	return resp.BlockIndex, nil
}

type gatewayBalanceRequest struct {
	Account gatewayAccount `json:"account"`
}

type gatewayBalanceResponse struct {
	Balance string        `json:"balance"`
	Error   *gatewayError `json:"error,omitempty"`
}

// BalanceOf queries the account balance in smallest units.
func (c *GatewayClient) BalanceOf(ctx context.Context, account types.Account) (types.Amount, error) {
	if err := account.Validate(); err != nil {
		return types.Amount{}, types.ICPayError{Code: types.ErrInvalidIntent, Message: err.Error()}
	}

	var resp gatewayBalanceResponse
	if err := c.post(ctx, "/icrc1/balance_of", gatewayBalanceRequest{Account: toGatewayAccount(account)}, &resp); err != nil {
		return types.Amount{}, err
	}
	if resp.Error != nil {
		return types.Amount{}, resp.Error.toTransferError()
	}

	balance, err := types.AmountFromString(resp.Balance)
	if err != nil {
		return types.Amount{}, types.ICPayError{
			Code:    types.ErrLedgerFailure,
			Message: fmt.Sprintf("gateway returned malformed balance %q", resp.Balance),
		}
	}
	return balance, nil
}

func (c *GatewayClient) Decimals() int32 {
	return c.decimals
}

func (c *GatewayClient) TransferFee() types.Amount {
	return c.fee
}

func (c *GatewayClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *GatewayClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransferError{Code: CodeTemporarilyUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransferError{
			Code:    CodeTemporarilyUnavailable,
			Message: fmt.Sprintf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransferError{Code: CodeGenericError, Message: fmt.Sprintf("malformed gateway response: %v", err)}
	}
	return nil
}

func toGatewayAccount(a types.Account) gatewayAccount {
	out := gatewayAccount{Owner: a.Owner}
	if len(a.Subaccount) > 0 {
		out.Subaccount = base64.StdEncoding.EncodeToString(a.Subaccount)
	}
	return out
}

func (e *gatewayError) toTransferError() *TransferError {
	te := &TransferError{Message: e.Message, DuplicateOf: e.DuplicateOf}

	switch ErrorCode(e.Code) {
	case CodeInsufficientFunds, CodeBadFee, CodeTooOld, CodeCreatedInFuture,
		CodeTemporarilyUnavailable, CodeDuplicate:
		te.Code = ErrorCode(e.Code)
	default:
		te.Code = CodeGenericError
		if te.Message == "" {
			te.Message = e.Code
		}
	}

	if e.ExpectedFee != "" {
		if fee, err := types.AmountFromString(e.ExpectedFee); err == nil {
			te.ExpectedFee = &fee
		}
	}
	return te
}
