package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMarketDataURL = "https://api.coinlore.net/api/tickers/"
	defaultToolTimeout   = 15 * time.Second

	// marketDataLimit caps the listing payload handed to the model.
	marketDataLimit = 10
)

// Tool is one capability the agent can invoke during a turn.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, query string) (string, error)
}

// MarketDataTool fetches a third-party crypto market listing and
// returns it wrapped in a JSON envelope the model can read.
type MarketDataTool struct {
	url        string
	httpClient *http.Client
}

// NewMarketDataTool creates the tool; an empty listingURL selects the
// public default listing endpoint.
func NewMarketDataTool(listingURL string) *MarketDataTool {
	if strings.TrimSpace(listingURL) == "" {
		listingURL = defaultMarketDataURL
	}
	return &MarketDataTool{
		url:        listingURL,
		httpClient: &http.Client{Timeout: defaultToolTimeout},
	}
}

func (t *MarketDataTool) Name() string { return "market_data" }

// Invoke fetches the market listing. The query is unused; the tool
// always returns the top of the current listing.
func (t *MarketDataTool) Invoke(ctx context.Context, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return "", fmt.Errorf("building market data request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching market data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("market data endpoint returned status %d", resp.StatusCode)
	}

	var listing struct {
		Data []struct {
			Symbol           string `json:"symbol"`
			Name             string `json:"name"`
			PriceUSD         string `json:"price_usd"`
			PercentChange24H string `json:"percent_change_24h"`
			MarketCapUSD     string `json:"market_cap_usd"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&listing); err != nil {
		return "", fmt.Errorf("decoding market listing: %w", err)
	}

	if len(listing.Data) > marketDataLimit {
		listing.Data = listing.Data[:marketDataLimit]
	}

	envelope := map[string]any{
		"source":  t.url,
		"fetched": time.Now().UTC().Format(time.RFC3339),
		"listing": listing.Data,
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encoding market envelope: %w", err)
	}
	return string(encoded), nil
}

// WebSearchTool performs a web search through a search API endpoint
// that accepts ?q= and returns JSON results.
type WebSearchTool struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewWebSearchTool creates the tool for the given search endpoint.
func NewWebSearchTool(endpoint, apiKey string) *WebSearchTool {
	return &WebSearchTool{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultToolTimeout},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

// Invoke runs the query against the search endpoint and returns the
// raw JSON result body.
func (t *WebSearchTool) Invoke(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("web search requires a query")
	}
	if t.endpoint == "" {
		return "", fmt.Errorf("web search endpoint is not configured")
	}

	searchURL := t.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading search results: %w", err)
	}
	return string(body), nil
}
