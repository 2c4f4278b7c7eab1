// Package pyth is a minimal client for the Pyth Hermes price service.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// DefaultEndpoint is the public Hermes deployment.
const DefaultEndpoint = "https://hermes.pyth.network"

// DefaultFeeds maps each asset to its Pyth USD price feed id.
var DefaultFeeds = map[domain.Asset]string{
	domain.AssetBTC: "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	domain.AssetETH: "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	domain.AssetSOL: "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
}

// Client fetches the latest parsed prices from Hermes.
type Client struct {
	baseURL    string
	feeds      map[domain.Asset]string
	httpClient *http.Client
}

// NewClient creates a Hermes client. Feed ids may carry a 0x prefix; a nil
// feeds map uses DefaultFeeds.
func NewClient(baseURL string, feeds map[domain.Asset]string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	if feeds == nil {
		feeds = DefaultFeeds
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	norm := make(map[domain.Asset]string, len(feeds))
	for a, id := range feeds {
		norm[a] = normalizeID(id)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		feeds:      norm,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type latestResponse struct {
	Parsed []parsedUpdate `json:"parsed"`
}

type parsedUpdate struct {
	ID    string `json:"id"`
	Price struct {
		Price       string `json:"price"`
		Conf        string `json:"conf"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

// LatestPrices requests every asset's feed in a single call. Assets whose
// update is missing or unparseable are omitted from the result.
func (c *Client) LatestPrices(ctx context.Context, assets []domain.Asset) (map[domain.Asset]float64, error) {
	params := url.Values{}
	byID := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		id, ok := c.feeds[a]
		if !ok {
			continue
		}
		params.Add("ids[]", id)
		byID[id] = a
	}
	if len(byID) == 0 {
		return map[domain.Asset]float64{}, nil
	}
	params.Set("parsed", "true")

	body, err := c.doGet(ctx, "/v2/updates/price/latest?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("pyth: latest prices: %w", err)
	}

	var resp latestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pyth: decode latest prices: %w", err)
	}

	out := make(map[domain.Asset]float64, len(resp.Parsed))
	for _, u := range resp.Parsed {
		asset, ok := byID[normalizeID(u.ID)]
		if !ok {
			continue
		}
		v, err := scale(u.Price.Price, u.Price.Expo)
		if err != nil {
			continue
		}
		out[asset] = v
	}
	return out, nil
}

// scale converts a Hermes fixed-point price into a float: price × 10^expo.
func scale(raw string, expo int32) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	f, _ := d.Shift(expo).Float64()
	return f, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}
	return body, nil
}
