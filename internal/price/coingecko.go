package price

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CoinGecko queries the public CoinGecko API. Asset ids look like "bitcoin".
type CoinGecko struct {
	baseURL string
	client  *http.Client
}

func NewCoinGecko(baseURL string, client *http.Client) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// Prices calls /simple/price once for all ids.
func (c *CoinGecko) Prices(ctx context.Context, ids []string, quote string) (map[string]decimal.Decimal, error) {
	quote = strings.ToLower(quote)
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", quote)

	var body map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(body))
	for id, quotes := range body {
		if p, found := quotes[quote]; found {
			prices[id] = p
		}
	}
	return prices, nil
}

// Coins lists every asset CoinGecko can price.
func (c *CoinGecko) Coins(ctx context.Context) ([]types.Asset, error) {
	var coins []types.Asset
	if err := c.get(ctx, "/coins/list", &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "coingecko request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("coingecko API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "could not decode coingecko response")
}
