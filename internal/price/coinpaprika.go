package price

import (
	"context"
	"net/http"
	"strings"

	"price-notifications/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CoinPaprika prices assets from the tickers endpoint. Asset ids look like "btc-bitcoin".
type CoinPaprika struct {
	client *coinpaprika.Client
}

func NewCoinPaprika(apiProKey string, httpClient *http.Client) *CoinPaprika {
	if apiProKey != "" {
		return &CoinPaprika{client: coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))}
	}
	return &CoinPaprika{client: coinpaprika.NewClient(httpClient)}
}

func (c *CoinPaprika) Name() string { return "coinpaprika" }

// Prices fetches every ticker in one request and keeps the requested ids.
// The client takes no context; the HTTP client timeout bounds the call.
func (c *CoinPaprika) Prices(ctx context.Context, ids []string, quote string) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quote = strings.ToUpper(quote)
	tickers, err := c.client.Tickers.List(&coinpaprika.TickersOptions{Quotes: quote})
	if err != nil {
		return nil, errors.Wrap(err, "could not list coinpaprika tickers")
	}

	wanted := lo.SliceToMap(ids, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	prices := make(map[string]decimal.Decimal, len(ids))
	for _, ticker := range tickers {
		if ticker == nil || ticker.ID == nil {
			continue
		}
		if _, ok := wanted[*ticker.ID]; !ok {
			continue
		}
		q, found := ticker.Quotes[quote]
		if !found || q.Price == nil {
			log.Debugf("ticker %s has no %s quote", *ticker.ID, quote)
			continue
		}
		prices[*ticker.ID] = decimal.NewFromFloat(*q.Price)
	}
	return prices, nil
}

func (c *CoinPaprika) Coins(ctx context.Context) ([]types.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coins, err := c.client.Coins.List()
	if err != nil {
		return nil, errors.Wrap(err, "could not list coinpaprika coins")
	}

	return lo.FilterMap(coins, func(coin *coinpaprika.Coin, _ int) (types.Asset, bool) {
		if coin == nil || coin.ID == nil {
			return types.Asset{}, false
		}
		return types.Asset{
			ID:     *coin.ID,
			Symbol: lo.FromPtr(coin.Symbol),
			Name:   lo.FromPtr(coin.Name),
		}, true
	}), nil
}
