package price

import (
	"context"
	"net/http"
	"strings"

	"price-notifications/internal/types"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// codeInvalidSymbol is returned by Binance for unknown trading pairs.
const codeInvalidSymbol = -1121

// Binance prices spot trading pairs such as "BTCUSDT" one request per pair.
// The quote currency is part of the pair, so the quote argument is ignored.
type Binance struct {
	client *binance.Client
}

func NewBinance(httpClient *http.Client) *Binance {
	cli := binance.NewClient("", "")
	if httpClient != nil {
		cli.HTTPClient = httpClient
	}
	return &Binance{client: cli}
}

func (b *Binance) Name() string { return "binance" }

// quoteAssets are matched as pair suffixes, longest first.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "EUR", "GBP", "TRY", "BRL", "JPY", "BTC", "ETH", "BNB"}

// QuoteOf returns the quote currency of a pair such as "BTCEUR".
func (b *Binance) QuoteOf(id string) string {
	symbol := strings.ToUpper(id)
	for _, q := range quoteAssets {
		if len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			return strings.ToLower(q)
		}
	}
	return ""
}

func (b *Binance) Price(ctx context.Context, id, _ string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(id)
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
			return decimal.Zero, errors.Wrap(types.ErrUnsupportedAsset, symbol)
		}
		return decimal.Zero, errors.Wrapf(err, "could not get price of %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Wrap(types.ErrUnsupportedAsset, symbol)
	}

	p, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid price %q for %s", prices[0].Price, symbol)
	}
	return p, nil
}

// Coins lists every pair Binance currently quotes.
func (b *Binance) Coins(ctx context.Context) ([]types.Asset, error) {
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not list binance prices")
	}
	return lo.Map(prices, func(item *binance.SymbolPrice, _ int) types.Asset {
		return types.Asset{ID: item.Symbol, Symbol: item.Symbol, Name: item.Symbol}
	}), nil
}
