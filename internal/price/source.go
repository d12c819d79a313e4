package price

import (
	"context"
	"net/http"
	"strings"
	"time"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Source is a named price provider. It must also implement BatchSource or AssetSource.
type Source interface {
	Name() string
}

// BatchSource resolves many assets in one request. Ids it cannot resolve are
// absent from the result.
type BatchSource interface {
	Source
	Prices(ctx context.Context, ids []string, quote string) (map[string]decimal.Decimal, error)
}

// AssetSource resolves one asset per request. It returns ErrUnsupportedAsset
// for ids it does not know.
type AssetSource interface {
	Source
	Price(ctx context.Context, id, quote string) (decimal.Decimal, error)
}

// PairSource prices trading pairs whose quote currency is part of the id.
// QuoteOf returns that currency, or "" when it cannot be told from the id.
type PairSource interface {
	Source
	QuoteOf(id string) string
}

// Options configure the sources built by NewSource.
type Options struct {
	APIProKey    string
	CoinGeckoURL string
	Timeout      time.Duration
}

// NewSource builds the source registered under name.
func NewSource(name string, opts Options) (Source, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}

	switch strings.ToLower(name) {
	case "coingecko", "":
		return NewCoinGecko(opts.CoinGeckoURL, httpClient), nil
	case "coinpaprika":
		return NewCoinPaprika(opts.APIProKey, httpClient), nil
	case "binance":
		return NewBinance(httpClient), nil
	default:
		return nil, errors.Errorf("unknown price source: %s", name)
	}
}

// Sample fetches one price per id, in the order of ids. Ids the source cannot
// resolve are skipped. Any other failure fails the whole call with
// ErrPriceSourceUnavailable and no samples.
func Sample(ctx context.Context, src Source, ids []string, quote string, timeout time.Duration) ([]types.PriceSample, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	switch s := src.(type) {
	case BatchSource:
		return sampleBatch(ctx, s, ids, quote, timeout)
	case AssetSource:
		return sampleEach(ctx, s, ids, quote, timeout)
	default:
		return nil, errors.Errorf("price source %s supports neither batch nor per-asset requests", src.Name())
	}
}

func sampleBatch(ctx context.Context, src BatchSource, ids []string, quote string, timeout time.Duration) ([]types.PriceSample, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	prices, err := src.Prices(callCtx, ids, quote)
	if err != nil {
		return nil, errors.Wrapf(types.ErrPriceSourceUnavailable, "%s: %v", src.Name(), err)
	}

	now := time.Now()
	quoteOf := quoteResolver(src, quote)
	samples := make([]types.PriceSample, 0, len(ids))
	for _, id := range ids {
		p, found := prices[id]
		if !found {
			logSkipped(src, id)
			continue
		}
		samples = append(samples, types.PriceSample{AssetID: id, Price: p, Quote: quoteOf(id), SampledAt: now})
	}
	return samples, nil
}

func sampleEach(ctx context.Context, src AssetSource, ids []string, quote string, timeout time.Duration) ([]types.PriceSample, error) {
	quoteOf := quoteResolver(src, quote)
	samples := make([]types.PriceSample, 0, len(ids))
	for _, id := range ids {
		callCtx, cancel := withTimeout(ctx, timeout)
		p, err := src.Price(callCtx, id, quote)
		cancel()

		if errors.Is(err, types.ErrUnsupportedAsset) {
			logSkipped(src, id)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(types.ErrPriceSourceUnavailable, "%s: %s: %v", src.Name(), id, err)
		}
		samples = append(samples, types.PriceSample{AssetID: id, Price: p, Quote: quoteOf(id), SampledAt: time.Now()})
	}
	return samples, nil
}

func quoteResolver(src Source, quote string) func(id string) string {
	if pairs, ok := src.(PairSource); ok {
		return pairs.QuoteOf
	}
	return func(string) string { return quote }
}

func logSkipped(src Source, id string) {
	log.WithFields(log.Fields{"asset": id, "source": src.Name()}).
		Warnf("⚠️ Failed to get the price of %s, the source may not support this id", id)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
