package price

import (
	"context"
	"errors"
	"testing"
	"time"

	"price-notifications/internal/types"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatch struct {
	prices map[string]decimal.Decimal
	err    error
	calls  int
	ids    []string
}

func (f *fakeBatch) Name() string { return "fake-batch" }

func (f *fakeBatch) Prices(_ context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	f.calls++
	f.ids = ids
	return f.prices, f.err
}

type fakeAsset struct {
	prices  map[string]decimal.Decimal
	failOn  string
	calls   []string
	timeout bool
}

func (f *fakeAsset) Name() string { return "fake-asset" }

func (f *fakeAsset) Price(ctx context.Context, id, _ string) (decimal.Decimal, error) {
	f.calls = append(f.calls, id)
	_, f.timeout = ctx.Deadline()
	if id == f.failOn {
		return decimal.Zero, errors.New("connection reset")
	}
	p, found := f.prices[id]
	if !found {
		return decimal.Zero, pkgerrors.Wrap(types.ErrUnsupportedAsset, id)
	}
	return p, nil
}

type nameOnly struct{}

func (nameOnly) Name() string { return "broken" }

func TestSample_BatchSingleCallKeepsOrderAndSkipsMissing(t *testing.T) {
	src := &fakeBatch{prices: map[string]decimal.Decimal{
		"bitcoin":  decimal.NewFromInt(52000),
		"dogecoin": decimal.RequireFromString("0.07"),
	}}

	samples, err := Sample(context.Background(), src, []string{"dogecoin", "nosuchcoin", "bitcoin"}, "usd", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, []string{"dogecoin", "nosuchcoin", "bitcoin"}, src.ids)
	require.Len(t, samples, 2)
	assert.Equal(t, "dogecoin", samples[0].AssetID)
	assert.Equal(t, "bitcoin", samples[1].AssetID)
	assert.False(t, samples[1].SampledAt.IsZero())
	assert.Equal(t, "usd", samples[1].Quote)
}

func TestSample_BatchFailureFailsTick(t *testing.T) {
	src := &fakeBatch{err: errors.New("dial tcp: i/o timeout")}

	samples, err := Sample(context.Background(), src, []string{"bitcoin"}, "usd", time.Second)
	assert.Nil(t, samples)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, types.ErrPriceSourceUnavailable))
}

func TestSample_PerAssetSkipsUnsupported(t *testing.T) {
	src := &fakeAsset{prices: map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(52000)}}

	samples, err := Sample(context.Background(), src, []string{"NOPE", "BTCUSDT"}, "usd", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOPE", "BTCUSDT"}, src.calls)
	require.Len(t, samples, 1)
	assert.Equal(t, "BTCUSDT", samples[0].AssetID)
	assert.True(t, src.timeout)
}

func TestSample_PerAssetTransportErrorFailsTick(t *testing.T) {
	src := &fakeAsset{
		prices: map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(1), "ETHUSDT": decimal.NewFromInt(1)},
		failOn: "ETHUSDT",
	}

	samples, err := Sample(context.Background(), src, []string{"BTCUSDT", "ETHUSDT"}, "usd", 0)
	assert.Nil(t, samples)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, types.ErrPriceSourceUnavailable))
	assert.False(t, src.timeout)
}

type fakePairs struct{ fakeAsset }

func (f *fakePairs) QuoteOf(id string) string {
	if id == "BTCEUR" {
		return "eur"
	}
	return ""
}

func TestSample_PairSourceUsesPairQuote(t *testing.T) {
	src := &fakePairs{fakeAsset{prices: map[string]decimal.Decimal{
		"BTCEUR": decimal.NewFromInt(48000),
		"XYZ":    decimal.NewFromInt(1),
	}}}

	samples, err := Sample(context.Background(), src, []string{"BTCEUR", "XYZ"}, "usd", time.Second)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "eur", samples[0].Quote)
	assert.Empty(t, samples[1].Quote)
}

func TestSample_NoIDs(t *testing.T) {
	src := &fakeBatch{}
	samples, err := Sample(context.Background(), src, nil, "usd", time.Second)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Zero(t, src.calls)
}

func TestSample_UnusableSource(t *testing.T) {
	_, err := Sample(context.Background(), nameOnly{}, []string{"bitcoin"}, "usd", time.Second)
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	for name, want := range map[string]string{"": "coingecko", "CoinGecko": "coingecko", "coinpaprika": "coinpaprika", "binance": "binance"} {
		src, err := NewSource(name, Options{Timeout: time.Second})
		require.NoError(t, err)
		assert.Equal(t, want, src.Name())
		_, isCatalog := src.(Catalog)
		assert.True(t, isCatalog)
	}

	_, err := NewSource("kraken", Options{})
	assert.Error(t, err)
}
