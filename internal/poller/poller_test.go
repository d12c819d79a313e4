package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"price-notifications/internal/alert"
	"price-notifications/internal/metrics"
	"price-notifications/internal/types"
	"price-notifications/internal/watchlist"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Prices(_ context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]decimal.Decimal)
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeSource) set(id, p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[id] = decimal.RequireFromString(p)
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(_ context.Context, _ types.Contact, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return "id", nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newWatchlist(t *testing.T) *watchlist.Watchlist {
	w := watchlist.New()
	w.Add("bitcoin", "ethereum")
	require.NoError(t, w.SetThresholds("bitcoin",
		decimal.NewNullDecimal(decimal.NewFromInt(50000)),
		decimal.NewNullDecimal(decimal.NewFromInt(10000))))
	return w
}

func newScheduler(t *testing.T, src *fakeSource, tr *fakeTransport, fireOnce bool) *Scheduler {
	s, err := New(Options{
		Source:     src,
		Store:      newWatchlist(t),
		Dispatcher: alert.NewDispatcher(tr, time.Second),
		Interval:   time.Minute,
		FireOnce:   fireOnce,
		Metrics:    metrics.New(),
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validates(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	d := alert.NewDispatcher(&fakeTransport{}, 0)
	w := watchlist.New()

	_, err := New(Options{Source: src, Store: w, Dispatcher: d})
	assert.Error(t, err, "zero interval")
	_, err = New(Options{Source: src, Store: w, Dispatcher: d, Interval: -time.Second})
	assert.Error(t, err)
	_, err = New(Options{Store: w, Dispatcher: d, Interval: time.Second})
	assert.Error(t, err)
	_, err = New(Options{Source: src, Dispatcher: d, Interval: time.Second})
	assert.Error(t, err)
	_, err = New(Options{Source: src, Store: w, Interval: time.Second})
	assert.Error(t, err)

	s, err := New(Options{Source: src, Store: w, Dispatcher: d, Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.Interval())
	assert.Equal(t, Fetching, s.State())
}

func TestTick_SendsAlert(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	src.set("bitcoin", "50001")
	src.set("ethereum", "3000")
	tr := &fakeTransport{}
	s := newScheduler(t, src, tr, false)

	report := s.Tick(context.Background())
	require.NoError(t, report.Err)
	assert.Len(t, report.Samples, 2)
	require.Len(t, report.Events, 1)
	assert.Equal(t, types.Above, report.Events[0].Direction)
	assert.Equal(t, []string{"bitcoin target price went above: 50000 (current price: 50001 USD)"}, tr.sent)
	assert.Equal(t, 1.0, metrics.GetMetricValue(s.opts.Metrics.MessagesSent))
	assert.Equal(t, Dispatching, s.State())
}

func TestTick_SourceFailureDispatchesNothing(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}, err: errors.New("503")}
	tr := &fakeTransport{}
	s := newScheduler(t, src, tr, false)

	report := s.Tick(context.Background())
	assert.ErrorIs(t, report.Err, types.ErrPriceSourceUnavailable)
	assert.Empty(t, report.Events)
	assert.Empty(t, tr.sent)
	assert.Equal(t, 1.0, metrics.GetMetricValue(s.opts.Metrics.TickFailures))

	src.err = nil
	src.set("bitcoin", "9999")
	report = s.Tick(context.Background())
	require.NoError(t, report.Err)
	assert.Len(t, tr.sent, 1)
}

func TestTick_SkipsUnresolvedAssets(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	src.set("bitcoin", "20000")
	s := newScheduler(t, src, &fakeTransport{}, false)

	report := s.Tick(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, []string{"ethereum"}, report.Skipped)
	assert.Len(t, report.Samples, 1)
}

func TestTick_RepeatsAlertWithoutFireOnce(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	src.set("bitcoin", "60000")
	tr := &fakeTransport{}
	s := newScheduler(t, src, tr, false)

	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Len(t, tr.sent, 2)
}

func TestTick_FireOnce(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	src.set("bitcoin", "60000")
	tr := &fakeTransport{}
	s := newScheduler(t, src, tr, true)

	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Len(t, tr.sent, 1)

	src.set("bitcoin", "30000")
	s.Tick(context.Background())
	src.set("bitcoin", "60000")
	s.Tick(context.Background())
	assert.Len(t, tr.sent, 2)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}}
	src.set("bitcoin", "60000")
	tr := &fakeTransport{}
	s, err := New(Options{
		Source:     src,
		Store:      newWatchlist(t),
		Dispatcher: alert.NewDispatcher(tr, time.Second),
		Interval:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return tr.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	src := &fakeSource{prices: map[string]decimal.Decimal{}, err: errors.New("timeout")}
	s, err := New(Options{
		Source:     src,
		Store:      newWatchlist(t),
		Dispatcher: alert.NewDispatcher(&fakeTransport{}, 0),
		Interval:   5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Greater(t, src.calls, 1)
}
