package poller

import (
	"context"
	"time"

	"price-notifications/internal/alert"
	"price-notifications/internal/metrics"
	"price-notifications/internal/price"
	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// State is the phase of the poll cycle.
type State string

const (
	Fetching    State = "fetching"
	Evaluating  State = "evaluating"
	Dispatching State = "dispatching"
	Waiting     State = "waiting"
)

// DefaultInterval is the delay between two ticks when none is configured.
const DefaultInterval = 600 * time.Second

// Store is the watchlist view a scheduler reads each tick.
type Store interface {
	alert.ThresholdStore
	Assets() []string
}

// Options wire a Scheduler.
type Options struct {
	Source     price.Source
	Store      Store
	Dispatcher *alert.Dispatcher
	Contact    types.Contact
	Quote      string
	Interval   time.Duration
	Timeout    time.Duration
	FireOnce   bool
	Metrics    *metrics.Metrics
}

// Scheduler runs the fetch, evaluate, dispatch, wait cycle.
type Scheduler struct {
	opts  Options
	latch *alert.Latch
	state State
}

// TickReport summarizes one tick.
type TickReport struct {
	Samples  []types.PriceSample
	Skipped  []string
	Events   []types.AlertEvent
	Outcomes []types.Outcome
	Err      error
}

func New(opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.Errorf("invalid poll interval %s", opts.Interval)
	}
	if opts.Source == nil {
		return nil, errors.New("price source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("watchlist is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Quote == "" {
		opts.Quote = "usd"
	}

	s := &Scheduler{opts: opts, state: Fetching}
	if opts.FireOnce {
		s.latch = alert.NewLatch()
	}
	return s, nil
}

func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) enter(state State) {
	s.state = state
	log.Debugf("Poll cycle: %s", state)
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Failed ticks are logged and never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Infof("🚀 Listening for price changes every %s", s.opts.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Listener stopped")
			return nil
		case <-timer.C:
		}

		s.Tick(ctx)

		s.enter(Waiting)
		timer.Reset(s.opts.Interval)
	}
}

// Tick runs one fetch, evaluate and dispatch pass.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	ids := s.opts.Store.Assets()

	s.enter(Fetching)
	samples, err := price.Sample(ctx, s.opts.Source, ids, s.opts.Quote, s.opts.Timeout)
	if err != nil {
		log.Errorf("❌ Skipping tick: %v", err)
		report.Err = err
		s.opts.Metrics.ObserveTick(time.Now(), true, nil, nil)
		return report
	}
	report.Samples = samples
	sampled := lo.SliceToMap(samples, func(p types.PriceSample) (string, bool) { return p.AssetID, true })
	report.Skipped = lo.Reject(ids, func(id string, _ int) bool { return sampled[id] })

	s.enter(Evaluating)
	events, errs := alert.EvaluateAll(samples, s.opts.Store)
	for _, e := range errs {
		log.Error(e)
	}
	if s.latch != nil {
		events = s.latch.Filter(samples, events)
	}
	report.Events = events

	s.enter(Dispatching)
	report.Outcomes = s.opts.Dispatcher.Dispatch(ctx, events, s.opts.Contact)

	log.WithFields(log.Fields{
		"sampled": len(samples),
		"skipped": len(report.Skipped),
		"alerts":  len(events),
		"failed":  alert.Failed(report.Outcomes),
	}).Debug("Tick finished")

	s.opts.Metrics.ObserveTick(time.Now(), false, report.Skipped, report.Outcomes)
	return report
}
