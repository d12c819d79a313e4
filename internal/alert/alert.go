package alert

import (
	"price-notifications/internal/types"

	"github.com/pkg/errors"
)

// ThresholdStore is the read side of the watchlist used during a tick.
type ThresholdStore interface {
	IsTracked(id string) bool
	Thresholds(id string) (types.AssetThresholds, bool)
}

// Evaluate compares one sample against the thresholds of its asset.
// Crossings are exclusive: a price equal to a bound never fires.
func Evaluate(sample types.PriceSample, store ThresholdStore) ([]types.AlertEvent, error) {
	if !store.IsTracked(sample.AssetID) {
		return nil, errors.Wrapf(types.ErrConfigInconsistency, "asset %s is not tracked", sample.AssetID)
	}

	thresholds, found := store.Thresholds(sample.AssetID)
	if !found {
		return nil, nil
	}

	var events []types.AlertEvent
	if thresholds.Lower.Valid && sample.Price.LessThan(thresholds.Lower.Decimal) {
		events = append(events, types.AlertEvent{
			AssetID:   sample.AssetID,
			Direction: types.Below,
			Threshold: thresholds.Lower.Decimal,
			Observed:  sample.Price,
			Quote:     sample.Quote,
		})
	}
	if thresholds.Upper.Valid && sample.Price.GreaterThan(thresholds.Upper.Decimal) {
		events = append(events, types.AlertEvent{
			AssetID:   sample.AssetID,
			Direction: types.Above,
			Threshold: thresholds.Upper.Decimal,
			Observed:  sample.Price,
			Quote:     sample.Quote,
		})
	}
	return events, nil
}

// EvaluateAll evaluates samples in order. An inconsistent asset does not
// hide the events of the others; its error is returned alongside them.
func EvaluateAll(samples []types.PriceSample, store ThresholdStore) ([]types.AlertEvent, []error) {
	var (
		events []types.AlertEvent
		errs   []error
	)
	for _, sample := range samples {
		evs, err := Evaluate(sample, store)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}
	return events, errs
}
