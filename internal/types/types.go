package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells which side of a threshold the price crossed.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// AssetThresholds holds the optional trigger values of one tracked asset.
type AssetThresholds struct {
	Upper decimal.NullDecimal `json:"upper"`
	Lower decimal.NullDecimal `json:"lower"`
}

// PriceSample is one observed price of one asset during a tick.
type PriceSample struct {
	AssetID   string          `json:"asset_id"`
	Price     decimal.Decimal `json:"price"`
	Quote     string          `json:"quote"`
	SampledAt time.Time       `json:"sampled_at"`
}

// AlertEvent records one threshold crossing.
type AlertEvent struct {
	AssetID   string          `json:"asset_id"`
	Direction Direction       `json:"direction"`
	Threshold decimal.Decimal `json:"threshold"`
	Observed  decimal.Decimal `json:"observed"`
	Quote     string          `json:"quote"`
}

// Contact is where alerts are delivered and how to authenticate with the transport.
type Contact struct {
	From      string
	To        string
	AccountID string
	AuthToken string
}

// Outcome is the result of sending one alert.
type Outcome struct {
	Event     AlertEvent
	Text      string
	MessageID string
	Err       error
}

// Asset is an entry of the supported-asset catalog
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
