package alert

import (
	"strings"

	"price-notifications/internal/types"
	"price-notifications/lib/translation"
)

// FormatMessage renders the text sent for one event. Thresholds and prices
// are printed as plain decimals so the text matches what the user configured.
// An event without a quote currency prints the bare price.
func FormatMessage(e types.AlertEvent) string {
	observed := e.Observed.String()
	if e.Quote != "" {
		observed += " " + strings.ToUpper(e.Quote)
	}

	switch e.Direction {
	case types.Below:
		return translation.Translate("%s target price dropped below: %s (current price: %s)",
			e.AssetID, e.Threshold.String(), observed)
	default:
		return translation.Translate("%s target price went above: %s (current price: %s)",
			e.AssetID, e.Threshold.String(), observed)
	}
}
