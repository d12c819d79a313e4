package types

import "github.com/pkg/errors"

var (
	// ErrUnsupportedAsset means the price source cannot resolve the asset id,
	// or the id is not in the tracked set.
	ErrUnsupportedAsset = errors.New("unsupported asset")
	// ErrPriceSourceUnavailable means the whole price request failed.
	ErrPriceSourceUnavailable = errors.New("price source unavailable")
	// ErrTransportSendFailure means one message could not be delivered.
	ErrTransportSendFailure = errors.New("transport send failure")
	// ErrConfigInconsistency means thresholds reference an untracked asset.
	ErrConfigInconsistency = errors.New("config inconsistency")
	// ErrDaemonStartFailure means the daemon could not be started.
	ErrDaemonStartFailure = errors.New("daemon start failure")
)
