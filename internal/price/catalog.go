package price

import (
	"context"

	"price-notifications/internal/database"
	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Catalog lists the assets a source supports.
type Catalog interface {
	Source
	Coins(ctx context.Context) ([]types.Asset, error)
}

// RefreshCatalog downloads the supported assets of c and replaces the cached copy.
func RefreshCatalog(ctx context.Context, c Catalog) (int, error) {
	coins, err := c.Coins(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "could not download %s catalog", c.Name())
	}
	if err := database.ReplaceAssets(c.Name(), coins); err != nil {
		return 0, err
	}
	log.Infof("🔄 Supported assets of %s updated: %d entries", c.Name(), len(coins))
	return len(coins), nil
}

// Resolve maps a free-form name, symbol or id to the canonical ids known by
// the cached catalog of source.
func Resolve(source, query string) ([]string, error) {
	assets, err := database.FindAssets(source, query)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, errors.Wrapf(types.ErrUnsupportedAsset, "%s is not a supported currency of %s", query, source)
	}
	return lo.Map(assets, func(a types.Asset, _ int) string { return a.ID }), nil
}
