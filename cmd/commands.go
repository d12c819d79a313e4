package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"price-notifications/internal/database"
	"price-notifications/internal/daemon"
	"price-notifications/internal/price"
	"price-notifications/internal/types"
	"price-notifications/lib/helpers"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Show the current price of every tracked currency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := a.loadWatchlist(cmd, false)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(w.Currencies) == 0 {
			fmt.Fprintln(out, "No currencies added yet!")
			return nil
		}

		src, err := a.source()
		if err != nil {
			return err
		}
		samples, err := price.Sample(cmd.Context(), src, w.Assets(), w.PricedIn, a.settings.RequestTimeout)
		if err != nil {
			return err
		}

		quote := strings.ToUpper(w.PricedIn)
		for _, s := range samples {
			line := fmt.Sprintf("%s: %s %s", s.AssetID, helpers.FormatPriceUS(s.Price), quote)
			if t, ok := w.Thresholds(s.AssetID); ok {
				line += describeThresholds(t)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func describeThresholds(t types.AssetThresholds) string {
	var parts []string
	if t.Upper.Valid {
		parts = append(parts, "above "+t.Upper.Decimal.String())
	}
	if t.Lower.Valid {
		parts = append(parts, "below "+t.Lower.Decimal.String())
	}
	return " (notify " + strings.Join(parts, ", ") + ")"
}

var addCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Track currencies by id, name or symbol (comma separated lists accepted)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := a.loadWatchlist(cmd, false)
		if err != nil {
			return err
		}
		src, err := a.source()
		if err != nil {
			return err
		}
		if err := a.ensureCatalog(cmd, src); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var ids []string
		for _, name := range splitNames(args) {
			matches, err := price.Resolve(src.Name(), name)
			if errors.Is(err, types.ErrUnsupportedAsset) {
				fmt.Fprintf(out, "Unknown currency %s, try its full name or symbol\n", name)
				continue
			}
			if err != nil {
				return err
			}
			ids = append(ids, matches...)
		}

		added, duplicates := w.Add(ids...)
		for _, id := range duplicates {
			fmt.Fprintf(out, "Currency is already added: %s\n", id)
		}
		if len(added) == 0 {
			return nil
		}
		if err := a.saveWatchlist(w); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added %s\n", strings.Join(added, ", "))
		return nil
	},
}

func splitNames(args []string) []string {
	var names []string
	for _, arg := range args {
		for _, n := range strings.Split(arg, ",") {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				names = append(names, n)
			}
		}
	}
	return lo.Uniq(names)
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Stop tracking a currency and drop its thresholds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := a.loadWatchlist(cmd, false)
		if err != nil {
			return err
		}
		if err := w.Remove(args[0]); err != nil {
			return err
		}
		if err := a.saveWatchlist(w); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Successfully removed currency")
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <id>",
	Short: "Set the prices above or below which an alert is sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		above, _ := cmd.Flags().GetString("above")
		below, _ := cmd.Flags().GetString("below")
		clearAll, _ := cmd.Flags().GetBool("clear")

		w, err := a.loadWatchlist(cmd, false)
		if err != nil {
			return err
		}

		if clearAll {
			if err := w.ClearThresholds(id); err != nil {
				return err
			}
		} else {
			if above == "" && below == "" {
				return errors.New("set --above, --below or --clear")
			}
			upper, err := parseThreshold("above", above)
			if err != nil {
				return err
			}
			lower, err := parseThreshold("below", below)
			if err != nil {
				return err
			}
			if err := w.SetThresholds(id, upper, lower); err != nil {
				return err
			}
		}

		if err := a.saveWatchlist(w); err != nil {
			return err
		}
		if lo.Contains(w.InvertedBounds(), id) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: the upper threshold of %s does not exceed its lower threshold\n", id)
		}
		t, ok := w.Thresholds(id)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "No notifications for %s\n", id)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", id, describeThresholds(t))
		return nil
	},
}

func parseThreshold(flag, value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(err, "invalid --%s value %q", flag, value)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, errors.Errorf("--%s must not be negative", flag)
	}
	return decimal.NewNullDecimal(d), nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Update the list of supported currencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := a.source()
		if err != nil {
			return err
		}
		catalog, ok := src.(price.Catalog)
		if !ok {
			return errors.Errorf("%s does not publish a currency list", src.Name())
		}
		n, err := price.RefreshCatalog(cmd.Context(), catalog)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d supported currencies saved\n", n)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := a.loadWatchlist(cmd, false)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		shown := w.Snapshot()
		if shown.AuthToken != "" {
			shown.AuthToken = "********"
		}
		data, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "config file: %s\n%s\n", a.paths.ConfigFile, data)

		s := a.settings
		fmt.Fprintf(out, "price source: %s\ntransport: %s\ninterval: %s\nfire once: %t\n",
			s.PriceSource, s.Transport, s.Interval, s.FireOnce)

		src, err := a.source()
		if err != nil {
			return err
		}
		count, updated, err := database.CatalogInfo(src.Name())
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Fprintln(out, "supported currencies: not downloaded yet")
		} else {
			fmt.Fprintf(out, "supported currencies: %s, updated %s\n", humanize.Comma(int64(count)), humanize.Time(updated))
		}

		if pid, running := daemon.Status(a.paths.PidFile); running {
			fmt.Fprintf(out, "listener: running (pid %d)\n", pid)
		} else {
			fmt.Fprintln(out, "listener: stopped")
		}
		return nil
	},
}

func init() {
	notifyCmd.Flags().String("above", "", "alert when the price goes above this value")
	notifyCmd.Flags().String("below", "", "alert when the price drops below this value")
	notifyCmd.Flags().Bool("clear", false, "remove both thresholds")
}

func (a *app) source() (price.Source, error) {
	return price.NewSource(a.settings.PriceSource, price.Options{
		APIProKey:    a.settings.APIProKey,
		CoinGeckoURL: a.settings.CoinGeckoURL,
		Timeout:      a.settings.RequestTimeout,
	})
}

// ensureCatalog downloads the supported currencies the first time they are needed.
func (a *app) ensureCatalog(cmd *cobra.Command, src price.Source) error {
	count, _, err := database.CatalogInfo(src.Name())
	if err != nil || count > 0 {
		return err
	}
	catalog, ok := src.(price.Catalog)
	if !ok {
		return errors.Errorf("%s does not publish a currency list", src.Name())
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Downloading supported currencies...")
	_, err = price.RefreshCatalog(cmd.Context(), catalog)
	return err
}
