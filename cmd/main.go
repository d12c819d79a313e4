package main

import (
	"fmt"
	"os"

	"price-notifications/config"
	"price-notifications/internal/database"
	"price-notifications/internal/watchlist"
	"price-notifications/lib/translation"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	paths    config.Paths
	settings config.Settings
}

var a = &app{}

var rootCmd = &cobra.Command{
	Use:           "price-notifications",
	Short:         "Watch crypto prices and get a text message when they cross your targets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return a.setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.CloseDB()
	},
}

func init() {
	config.InitConfig()

	rootCmd.PersistentFlags().String("config-dir", "", "configuration directory (default $HOME/"+config.DirName+")")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(
		pricesCmd,
		addCmd,
		removeCmd,
		notifyCmd,
		listenCmd,
		statusCmd,
		stopCmd,
		refreshCmd,
		configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	if err := config.ReadSettingsFile(paths.Dir); err != nil {
		return err
	}

	a.paths = paths
	a.settings = config.Load()
	setupLogging(a.settings.Debug)
	translation.Configure(paths.Locales, a.settings.Lang)

	if !watchlist.Exists(paths.ConfigFile) {
		fmt.Fprintln(cmd.OutOrStdout(), "Creating new config file", paths.ConfigFile)
		if err := watchlist.New().Save(paths.ConfigFile); err != nil {
			return err
		}
	}

	if err := database.InitDB(paths.Database); err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	return nil
}

func setupLogging(debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.ErrorLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting price-notifications...")
}

// loadWatchlist reads the config file. Thresholds left behind for untracked
// assets are an error when strict, a warning otherwise.
func (a *app) loadWatchlist(cmd *cobra.Command, strict bool) (*watchlist.Watchlist, error) {
	w, err := watchlist.Load(a.paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		if strict {
			return nil, err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
	}
	for _, id := range w.InvertedBounds() {
		log.Warnf("Upper threshold of %s does not exceed its lower threshold, both alerts may fire", id)
	}
	return w, nil
}

func (a *app) saveWatchlist(w *watchlist.Watchlist) error {
	return w.Save(a.paths.ConfigFile)
}
