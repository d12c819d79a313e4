package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"price-notifications/config"
	"price-notifications/internal/alert"
	"price-notifications/internal/daemon"
	"price-notifications/internal/metrics"
	"price-notifications/internal/poller"
	"price-notifications/internal/price"
	"price-notifications/internal/telegram"
	"price-notifications/internal/twilio"
	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var listenCmd = &cobra.Command{
	Use:   "listen [interval_seconds]",
	Short: "Poll prices and send alerts until stopped",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListen,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Tell whether a background listener is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, running := daemon.Status(a.paths.PidFile)
		switch {
		case running:
			fmt.Fprintf(cmd.OutOrStdout(), "Listener running with pid %d\n", pid)
		case pid != 0:
			fmt.Fprintf(cmd.OutOrStdout(), "Listener is not running (stale pid file for pid %d)\n", pid)
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Listener is not running")
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background listener",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := daemon.Stop(a.paths.PidFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopping listener (pid %d)\n", pid)
		return nil
	},
}

func init() {
	listenCmd.Flags().BoolP("daemon", "d", false, "detach and run in the background")
}

func parseInterval(args []string, fallback time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil || secs <= 0 {
		return 0, errors.Errorf("invalid interval %q, expected a positive number of seconds", args[0])
	}
	return time.Duration(secs) * time.Second, nil
}

func newTransport(s config.Settings, contact types.Contact) (alert.Transport, error) {
	switch strings.ToLower(s.Transport) {
	case "twilio", "":
		if contact.From == "" || contact.To == "" {
			return nil, errors.New("my_number and to_number must be set in the config file")
		}
		c, err := twilio.NewClient(contact, s.RequestTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "telegram":
		if _, err := telegram.ParseChatID(contact.To); err != nil {
			return nil, errors.Wrap(err, "to_number must hold the telegram chat id")
		}
		bot, err := telegram.NewBot(telegram.BotConfig{
			Token:   s.TelegramBotToken,
			Debug:   s.Debug,
			Timeout: int(s.RequestTimeout / time.Second),
		})
		if err != nil {
			return nil, err
		}
		return bot, nil
	default:
		return nil, errors.Errorf("unknown transport: %s", s.Transport)
	}
}

func runListen(cmd *cobra.Command, args []string) error {
	interval, err := parseInterval(args, a.settings.Interval)
	if err != nil {
		return err
	}
	detach, _ := cmd.Flags().GetBool("daemon")

	w, err := a.loadWatchlist(cmd, true)
	if err != nil {
		return err
	}
	if len(w.Currencies) == 0 {
		log.Warn("No currencies added yet, the listener will only poll an empty list")
	}

	src, err := a.source()
	if err != nil {
		return err
	}
	transport, err := newTransport(a.settings, w.Contact())
	if err != nil {
		return err
	}

	m := metrics.New()
	sched, err := poller.New(poller.Options{
		Source:     src,
		Store:      w.Snapshot(),
		Dispatcher: alert.NewDispatcher(transport, a.settings.RequestTimeout),
		Contact:    w.Contact(),
		Quote:      w.PricedIn,
		Interval:   interval,
		Timeout:    a.settings.RequestTimeout,
		FireOnce:   a.settings.FireOnce,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	if detach {
		handle, err := daemon.Start(daemon.Options{
			PidFile: a.paths.PidFile,
			WorkDir: a.paths.Dir,
			LogFile: a.paths.LogFile,
		})
		if err != nil {
			log.Error(err)
			return err
		}
		if handle.Parent {
			fmt.Fprintf(cmd.OutOrStdout(), "Listener started in the background (pid %d), logging to %s\n",
				handle.Child.Pid, a.paths.LogFile)
			return nil
		}
		defer handle.Release()
	}

	if !a.settings.Debug {
		log.SetLevel(log.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.LoadFromDB()
	m.TrackedAssets.Set(float64(len(w.Currencies)))
	defer m.SaveToDB()

	housekeeping, err := a.housekeeping(ctx, src, m)
	if err != nil {
		return err
	}
	housekeeping.Start()
	defer func() { <-housekeeping.Stop().Done() }()

	err = runLoops(ctx, sched, m, a.settings.MetricsPort)
	log.Info("Shutting down")
	return err
}

type runner interface {
	Run(ctx context.Context) error
}

// runLoops runs the poll loop and, when port is positive, the metrics
// endpoint. A metrics endpoint failure is logged and never stops the poll loop.
func runLoops(ctx context.Context, sched runner, m *metrics.Metrics, port int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if port > 0 {
		g.Go(func() error {
			if err := m.Serve(gctx, port); err != nil {
				log.Errorf("Metrics server stopped, alerts keep running: %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// housekeeping schedules the metrics snapshot and the catalog refresh.
func (a *app) housekeeping(ctx context.Context, src price.Source, m *metrics.Metrics) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(a.settings.MetricsSnapshotCron, m.SaveToDB); err != nil {
		return nil, errors.Wrapf(err, "invalid metrics_snapshot_cron %q", a.settings.MetricsSnapshotCron)
	}

	if catalog, ok := src.(price.Catalog); ok && a.settings.CatalogRefreshCron != "" {
		_, err := c.AddFunc(a.settings.CatalogRefreshCron, func() {
			if _, err := price.RefreshCatalog(ctx, catalog); err != nil {
				log.Errorf("Failed to refresh supported currencies: %v", err)
			}
		})
		if err != nil {
			return nil, errors.Wrapf(err, "invalid catalog_refresh_cron %q", a.settings.CatalogRefreshCron)
		}
	}
	return c, nil
}
