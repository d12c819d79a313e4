package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DirName is the per-user configuration directory, relative to $HOME.
const DirName = ".config/price-notifications"

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("config_dir", "PN_CONFIG_DIR")
		viper.BindEnv("interval", "PN_INTERVAL")
		viper.BindEnv("price_source", "PN_PRICE_SOURCE")
		viper.BindEnv("transport", "PN_TRANSPORT")
		viper.BindEnv("fire_once", "PN_FIRE_ONCE")
		viper.BindEnv("request_timeout", "PN_REQUEST_TIMEOUT")
		viper.BindEnv("metrics_port", "PN_METRICS_PORT")
		viper.BindEnv("debug", "PN_DEBUG")
		viper.BindEnv("lang", "PN_LANG")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("coingecko_url", "PN_COINGECKO_URL")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("catalog_refresh_cron", "PN_CATALOG_REFRESH_CRON")
		viper.BindEnv("metrics_snapshot_cron", "PN_METRICS_SNAPSHOT_CRON")

		viper.SetDefault("interval", 600)
		viper.SetDefault("price_source", "coingecko")
		viper.SetDefault("transport", "twilio")
		viper.SetDefault("fire_once", false)
		viper.SetDefault("request_timeout", 15*time.Second)
		viper.SetDefault("metrics_port", 0)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("coingecko_url", "https://api.coingecko.com/api/v3")
		viper.SetDefault("catalog_refresh_cron", "@daily")
		viper.SetDefault("metrics_snapshot_cron", "@every 5m")
	})
}

// ReadSettingsFile merges an optional settings.{yaml,json,toml} from dir.
// A missing file is not an error.
func ReadSettingsFile(dir string) error {
	InitConfig()
	viper.SetConfigName("settings")
	viper.AddConfigPath(dir)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "could not read settings file")
	}
	return nil
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}

// Settings is a snapshot of the runtime settings taken once at startup.
type Settings struct {
	Interval            time.Duration
	PriceSource         string
	Transport           string
	FireOnce            bool
	RequestTimeout      time.Duration
	MetricsPort         int
	Debug               bool
	Lang                string
	APIProKey           string
	CoinGeckoURL        string
	TelegramBotToken    string
	CatalogRefreshCron  string
	MetricsSnapshotCron string
}

func Load() Settings {
	return Settings{
		Interval:            time.Duration(GetInt("interval")) * time.Second,
		PriceSource:         GetString("price_source"),
		Transport:           GetString("transport"),
		FireOnce:            GetBool("fire_once"),
		RequestTimeout:      GetDuration("request_timeout"),
		MetricsPort:         GetInt("metrics_port"),
		Debug:               GetBool("debug"),
		Lang:                GetString("lang"),
		APIProKey:           GetString("api_pro_key"),
		CoinGeckoURL:        GetString("coingecko_url"),
		TelegramBotToken:    GetString("telegram_bot_token"),
		CatalogRefreshCron:  GetString("catalog_refresh_cron"),
		MetricsSnapshotCron: GetString("metrics_snapshot_cron"),
	}
}

// Paths are the well-known files under the configuration directory.
type Paths struct {
	Dir        string
	ConfigFile string
	LogsDir    string
	LogFile    string
	PidFile    string
	Database   string
	Locales    string
}

func PathsFor(dir string) Paths {
	logs := filepath.Join(dir, "logs")
	return Paths{
		Dir:        dir,
		ConfigFile: filepath.Join(dir, "config.json"),
		LogsDir:    logs,
		LogFile:    filepath.Join(logs, "daemon.log"),
		PidFile:    filepath.Join(dir, "price_listening_daemon.pid"),
		Database:   filepath.Join(dir, "catalog.db"),
		Locales:    filepath.Join(dir, "locales"),
	}
}

// ResolvePaths computes the configuration directory once: the config_dir
// setting when present, otherwise $HOME/.config/price-notifications.
func ResolvePaths() (Paths, error) {
	if dir := GetString("config_dir"); dir != "" {
		return PathsFor(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, errors.Wrap(err, "could not resolve home directory")
	}
	return PathsFor(filepath.Join(home, DirName)), nil
}

// EnsureDirs creates the configuration and log directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Dir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "could not create %s", dir)
		}
	}
	return nil
}
