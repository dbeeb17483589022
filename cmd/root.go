package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/feed"
	"github.com/spigell/job-radar/internal/ingest"
	"github.com/spigell/job-radar/internal/reconcile"
	"github.com/spigell/job-radar/internal/scheduler"
)

const (
	app       = "job-radar"
	envPrefix = "JOB_RADAR"
)

type Config struct {
	Candidate string           `mapstructure:"candidate"`
	Store     StoreConfig      `mapstructure:"store"`
	Feeds     []feed.Source    `mapstructure:"feeds"`
	Ingest    IngestConfig     `mapstructure:"ingest"`
	AI        AIConfig         `mapstructure:"ai"`
	Reconcile reconcile.Policy `mapstructure:"reconcile"`
	Events    events.Config    `mapstructure:"events"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
	Schedule  ScheduleConfig   `mapstructure:"schedule"`
}

type StoreConfig struct {
	// Driver is postgres or memory. The memory store lives for one command only.
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
}

type IngestConfig struct {
	ItemsPerFeed int           `mapstructure:"items-per-feed"`
	Threshold    int           `mapstructure:"threshold"`
	Concurrency  int           `mapstructure:"concurrency"`
	ItemTimeout  time.Duration `mapstructure:"item-timeout"`
	// RunTimeout is the wall clock budget of one pass. No feed or item starts after it.
	RunTimeout time.Duration `mapstructure:"run-timeout"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Throttle time.Duration `mapstructure:"throttle"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type TelemetryConfig struct {
	CollectorURL string `mapstructure:"collector-url"`
}

type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "job-radar watches job feeds, scores postings against your profile and tailors it for the ones worth applying to",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-radar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("candidate", "c", "", "candidate id the command works for")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("candidate", rootCmd.PersistentFlags().Lookup("candidate"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("candidate", "")
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("store.database-url", "")
	viper.SetDefault("store.database-url-file", "")
	viper.SetDefault("feeds", feed.DefaultSources)
	viper.SetDefault("ingest.items-per-feed", ingest.DefaultItemsPerFeed)
	viper.SetDefault("ingest.threshold", ingest.DefaultThreshold)
	viper.SetDefault("ingest.concurrency", 1)
	viper.SetDefault("ingest.item-timeout", 2*time.Minute)
	viper.SetDefault("ingest.run-timeout", 10*time.Minute)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.throttle", ai.DefaultThrottleDelay)
	viper.SetDefault("ai.timeout", time.Minute)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("reconcile.promote-tailored-score", false)
	viper.SetDefault("events.driver", "none")
	viper.SetDefault("events.url", "")
	viper.SetDefault("events.prefix", app)
	viper.SetDefault("telemetry.collector-url", "")
	viper.SetDefault("schedule.spec", scheduler.DefaultSpec)
}

func initConfig() {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without a config file the defaults and environment still apply.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
