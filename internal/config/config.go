package config

import (
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

const (
	DefaultInterval          = 1
	DefaultTemperature       = 80.0
	DefaultUtilization       = 90.0
	DefaultMemoryUtilization = 90.0
	DefaultPowerDraw         = 250.0
	DefaultDatabase          = "/var/lib/nvidiamon/nvidiamon.db"

	envConfigFile = "NVIDIAMON_CONFIG"
)

type Config struct {
	Interval          int
	Temperature       float64
	Utilization       float64
	MemoryUtilization float64 `mapstructure:"memory_utilization"`
	PowerDraw         float64 `mapstructure:"power_draw"`
	Sound             bool
	SoundFile         string `mapstructure:"sound_file"`
	Record            bool
	Database          string
	Listen            string
	Debug             bool
	Verbose           bool

	v *viper.Viper
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("utilization", DefaultUtilization)
	v.SetDefault("memory_utilization", DefaultMemoryUtilization)
	v.SetDefault("power_draw", DefaultPowerDraw)
	v.SetDefault("sound", true)
	v.SetDefault("sound_file", "")
	v.SetDefault("record", false)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("listen", "")

	fs := pflag.NewFlagSet("nvidiamon", pflag.ContinueOnError)
	fs.Int("interval", DefaultInterval, "Seconds between samples")
	fs.Float64("temperature", DefaultTemperature, "Temperature alert threshold in °C")
	fs.Float64("utilization", DefaultUtilization, "GPU utilization alert threshold in %")
	fs.Float64("memory-utilization", DefaultMemoryUtilization, "Memory utilization alert threshold in %")
	fs.Float64("power-draw", DefaultPowerDraw, "Power draw alert threshold in W")
	fs.Bool("sound", true, "Play a sound when an alert fires")
	fs.String("sound-file", "", "Path to a WAV file for alert sounds")
	fs.Bool("record", false, "Record samples to the local database")
	fs.String("database", DefaultDatabase, "Path to the sample database")
	fs.String("listen", "", "Address for the HTTP endpoint (empty disables it)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	configFlag := fs.String("config", "", "Path to the configuration file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"interval":           "interval",
		"temperature":        "temperature",
		"utilization":        "utilization",
		"memory_utilization": "memory-utilization",
		"power_draw":         "power-draw",
		"sound":              "sound",
		"sound_file":         "sound-file",
		"record":             "record",
		"database":           "database",
		"listen":             "listen",
		"debug":              "debug",
		"verbose":            "verbose",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix("NVIDIAMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configFile := *configFlag
	if configFile == "" {
		configFile = os.Getenv(envConfigFile)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("nvidiamon")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{v: v}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the loaded values form a usable configuration.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval < 1 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	return c.Settings().Validate()
}

// Thresholds returns the alert limits keyed by metric.
func (c *Config) Thresholds() gpu.Thresholds {
	return gpu.Thresholds{
		gpu.MetricTemperature:       c.Temperature,
		gpu.MetricUtilization:       c.Utilization,
		gpu.MetricMemoryUtilization: c.MemoryUtilization,
		gpu.MetricPowerDraw:         c.PowerDraw,
	}
}

// Watch re-reads the configuration file whenever it changes and hands each
// valid result to onChange. Invalid updates are logged and dropped, leaving
// the previous configuration in effect. Returns false when no configuration
// file is in use.
func (c *Config) Watch(onChange func(Config)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		next := Config{}
		if err := c.v.Unmarshal(&next); err != nil {
			logger.Warn().Err(err).Msg("Ignoring configuration update: unmarshal failed")
			return
		}
		if err := next.Validate(); err != nil {
			logger.Warn().Err(err).Msg("Ignoring configuration update: validation failed")
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()

	return true
}
