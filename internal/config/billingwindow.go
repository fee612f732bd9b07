package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WindowConfig couples the billing lookback to the evaluation cadence.
// Both live in one document so they can only change together: the lookback
// is what recovers merchants whose fire hour was missed, and it must stay
// wide enough to cover at least two evaluation cycles.
type WindowConfig struct {
	LookbackDays int    `mapstructure:"lookbackDays"`
	Cadence      string `mapstructure:"cadence"`
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		LookbackDays: 2,
		Cadence:      "1h",
	}
}

func (w WindowConfig) Lookback() time.Duration {
	return time.Duration(w.LookbackDays) * 24 * time.Hour
}

func (w WindowConfig) CadenceDuration() time.Duration {
	d, err := time.ParseDuration(w.Cadence)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

type WindowConfigHolder struct {
	current atomic.Value // holds WindowConfig
}

func NewWindowConfigHolder() (*WindowConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("window")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/recurra/config")
	v.AddConfigPath("/etc/recurra")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECURRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultWindowConfig()
	v.SetDefault("window.lookbackDays", defaults.LookbackDays)
	v.SetDefault("window.cadence", defaults.Cadence)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg WindowConfig
	if err := v.UnmarshalKey("window", &cfg); err != nil {
		return nil, err
	}
	if err := validateWindowConfig(cfg); err != nil {
		return nil, err
	}

	holder := &WindowConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WindowConfig
		if err := v.UnmarshalKey("window", &updated); err != nil {
			log.Printf("[window-config] reload failed: %v", err)
			return
		}
		if err := validateWindowConfig(updated); err != nil {
			log.Printf("[window-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[window-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *WindowConfigHolder) Get() WindowConfig {
	return h.current.Load().(WindowConfig)
}

// StaticWindowConfig wraps a fixed config, for tests and inline runs.
func StaticWindowConfig(cfg WindowConfig) *WindowConfigHolder {
	holder := &WindowConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateWindowConfig(cfg WindowConfig) error {
	if cfg.LookbackDays < 1 {
		return errors.New("window.lookbackDays must be at least 1")
	}
	if _, err := time.ParseDuration(cfg.Cadence); err != nil {
		return errors.New("window.cadence must be a valid duration")
	}
	if cfg.Lookback() < 2*cfg.CadenceDuration() {
		return errors.New("window.lookbackDays must cover at least two evaluation cycles")
	}
	return nil
}
