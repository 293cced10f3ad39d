package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CalcConfig holds the tunable parts of the calculation pipeline that
// operators adjust without a redeploy: how top-level sequences map onto
// the three summary categories.
type CalcConfig struct {
	SummaryCategories []SummaryCategory `mapstructure:"summaryCategories"`
}

// SummaryCategory classifies a top-level sequence by name keywords.
type SummaryCategory struct {
	Key      string   `mapstructure:"key"`
	Keywords []string `mapstructure:"keywords"`
}

func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		SummaryCategories: []SummaryCategory{
			{Key: "clinician", Keywords: []string{"医生", "医师", "doctor", "clinician", "physician"}},
			{Key: "nursing", Keywords: []string{"护理", "护士", "nurse", "nursing"}},
			{Key: "technical", Keywords: []string{"医技", "技师", "tech", "technical"}},
		},
	}
}

type CalcConfigHolder struct {
	current atomic.Value // holds CalcConfig
}

func NewCalcConfigHolder() (*CalcConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("calculation")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/valuemed/config")
	v.AddConfigPath("/etc/valuemed")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VALUEMED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCalcConfig()
		v.SetDefault("calculation.summaryCategories", defaults.SummaryCategories)
	}

	var cfg CalcConfig
	if err := v.UnmarshalKey("calculation", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.SummaryCategories) == 0 {
		cfg = DefaultCalcConfig()
	}
	if err := validateCalcConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CalcConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CalcConfig
		if err := v.UnmarshalKey("calculation", &updated); err != nil {
			log.Printf("[calc-config] reload failed: %v", err)
			return
		}
		if err := validateCalcConfig(updated); err != nil {
			log.Printf("[calc-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[calc-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCalcHolder wraps a fixed config, used by tests and callers that
// do not want file watching.
func NewStaticCalcHolder(cfg CalcConfig) *CalcConfigHolder {
	holder := &CalcConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CalcConfigHolder) Get() CalcConfig {
	return h.current.Load().(CalcConfig)
}

func validateCalcConfig(cfg CalcConfig) error {
	if len(cfg.SummaryCategories) == 0 {
		return errors.New("calculation.summaryCategories cannot be empty")
	}
	seen := make(map[string]bool, len(cfg.SummaryCategories))
	for _, cat := range cfg.SummaryCategories {
		key := strings.TrimSpace(cat.Key)
		if key == "" {
			return errors.New("summary category key cannot be empty")
		}
		if seen[key] {
			return errors.New("duplicate summary category key: " + key)
		}
		seen[key] = true
		if len(cat.Keywords) == 0 {
			return errors.New("summary category " + key + " has no keywords")
		}
	}
	return nil
}
