package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CoinPlan is a purchasable coin bundle. Checkout happens outside this
// service; plans only validate inbound payment confirmations.
type CoinPlan struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Coins int64  `mapstructure:"coins"`
}

// PricingConfig holds the coin economics of the service.
type PricingConfig struct {
	CoinsPerVideo       int64      `mapstructure:"coinsPerVideo"`
	WelcomeBonusCoins   int64      `mapstructure:"welcomeBonusCoins"`
	WelcomeBonusTTLDays int        `mapstructure:"welcomeBonusTtlDays"`
	Plans               []CoinPlan `mapstructure:"plans"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		CoinsPerVideo:       15,
		WelcomeBonusCoins:   40,
		WelcomeBonusTTLDays: 30,
		Plans: []CoinPlan{
			{ID: "starter", Name: "Starter", Coins: 50},
			{ID: "creator", Name: "Creator", Coins: 150},
			{ID: "studio", Name: "Studio", Coins: 500},
		},
	}
}

// PricingConfigHolder serves the current pricing config and hot-reloads it
// when the underlying file changes.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/promoreel/config")
	v.AddConfigPath("/etc/promoreel")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PROMOREEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.coinsPerVideo", defaults.CoinsPerVideo)
		v.SetDefault("pricing.welcomeBonusCoins", defaults.WelcomeBonusCoins)
		v.SetDefault("pricing.welcomeBonusTtlDays", defaults.WelcomeBonusTTLDays)
		v.SetDefault("pricing.plans", defaults.Plans)
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingConfigHolder wraps a fixed config with no file watching.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// Plan looks up a purchasable plan by id.
func (c PricingConfig) Plan(id string) (CoinPlan, bool) {
	id = strings.TrimSpace(id)
	for _, plan := range c.Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return CoinPlan{}, false
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.CoinsPerVideo <= 0 {
		return errors.New("pricing.coinsPerVideo must be positive")
	}
	if cfg.WelcomeBonusCoins < 0 {
		return errors.New("pricing.welcomeBonusCoins cannot be negative")
	}
	for _, plan := range cfg.Plans {
		if strings.TrimSpace(plan.ID) == "" {
			return errors.New("pricing.plans entries require an id")
		}
		if plan.Coins <= 0 {
			return errors.New("pricing.plans entries require positive coins")
		}
	}
	return nil
}
