package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InventoryPolicy carries tunables that operators may change without a restart.
type InventoryPolicy struct {
	OrderPrefix      string `mapstructure:"orderPrefix"`
	QuotePrefix      string `mapstructure:"quotePrefix"`
	SalePrefix       string `mapstructure:"salePrefix"`
	SequenceWidth    int    `mapstructure:"sequenceWidth"`
	LowStockDefault  int64  `mapstructure:"lowStockDefault"`
	IncomeCategory   string `mapstructure:"incomeCategory"`
	MaxItemsPerOrder int    `mapstructure:"maxItemsPerOrder"`
}

func DefaultInventoryPolicy() InventoryPolicy {
	return InventoryPolicy{
		OrderPrefix:      "PED",
		QuotePrefix:      "ORC",
		SalePrefix:       "VND",
		SequenceWidth:    4,
		LowStockDefault:  0,
		IncomeCategory:   "sales",
		MaxItemsPerOrder: 200,
	}
}

type InventoryPolicyHolder struct {
	current atomic.Value // holds InventoryPolicy
}

// StaticInventoryPolicy returns a holder that never reloads.
func StaticInventoryPolicy(policy InventoryPolicy) *InventoryPolicyHolder {
	holder := &InventoryPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewInventoryPolicyHolder() (*InventoryPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("inventory")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/kitstock")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KITSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInventoryPolicy()
	v.SetDefault("inventory.orderPrefix", defaults.OrderPrefix)
	v.SetDefault("inventory.quotePrefix", defaults.QuotePrefix)
	v.SetDefault("inventory.salePrefix", defaults.SalePrefix)
	v.SetDefault("inventory.sequenceWidth", defaults.SequenceWidth)
	v.SetDefault("inventory.lowStockDefault", defaults.LowStockDefault)
	v.SetDefault("inventory.incomeCategory", defaults.IncomeCategory)
	v.SetDefault("inventory.maxItemsPerOrder", defaults.MaxItemsPerOrder)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy InventoryPolicy
	if err := v.UnmarshalKey("inventory", &policy); err != nil {
		return nil, err
	}
	if err := validateInventoryPolicy(policy); err != nil {
		return nil, err
	}

	holder := StaticInventoryPolicy(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InventoryPolicy
		if err := v.UnmarshalKey("inventory", &updated); err != nil {
			log.Printf("[inventory-policy] reload failed: %v", err)
			return
		}
		if err := validateInventoryPolicy(updated); err != nil {
			log.Printf("[inventory-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[inventory-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *InventoryPolicyHolder) Get() InventoryPolicy {
	return h.current.Load().(InventoryPolicy)
}

func validateInventoryPolicy(p InventoryPolicy) error {
	if strings.TrimSpace(p.OrderPrefix) == "" || strings.TrimSpace(p.QuotePrefix) == "" || strings.TrimSpace(p.SalePrefix) == "" {
		return errors.New("inventory prefixes cannot be empty")
	}
	if p.SequenceWidth < 1 || p.SequenceWidth > 12 {
		return errors.New("inventory.sequenceWidth must be between 1 and 12")
	}
	if p.LowStockDefault < 0 {
		return errors.New("inventory.lowStockDefault cannot be negative")
	}
	if p.MaxItemsPerOrder < 1 {
		return errors.New("inventory.maxItemsPerOrder must be positive")
	}
	return nil
}
