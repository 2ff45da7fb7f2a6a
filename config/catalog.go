package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

type planFile struct {
	PriceID     string `mapstructure:"price_id"`
	UnitAmount  int64  `mapstructure:"unit_amount"`
	Credits     int64  `mapstructure:"credits"`
	ProductName string `mapstructure:"product_name"`
}

type catalogFile struct {
	Currency             string        `mapstructure:"currency"`
	Interval             string        `mapstructure:"interval"`
	ExtractionCost       int64         `mapstructure:"extraction_cost"`
	RecentCheckoutWindow time.Duration `mapstructure:"recent_checkout_window"`
	IntentTTL            time.Duration `mapstructure:"intent_ttl"`
	Basic                planFile      `mapstructure:"basic"`
	Pro                  planFile      `mapstructure:"pro"`
}

// LoadCatalog reads billing.yml from path (or the usual locations when
// path is empty). Missing files fall back to the built-in catalog.
// Price ids from the environment win over the file.
func LoadCatalog(cfg Config) (plans.Catalog, error) {
	def := plans.DefaultCatalog()

	v := viper.New()
	v.SetDefault("billing.currency", def.Currency)
	v.SetDefault("billing.interval", def.Interval)
	v.SetDefault("billing.extraction_cost", def.ExtractionCost)
	v.SetDefault("billing.recent_checkout_window", def.RecentCheckoutWindow)
	v.SetDefault("billing.intent_ttl", def.IntentTTL)
	for key, p := range map[string]plans.PlanType{"basic": plans.Basic, "pro": plans.Pro} {
		spec := def.Plans[p]
		v.SetDefault("billing."+key+".unit_amount", spec.UnitAmount)
		v.SetDefault("billing."+key+".credits", spec.Credits)
		v.SetDefault("billing."+key+".product_name", spec.ProductName)
	}

	if cfg.BillingConfigPath != "" {
		v.SetConfigFile(cfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/pdf-scrapper")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfg.BillingConfigPath != "" {
			return plans.Catalog{}, fmt.Errorf("read billing config: %w", err)
		}
	}

	// Unmarshal, not UnmarshalKey: a partial file must still merge with
	// the defaults above.
	var file struct {
		Billing catalogFile `mapstructure:"billing"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return plans.Catalog{}, fmt.Errorf("decode billing config: %w", err)
	}
	f := file.Billing

	if cfg.StripePriceBasic != "" {
		f.Basic.PriceID = cfg.StripePriceBasic
	}
	if cfg.StripePricePro != "" {
		f.Pro.PriceID = cfg.StripePricePro
	}

	cat := plans.Catalog{
		Currency: f.Currency,
		Interval: f.Interval,
		Plans: map[plans.PlanType]plans.Spec{
			plans.Basic: toSpec(plans.Basic, f.Basic),
			plans.Pro:   toSpec(plans.Pro, f.Pro),
		},
		ExtractionCost:       f.ExtractionCost,
		RecentCheckoutWindow: f.RecentCheckoutWindow,
		IntentTTL:            f.IntentTTL,
	}
	if err := validateCatalog(cat); err != nil {
		return plans.Catalog{}, err
	}
	return cat, nil
}

func toSpec(p plans.PlanType, f planFile) plans.Spec {
	return plans.Spec{
		Plan:        p,
		PriceID:     f.PriceID,
		UnitAmount:  f.UnitAmount,
		Credits:     f.Credits,
		ProductName: f.ProductName,
	}
}

func validateCatalog(c plans.Catalog) error {
	for p, s := range c.Plans {
		if s.Credits <= 0 {
			return fmt.Errorf("billing.%s.credits must be positive", p.Label())
		}
		if s.PriceID == "" && s.UnitAmount <= 0 {
			return fmt.Errorf("billing.%s needs a price_id or a positive unit_amount", p.Label())
		}
	}
	if c.ExtractionCost <= 0 {
		return errors.New("billing.extraction_cost must be positive")
	}
	if c.Plans[plans.Basic].UnitAmount == c.Plans[plans.Pro].UnitAmount {
		return errors.New("billing.basic and billing.pro must have different unit amounts")
	}
	return nil
}
