package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default cadence and lookback windows. Billing history reaches back one
// year, payment history two.
const (
	DefaultInterval        = 6 * time.Hour
	DefaultBillingLookback = 365 * 24 * time.Hour
	DefaultPaymentLookback = 2 * 365 * 24 * time.Hour
)

// Config holds refresh cadence and history lookback windows. Zone anchors
// bill period starts when reconciling statistics.
type Config struct {
	Interval        time.Duration
	BillingLookback time.Duration
	PaymentLookback time.Duration
	Zone            *time.Location
}

type fileConfig struct {
	Interval        string `yaml:"interval"`
	BillingLookback string `yaml:"billing_lookback"`
	PaymentLookback string `yaml:"payment_lookback"`
	Timezone        string `yaml:"timezone"`
}

// LoadConfig loads refresh settings from env. A yaml file pointed at by
// DELCO_REFRESH_CONFIG overrides individual env values.
func LoadConfig() (Config, error) {
	raw := fileConfig{
		Interval:        os.Getenv("DELCO_REFRESH_INTERVAL"),
		BillingLookback: os.Getenv("DELCO_BILLING_LOOKBACK"),
		PaymentLookback: os.Getenv("DELCO_PAYMENT_LOOKBACK"),
		Timezone:        os.Getenv("DELCO_TIMEZONE"),
	}

	if path := os.Getenv("DELCO_REFRESH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{Zone: time.UTC}

	var err error
	if cfg.Interval, err = resolveDuration(raw.Interval, DefaultInterval); err != nil {
		return Config{}, fmt.Errorf("refresh: interval: %w", err)
	}
	if cfg.BillingLookback, err = resolveDuration(raw.BillingLookback, DefaultBillingLookback); err != nil {
		return Config{}, fmt.Errorf("refresh: billing lookback: %w", err)
	}
	if cfg.PaymentLookback, err = resolveDuration(raw.PaymentLookback, DefaultPaymentLookback); err != nil {
		return Config{}, fmt.Errorf("refresh: payment lookback: %w", err)
	}
	if raw.Timezone != "" {
		loc, err := time.LoadLocation(raw.Timezone)
		if err != nil {
			return Config{}, fmt.Errorf("refresh: timezone: %w", err)
		}
		cfg.Zone = loc
	}
	return cfg, nil
}

func resolveDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", value)
	}
	return parsed, nil
}
