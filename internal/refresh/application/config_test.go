package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearRefreshEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DELCO_REFRESH_INTERVAL",
		"DELCO_BILLING_LOOKBACK",
		"DELCO_PAYMENT_LOOKBACK",
		"DELCO_TIMEZONE",
		"DELCO_REFRESH_CONFIG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearRefreshEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Interval != DefaultInterval {
		t.Fatalf("expected interval %s, got %s", DefaultInterval, cfg.Interval)
	}
	if cfg.BillingLookback != DefaultBillingLookback {
		t.Fatalf("expected billing lookback %s, got %s", DefaultBillingLookback, cfg.BillingLookback)
	}
	if cfg.PaymentLookback != DefaultPaymentLookback {
		t.Fatalf("expected payment lookback %s, got %s", DefaultPaymentLookback, cfg.PaymentLookback)
	}
	if cfg.Zone != time.UTC {
		t.Fatalf("expected UTC zone, got %v", cfg.Zone)
	}
}

func TestLoadConfigEnvValues(t *testing.T) {
	clearRefreshEnv(t)
	t.Setenv("DELCO_REFRESH_INTERVAL", "1h")
	t.Setenv("DELCO_BILLING_LOOKBACK", "720h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Interval != time.Hour {
		t.Fatalf("expected 1h interval, got %s", cfg.Interval)
	}
	if cfg.BillingLookback != 720*time.Hour {
		t.Fatalf("expected 720h billing lookback, got %s", cfg.BillingLookback)
	}
	if cfg.PaymentLookback != DefaultPaymentLookback {
		t.Fatalf("expected default payment lookback, got %s", cfg.PaymentLookback)
	}
}

func TestLoadConfigFileOverridesEnv(t *testing.T) {
	clearRefreshEnv(t)
	path := filepath.Join(t.TempDir(), "refresh.yaml")
	if err := os.WriteFile(path, []byte("interval: 2h\nbilling_lookback: 48h\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DELCO_REFRESH_INTERVAL", "1h")
	t.Setenv("DELCO_REFRESH_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Interval != 2*time.Hour {
		t.Fatalf("expected file interval 2h, got %s", cfg.Interval)
	}
	if cfg.BillingLookback != 48*time.Hour {
		t.Fatalf("expected file billing lookback 48h, got %s", cfg.BillingLookback)
	}
	if cfg.PaymentLookback != DefaultPaymentLookback {
		t.Fatalf("expected default payment lookback, got %s", cfg.PaymentLookback)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"unparsable interval", "DELCO_REFRESH_INTERVAL", "six hours"},
		{"negative interval", "DELCO_REFRESH_INTERVAL", "-1h"},
		{"zero lookback", "DELCO_BILLING_LOOKBACK", "0s"},
		{"unknown timezone", "DELCO_TIMEZONE", "Not/AZone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearRefreshEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected a config error")
			}
		})
	}
}
