/*
config.go - Environment-driven configuration

PURPOSE:
  Loads server and engine settings from the environment (with optional
  .env file for local development) and translates the engine knobs into
  the typed configs the crm package consumes.

PRECEDENCE:
  Explicit environment variables win over .env, which wins over the
  defaults below. The defaults reproduce the standard commission plan:
  Monday-start pay weeks paid the following Friday, 14-day ownership
  staleness, 15%/20% tiers with a bonus threshold of 7 signups.

SEE ALSO:
  - crm/payperiod.go: PayPeriodConfig consumed by EnginePayPeriods
  - crm/tier.go: TierConfig consumed by EngineTiers
  - cmd/server/main.go: Sole consumer at startup
*/
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/cumberland/sales-engine/crm"
)

type Config struct {
	Server   Server   `mapstructure:",squash"`
	Database Database `mapstructure:",squash"`
	Engine   Engine   `mapstructure:",squash"`
	Plans    Plans    `mapstructure:",squash"`
	PayRun   PayRun   `mapstructure:",squash"`
	App      App      `mapstructure:",squash"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type Database struct {
	Path string `mapstructure:"database_path"`
}

// Engine holds the commission-plan and ownership knobs. RenewalRate is a
// decimal string; empty means renewals follow the rep's current tier.
type Engine struct {
	StaleAfterDays    int    `mapstructure:"ownership_stale_after_days"`
	WeekStart         int    `mapstructure:"pay_week_start"`
	PayDateOffsetDays int    `mapstructure:"pay_date_offset_days"`
	BonusThreshold    int    `mapstructure:"tier_bonus_threshold"`
	BaseRate          string `mapstructure:"tier_base_rate"`
	BonusRate         string `mapstructure:"tier_bonus_rate"`
	RenewalRate       string `mapstructure:"tier_renewal_rate"`
}

// Plans optionally overrides the plan catalog. The format is
// "name=monthly_cents" pairs separated by commas; empty keeps the
// default catalog.
type Plans struct {
	Catalog string `mapstructure:"plan_catalog"`
}

type PayRun struct {
	Enabled       bool `mapstructure:"payrun_enabled"`
	IntervalHours int  `mapstructure:"payrun_interval_hours"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
	SeedDemo bool   `mapstructure:"seed_demo_data"`
}

func setDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8080)

	viper.SetDefault("DATABASE_PATH", "sales.db")

	viper.SetDefault("OWNERSHIP_STALE_AFTER_DAYS", 14)
	viper.SetDefault("PAY_WEEK_START", int(time.Monday))
	viper.SetDefault("PAY_DATE_OFFSET_DAYS", 5)
	viper.SetDefault("TIER_BONUS_THRESHOLD", 7)
	viper.SetDefault("TIER_BASE_RATE", "0.15")
	viper.SetDefault("TIER_BONUS_RATE", "0.20")
	viper.SetDefault("TIER_RENEWAL_RATE", "")
	viper.SetDefault("PLAN_CATALOG", "")

	viper.SetDefault("PAYRUN_ENABLED", true)
	viper.SetDefault("PAYRUN_INTERVAL_HOURS", 1)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SEED_DEMO_DATA", false)
}

func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment only")
	}

	setDefaults()
	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		logrus.Debug("viper could not read .env, relying on environment: ", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.StaleAfterDays <= 0 {
		return fmt.Errorf("OWNERSHIP_STALE_AFTER_DAYS must be positive, got %d", c.Engine.StaleAfterDays)
	}
	if c.Engine.WeekStart < 0 || c.Engine.WeekStart > 6 {
		return fmt.Errorf("PAY_WEEK_START must be 0 (Sunday) through 6 (Saturday), got %d", c.Engine.WeekStart)
	}
	if c.Engine.PayDateOffsetDays < 0 {
		return fmt.Errorf("PAY_DATE_OFFSET_DAYS must not be negative, got %d", c.Engine.PayDateOffsetDays)
	}
	if c.Engine.BonusThreshold < 0 {
		return fmt.Errorf("TIER_BONUS_THRESHOLD must not be negative, got %d", c.Engine.BonusThreshold)
	}
	if _, err := decimal.NewFromString(c.Engine.BaseRate); err != nil {
		return fmt.Errorf("TIER_BASE_RATE %q is not a decimal: %w", c.Engine.BaseRate, err)
	}
	if _, err := decimal.NewFromString(c.Engine.BonusRate); err != nil {
		return fmt.Errorf("TIER_BONUS_RATE %q is not a decimal: %w", c.Engine.BonusRate, err)
	}
	if c.Engine.RenewalRate != "" {
		if _, err := decimal.NewFromString(c.Engine.RenewalRate); err != nil {
			return fmt.Errorf("TIER_RENEWAL_RATE %q is not a decimal: %w", c.Engine.RenewalRate, err)
		}
	}
	if _, err := parsePlanCatalog(c.Plans.Catalog); err != nil {
		return fmt.Errorf("PLAN_CATALOG: %w", err)
	}
	return nil
}

func parsePlanCatalog(spec string) (crm.PlanCatalog, error) {
	if spec == "" {
		return crm.DefaultPlanCatalog(), nil
	}

	catalog := make(crm.PlanCatalog)
	for _, pair := range strings.Split(spec, ",") {
		name, price, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed entry %q, want name=monthly_cents", pair)
		}
		cents, err := strconv.ParseInt(price, 10, 64)
		if err != nil || cents <= 0 {
			return nil, fmt.Errorf("plan %s: monthly price %q is not a positive cent amount", name, price)
		}
		catalog[name] = crm.Plan{
			Name:         name,
			DisplayName:  strings.ToUpper(name[:1]) + name[1:],
			MonthlyPrice: crm.NewMoney(cents),
		}
	}
	return catalog, nil
}

// Addr returns the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StaleAfter returns the ownership staleness window as a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Engine.StaleAfterDays) * 24 * time.Hour
}

// PayRunInterval returns how often the pay-run scheduler wakes up.
func (c *Config) PayRunInterval() time.Duration {
	return time.Duration(c.PayRun.IntervalHours) * time.Hour
}

// EnginePayPeriods builds the pay-period config from the loaded settings.
func (c *Config) EnginePayPeriods() crm.PayPeriodConfig {
	return crm.PayPeriodConfig{
		WeekStart:         time.Weekday(c.Engine.WeekStart),
		PayDateOffsetDays: c.Engine.PayDateOffsetDays,
	}
}

// EngineTiers builds the tier config from the loaded settings. Rates are
// validated at load time, so parse failures here are impossible.
func (c *Config) EngineTiers() crm.TierConfig {
	tc := crm.TierConfig{
		BonusThreshold: c.Engine.BonusThreshold,
		BaseRate:       decimal.RequireFromString(c.Engine.BaseRate),
		BonusRate:      decimal.RequireFromString(c.Engine.BonusRate),
	}
	if c.Engine.RenewalRate != "" {
		rate := decimal.RequireFromString(c.Engine.RenewalRate)
		tc.RenewalRate = &rate
	}
	return tc
}

// EnginePlans builds the plan catalog, applying any configured override.
// The override is validated at load time.
func (c *Config) EnginePlans() crm.PlanCatalog {
	catalog, err := parsePlanCatalog(c.Plans.Catalog)
	if err != nil {
		return crm.DefaultPlanCatalog()
	}
	return catalog
}

// LogrusLevel parses the configured log level, falling back to info.
func (c *Config) LogrusLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.App.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
