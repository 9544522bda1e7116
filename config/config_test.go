package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cumberland/sales-engine/crm"
)

func TestParsePlanCatalog_Default(t *testing.T) {
	catalog, err := parsePlanCatalog("")
	require.NoError(t, err)
	assert.Equal(t, crm.DefaultPlanCatalog(), catalog)
}

func TestParsePlanCatalog_Override(t *testing.T) {
	catalog, err := parsePlanCatalog("basic=4900, pro=14900")
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	basic, err := catalog.Lookup("basic")
	require.NoError(t, err)
	assert.Equal(t, "Basic", basic.DisplayName)
	assert.True(t, basic.MonthlyPrice.Equal(crm.NewMoney(4900)))

	_, err = catalog.Lookup("starter")
	require.ErrorIs(t, err, crm.ErrUnknownPlan)
}

func TestParsePlanCatalog_Malformed(t *testing.T) {
	for _, spec := range []string{"basic", "basic=", "basic=free", "basic=-100", "=4900"} {
		_, err := parsePlanCatalog(spec)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestConfig_EngineTranslation(t *testing.T) {
	cfg := &Config{
		Engine: Engine{
			StaleAfterDays:    14,
			WeekStart:         int(time.Monday),
			PayDateOffsetDays: 5,
			BonusThreshold:    7,
			BaseRate:          "0.15",
			BonusRate:         "0.20",
			RenewalRate:       "0.10",
		},
	}
	require.NoError(t, cfg.validate())

	assert.Equal(t, 14*24*time.Hour, cfg.StaleAfter())
	assert.Equal(t, time.Monday, cfg.EnginePayPeriods().WeekStart)

	tiers := cfg.EngineTiers()
	assert.Equal(t, 7, tiers.BonusThreshold)
	require.NotNil(t, tiers.RenewalRate)
	assert.Equal(t, "0.1", tiers.RenewalRate.String())
}

func TestConfig_ValidateRejectsBadRates(t *testing.T) {
	cfg := &Config{
		Engine: Engine{
			StaleAfterDays: 14,
			BonusThreshold: 7,
			BaseRate:       "fifteen percent",
			BonusRate:      "0.20",
		},
	}
	assert.Error(t, cfg.validate())
}
