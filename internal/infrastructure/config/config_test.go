package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no audit.toml in sight

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vendbot-audit", cfg.App.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, 30*time.Second, cfg.Audit.TimeTolerance())
	assert.True(t, cfg.Audit.AmountTolerance.Equal(decimal.NewFromInt(1)))
	assert.True(t, cfg.Audit.VarianceTolerancePercent.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.Audit.MinorUnitThreshold.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, []string{"click", "payme", "uzum"}, cfg.Audit.QRServices)

	assert.Equal(t, "sales_report.xlsx", cfg.Files.Sales)
	assert.Equal(t, "kkm_receipts.csv", cfg.Files.Receipts)
	assert.Equal(t, "qr_click.xlsx", cfg.Files.QRFile("click"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VENDBOT_LOG_LEVEL", "debug")
	t.Setenv("VENDBOT_AUDIT_TIME_TOLERANCE_SECONDS", "60")
	t.Setenv("VENDBOT_AUDIT_AMOUNT_TOLERANCE", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.Audit.TimeTolerance())
	assert.True(t, cfg.Audit.AmountTolerance.Equal(decimal.RequireFromString("0.5")))
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("bad decimal", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("VENDBOT_AUDIT_AMOUNT_TOLERANCE", "one")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount_tolerance")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("VENDBOT_LOG_LEVEL", "loud")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("unsupported qr service", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("VENDBOT_AUDIT_QR_SERVICES", "stripe")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
