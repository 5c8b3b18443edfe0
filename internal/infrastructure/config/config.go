package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App   AppConfig
	Log   LogConfig
	Audit AuditConfig
	Files FilesConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal"`
	Format string `validate:"oneof=json console"`
	Output string `validate:"required"`
}

// AuditConfig holds reconciliation and consumption-analysis tolerances
type AuditConfig struct {
	// TimeToleranceSeconds is the symmetric matching window around a sale
	TimeToleranceSeconds int `validate:"gt=0"`
	// AmountTolerance is the maximum amount difference treated as equal
	AmountTolerance decimal.Decimal
	// VarianceTolerancePercent gates consumption-variance findings
	VarianceTolerancePercent decimal.Decimal
	// MinorUnitThreshold is the raw QR amount above which minor units are assumed
	MinorUnitThreshold decimal.Decimal
	// QRServices lists the payment services whose workbooks are loaded
	QRServices []string `validate:"min=1,dive,oneof=click payme uzum"`
}

// TimeTolerance returns the matching window as a duration
func (c AuditConfig) TimeTolerance() time.Duration {
	return time.Duration(c.TimeToleranceSeconds) * time.Second
}

// FilesConfig holds the upload-folder file conventions
type FilesConfig struct {
	Sales         string `validate:"required"`
	Receipts      string `validate:"required"`
	Recipes       string `validate:"required"`
	Movements     string `validate:"required"`
	QRFilePattern string `validate:"required,contains=%s"`
}

// QRFile returns the workbook name for a payment service
func (c FilesConfig) QRFile(service string) string {
	return fmt.Sprintf(c.QRFilePattern, service)
}

// Load loads configuration from audit.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with VENDBOT_ prefix (e.g. VENDBOT_LOG_LEVEL)
// 2. audit.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("audit")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vendbot")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("VENDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	amountTolerance, err := decimal.NewFromString(v.GetString("audit.amount_tolerance"))
	if err != nil {
		return nil, fmt.Errorf("invalid audit.amount_tolerance: %w", err)
	}
	varianceTolerance, err := decimal.NewFromString(v.GetString("audit.variance_tolerance_percent"))
	if err != nil {
		return nil, fmt.Errorf("invalid audit.variance_tolerance_percent: %w", err)
	}
	minorUnitThreshold, err := decimal.NewFromString(v.GetString("audit.minor_unit_threshold"))
	if err != nil {
		return nil, fmt.Errorf("invalid audit.minor_unit_threshold: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Audit: AuditConfig{
			TimeToleranceSeconds:     v.GetInt("audit.time_tolerance_seconds"),
			AmountTolerance:          amountTolerance,
			VarianceTolerancePercent: varianceTolerance,
			MinorUnitThreshold:       minorUnitThreshold,
			QRServices:               v.GetStringSlice("audit.qr_services"),
		},
		Files: FilesConfig{
			Sales:         v.GetString("files.sales"),
			Receipts:      v.GetString("files.receipts"),
			Recipes:       v.GetString("files.recipes"),
			Movements:     v.GetString("files.movements"),
			QRFilePattern: v.GetString("files.qr_pattern"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vendbot-audit")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("audit.time_tolerance_seconds", 30)
	v.SetDefault("audit.amount_tolerance", "1")
	v.SetDefault("audit.variance_tolerance_percent", "5")
	v.SetDefault("audit.minor_unit_threshold", "10000")
	v.SetDefault("audit.qr_services", []string{"click", "payme", "uzum"})

	v.SetDefault("files.sales", "sales_report.xlsx")
	v.SetDefault("files.receipts", "kkm_receipts.csv")
	v.SetDefault("files.recipes", "recipes.json")
	v.SetDefault("files.movements", "inventory_movements.xlsx")
	v.SetDefault("files.qr_pattern", "qr_%s.xlsx")
}
