package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/notify"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
)

// ServiceOptions maps configuration onto the assessment service tunables
func ServiceOptions(cfg *config.Config, logger *zap.Logger) core.ServiceOptions {
	cc := cfg.GetCache()
	ac := cfg.GetAlerts()

	minRisk, ok := core.ParseRiskLevel(ac.MinRisk)
	if !ok {
		logger.Warn("Unknown alerts.min_risk, using high", zap.String("min_risk", ac.MinRisk))
		minRisk = core.RiskHigh
	}

	return core.ServiceOptions{
		CacheEnabled:  cc.Enabled,
		CacheTTL:      cc.TTL,
		BatchDelay:    cfg.GetBatchDelay(),
		AlertsEnabled: ac.Enabled,
		AlertMinRisk:  minRisk,
	}
}

// CreateAlertNotifier creates the SMTP notifier, or nil when alerts are off
func CreateAlertNotifier(cfg *config.Config, logger *zap.Logger) core.AlertNotifier {
	ac := cfg.GetAlerts()
	if !ac.Enabled {
		return nil
	}
	logger.Info("Alerts enabled",
		zap.String("smtp_address", ac.SMTPAddress),
		zap.Strings("recipients", ac.To),
		zap.String("min_risk", ac.MinRisk))
	return notify.NewSMTPNotifier(ac, logger)
}
