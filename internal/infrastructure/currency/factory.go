package currency

import (
	"fmt"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewRateProvider builds the provider selected by cfg.Provider
func NewRateProvider(cfg config.CurrencyConfig, logger *zap.Logger) (appbudget.RateProvider, error) {
	switch cfg.Provider {
	case "", "static":
		return NewStaticRateProvider(cfg.StaticRates)
	case "http":
		return NewHTTPRateProvider(HTTPRateProviderConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown currency provider %q", cfg.Provider)
	}
}
