package currency

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPRateProviderConfig configures the remote rate service client
type HTTPRateProviderConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// rateResponse is the body of GET /rates
type rateResponse struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Date string          `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

// HTTPRateProvider fetches rates from a remote service with client-side rate limiting.
type HTTPRateProvider struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPRateProvider creates a provider calling cfg.BaseURL
func NewHTTPRateProvider(cfg HTTPRateProviderConfig, logger *zap.Logger) *HTTPRateProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPRateProvider{
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
}

// Rate implements appbudget.RateProvider
func (p *HTTPRateProvider) Rate(ctx context.Context, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limiter: %w", err)
	}

	var body rateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from": from.String(),
			"to":   to.String(),
			"date": date.Format(time.DateOnly),
		}).
		SetResult(&body).
		Get("/rates")
	if err != nil {
		p.logger.Warn("Exchange rate request failed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		return decimal.Zero, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return decimal.Zero, fmt.Errorf("%w: %s to %s on %s", appbudget.ErrRateNotFound, from, to, date.Format(time.DateOnly))
	case resp.IsError():
		p.logger.Warn("Exchange rate service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		return decimal.Zero, fmt.Errorf("exchange rate service returned status %d", resp.StatusCode())
	}

	if !body.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate service returned invalid rate %s", body.Rate)
	}
	return body.Rate, nil
}

var _ appbudget.RateProvider = (*HTTPRateProvider)(nil)
