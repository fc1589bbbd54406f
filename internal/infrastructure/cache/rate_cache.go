package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CachedRateProvider caches exchange rates in Redis in front of another provider.
// Redis failures degrade to calling the wrapped provider directly.
type CachedRateProvider struct {
	client *redis.Client
	next   appbudget.RateProvider
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRateProvider wraps next with a Redis cache
func NewCachedRateProvider(client *redis.Client, next appbudget.RateProvider, ttl time.Duration, logger *zap.Logger) *CachedRateProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRateProvider{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger,
	}
}

func rateKey(from, to valueobject.Currency, date time.Time) string {
	return fmt.Sprintf("boq:fx:%s:%s:%s", from, to, date.Format(time.DateOnly))
}

// Rate implements appbudget.RateProvider
func (p *CachedRateProvider) Rate(ctx context.Context, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	key := rateKey(from, to, date)

	cached, err := p.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
		p.logger.Warn("Discarding malformed cached rate", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		p.logger.Warn("Rate cache read failed", zap.String("key", key), zap.Error(err))
	}

	rate, err := p.next.Rate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.client.Set(ctx, key, rate.String(), p.ttl).Err(); err != nil {
		p.logger.Warn("Rate cache write failed", zap.String("key", key), zap.Error(err))
	}
	return rate, nil
}

var _ appbudget.RateProvider = (*CachedRateProvider)(nil)
