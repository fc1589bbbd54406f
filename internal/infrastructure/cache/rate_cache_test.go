package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	rate  decimal.Decimal
	err   error
}

func (p *countingProvider) Rate(ctx context.Context, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	p.calls++
	return p.rate, p.err
}

func TestCachedRateProvider(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("caches rates per pair and day", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		next := &countingProvider{rate: decimal.RequireFromString("1.25")}
		p := NewCachedRateProvider(client, next, time.Hour, nil)

		for i := 0; i < 3; i++ {
			rate, err := p.Rate(ctx, "EUR", "USD", date)
			require.NoError(t, err)
			assert.True(t, rate.Equal(decimal.RequireFromString("1.25")))
		}
		assert.Equal(t, 1, next.calls)

		got, err := mr.Get("boq:fx:EUR:USD:2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, "1.25", got)

		_, err = p.Rate(ctx, "EUR", "USD", date.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("provider errors are not cached", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		next := &countingProvider{err: errors.New("upstream down")}
		p := NewCachedRateProvider(client, next, time.Hour, nil)

		_, err := p.Rate(ctx, "EUR", "USD", date)
		assert.Error(t, err)
		assert.False(t, mr.Exists("boq:fx:EUR:USD:2026-03-01"))
	})

	t.Run("ttl expires cached rate", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		next := &countingProvider{rate: decimal.NewFromInt(2)}
		p := NewCachedRateProvider(client, next, time.Minute, nil)

		_, _ = p.Rate(ctx, "GBP", "USD", date)
		mr.FastForward(2 * time.Minute)
		_, _ = p.Rate(ctx, "GBP", "USD", date)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("redis outage falls through to provider", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		next := &countingProvider{rate: decimal.NewFromInt(3)}
		p := NewCachedRateProvider(client, next, time.Minute, nil)
		mr.Close()

		rate, err := p.Rate(ctx, "JPY", "USD", date)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(3)))
	})

	t.Run("malformed cache entry is refreshed", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		require.NoError(t, mr.Set("boq:fx:EUR:USD:2026-03-01", "not-a-number"))
		next := &countingProvider{rate: decimal.NewFromInt(4)}
		p := NewCachedRateProvider(client, next, time.Minute, nil)

		rate, err := p.Rate(ctx, "EUR", "USD", date)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(4)))
		assert.Equal(t, 1, next.calls)
	})
}
