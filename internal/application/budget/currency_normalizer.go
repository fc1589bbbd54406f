package budget

import (
	"context"
	"errors"
	"time"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned by providers that have no rate for the pair and date.
var ErrRateNotFound = errors.New("exchange rate not found")

// RateProvider returns how many units of `to` one unit of `from` buys on date.
type RateProvider interface {
	Rate(ctx context.Context, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error)
}

// CurrencyNormalizer converts consumption amounts into a budget's currency.
type CurrencyNormalizer struct {
	provider RateProvider
}

// NewCurrencyNormalizer creates a normalizer backed by provider
func NewCurrencyNormalizer(provider RateProvider) *CurrencyNormalizer {
	return &CurrencyNormalizer{provider: provider}
}

// Normalize converts amount into target at date and returns the rate applied.
// Matching currencies are passed through untouched with rate 1.
func (n *CurrencyNormalizer) Normalize(ctx context.Context, amount valueobject.Money, target valueobject.Currency, date time.Time) (valueobject.Money, decimal.Decimal, error) {
	if amount.Currency() == target {
		return amount, decimal.NewFromInt(1), nil
	}
	if n.provider == nil {
		return valueobject.Money{}, decimal.Zero, conversionFailure(amount.Currency(), target, date, errors.New("no rate provider configured"))
	}
	rate, err := n.provider.Rate(ctx, amount.Currency(), target, date)
	if err != nil {
		return valueobject.Money{}, decimal.Zero, conversionFailure(amount.Currency(), target, date, err)
	}
	if !rate.IsPositive() {
		return valueobject.Money{}, decimal.Zero, conversionFailure(amount.Currency(), target, date, errors.New("non-positive rate"))
	}
	return amount.Convert(target, rate), rate, nil
}

func conversionFailure(from, to valueobject.Currency, date time.Time, cause error) error {
	return budget.ErrCurrencyConversion.
		WithDetail("from", from.String()).
		WithDetail("to", to.String()).
		WithDetail("date", date.Format(time.DateOnly)).
		WithDetail("cause", cause.Error())
}
