package currency

import (
	"context"
	"fmt"
	"strings"
	"time"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

type pair struct {
	from valueobject.Currency
	to   valueobject.Currency
}

// StaticRateProvider serves a fixed table of rates, ignoring the date.
// Inverse pairs are derived when only one direction is configured.
type StaticRateProvider struct {
	rates map[pair]decimal.Decimal
}

// NewStaticRateProvider builds a provider from entries like "EUR:USD=1.08"
func NewStaticRateProvider(entries []string) (*StaticRateProvider, error) {
	p := &StaticRateProvider{rates: make(map[pair]decimal.Decimal, len(entries))}
	for _, raw := range entries {
		key, rate, err := parseEntry(raw)
		if err != nil {
			return nil, err
		}
		p.rates[key] = rate
	}
	return p, nil
}

func parseEntry(raw string) (pair, decimal.Decimal, error) {
	codes, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: expected FROM:TO=RATE", raw)
	}
	fromCode, toCode, ok := strings.Cut(codes, ":")
	if !ok {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: expected FROM:TO=RATE", raw)
	}
	from, err := valueobject.ParseCurrency(fromCode)
	if err != nil {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: %w", raw, err)
	}
	to, err := valueobject.ParseCurrency(toCode)
	if err != nil {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: %w", raw, err)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: %w", raw, err)
	}
	if !rate.IsPositive() {
		return pair{}, decimal.Zero, fmt.Errorf("invalid rate entry %q: rate must be positive", raw)
	}
	return pair{from: from, to: to}, rate, nil
}

// Rate implements appbudget.RateProvider
func (p *StaticRateProvider) Rate(ctx context.Context, from, to valueobject.Currency, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := p.rates[pair{from: from, to: to}]; ok {
		return rate, nil
	}
	if inverse, ok := p.rates[pair{from: to, to: from}]; ok {
		return decimal.NewFromInt(1).DivRound(inverse, 10), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s to %s", appbudget.ErrRateNotFound, from, to)
}

var _ appbudget.RateProvider = (*StaticRateProvider)(nil)
