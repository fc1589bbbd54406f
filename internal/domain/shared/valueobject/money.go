package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency is an ISO 4217 currency code.
type Currency string

// ErrUnknownCurrency is returned when a code is not a recognised ISO 4217 currency.
var ErrUnknownCurrency = errors.New("unknown currency code")

// ParseCurrency normalises and validates an ISO 4217 code.
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return Currency(unit.String()), nil
}

// MustParseCurrency is ParseCurrency for constants in tests and defaults.
func MustParseCurrency(code string) Currency {
	c, err := ParseCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the code
func (c Currency) String() string {
	return string(c)
}

// Scale returns the number of minor-unit digits used for standard rounding (2 for USD, 0 for JPY).
func (c Currency) Scale() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Money is an immutable amount tied to a currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	if cur == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: cur}, nil
}

// Zero returns a zero amount in the given currency
func Zero(cur Currency) Money {
	return Money{amount: decimal.Zero, currency: cur}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is below zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add adds two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub subtracts other from m; both must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Negate flips the sign
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Rounded rounds half-up to the currency's standard scale.
func (m Money) Rounded() Money {
	return Money{amount: m.amount.Round(m.currency.Scale()), currency: m.currency}
}

// Convert expresses m in target using rate (units of target per unit of m's currency),
// rounded to the target's standard scale.
func (m Money) Convert(target Currency, rate decimal.Decimal) Money {
	if m.currency == target {
		return m
	}
	return Money{amount: m.amount.Mul(rate), currency: target}.Rounded()
}

// Equals compares amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders "<amount> <code>"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.Scale()), m.currency)
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cur, err := ParseCurrency(string(raw.Currency))
	if err != nil {
		return err
	}
	m.amount = raw.Amount
	m.currency = cur
	return nil
}
