package budget

import (
	"testing"
	"time"

	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumptionEntry(t *testing.T) {
	usd := valueobject.MustParseCurrency("USD")
	eur := valueobject.MustParseCurrency("EUR")
	cc := uuid.New()
	line := &BudgetLine{
		TenantID:     uuid.New(),
		Distribution: Distribution{cc.String(): decimal.NewFromInt(100)},
	}
	line.ID = uuid.New()
	converted, _ := valueobject.NewMoney(decimal.NewFromInt(110), usd)
	original, _ := valueobject.NewMoney(decimal.NewFromInt(100), eur)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	user := uuid.New()

	t.Run("copies line context and both amounts", func(t *testing.T) {
		e, err := NewConsumptionEntry(line, SourceRef{System: "account.move.line", ID: "7"},
			decimal.NewFromInt(1), converted, original, decimal.RequireFromString("1.1"), date, user)
		require.NoError(t, err)
		assert.Equal(t, line.ID, e.LineID)
		assert.Equal(t, line.TenantID, e.TenantID)
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(110)))
		assert.Equal(t, usd, e.Currency)
		assert.True(t, e.OriginalAmount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, eur, e.OriginalCurrency)
		assert.Equal(t, date, e.EffectiveDate)
		assert.True(t, e.Distribution.Includes(cc))
		assert.False(t, e.IsReversal())
		assert.Equal(t, "account.move.line/7", e.Source().String())
	})

	t.Run("requires a source reference", func(t *testing.T) {
		_, err := NewConsumptionEntry(line, SourceRef{System: "stock.move"}, decimal.NewFromInt(1), converted, original, decimal.NewFromInt(1), date, user)
		assert.Error(t, err)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := NewConsumptionEntry(line, SourceRef{System: "stock.move", ID: "1"}, decimal.NewFromInt(1), converted, original, decimal.NewFromInt(1), date, uuid.Nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty movement", func(t *testing.T) {
		zero := valueobject.Zero(usd)
		_, err := NewConsumptionEntry(line, SourceRef{System: "stock.move", ID: "1"}, decimal.Zero, zero, zero, decimal.NewFromInt(1), date, user)
		assert.Error(t, err)
	})
}

func TestDistribution_ScanValue(t *testing.T) {
	cc := uuid.New().String()
	d := Distribution{cc: decimal.RequireFromString("60")}
	v, err := d.Value()
	require.NoError(t, err)

	var out Distribution
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.True(t, out[cc].Equal(decimal.NewFromInt(60)))

	var empty Distribution
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
}

func TestDistribution_Validate(t *testing.T) {
	assert.NoError(t, Distribution{uuid.New().String(): decimal.NewFromInt(100)}.Validate())
	assert.Error(t, Distribution{"not-a-uuid": decimal.NewFromInt(10)}.Validate())
	assert.Error(t, Distribution{uuid.New().String(): decimal.NewFromInt(-1)}.Validate())
	assert.Error(t, Distribution{
		uuid.New().String(): decimal.NewFromInt(60),
		uuid.New().String(): decimal.NewFromInt(50),
	}.Validate())
}
