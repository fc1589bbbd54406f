package budget

import (
	"errors"
	"testing"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T) *BudgetDocument {
	t.Helper()
	doc, err := NewBudgetDocument(uuid.New(), DocumentSpec{
		Name:      "Tower A",
		ProjectID: uuid.New(),
		Currency:  "USD",
	}, 1, uuid.New())
	require.NoError(t, err)
	return doc
}

func testLineSpec() LineSpec {
	return LineSpec{
		Description:      "Concrete C30",
		CostType:         CostTypeMaterial,
		Quantity:         decimal.NewFromInt(10),
		UnitRate:         decimal.NewFromInt(100),
		ExpenseAccountID: uuid.New(),
	}
}

func TestNewBudgetDocument(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		doc, err := NewBudgetDocument(uuid.New(), DocumentSpec{ProjectID: uuid.New(), Currency: "eur"}, 0, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, DefaultDocumentName, doc.Name)
		assert.Equal(t, 1, doc.BOQVersion)
		assert.Equal(t, StateDraft, doc.State)
		assert.True(t, doc.Active)
		assert.Equal(t, "EUR", doc.Currency.String())
		require.Len(t, doc.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeDocumentCreated, doc.GetDomainEvents()[0].EventType())
	})

	t.Run("requires project", func(t *testing.T) {
		_, err := NewBudgetDocument(uuid.New(), DocumentSpec{Currency: "USD"}, 1, uuid.New())
		assert.Error(t, err)
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := NewBudgetDocument(uuid.New(), DocumentSpec{ProjectID: uuid.New(), Currency: "ZZZZ"}, 1, uuid.New())
		assert.Error(t, err)
	})
}

func TestBudgetDocument_AddLine(t *testing.T) {
	doc := newTestDocument(t)

	line, err := doc.AddLine(testLineSpec())
	require.NoError(t, err)
	assert.Equal(t, doc.ID, line.DocumentID)
	assert.True(t, line.BudgetAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 10, line.Sequence)
	assert.True(t, doc.TotalBudget().Equal(decimal.NewFromInt(1000)))

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		spec := testLineSpec()
		spec.Quantity = decimal.Zero
		_, err := doc.AddLine(spec)
		assert.Error(t, err)
	})

	t.Run("rejects negative rate", func(t *testing.T) {
		spec := testLineSpec()
		spec.UnitRate = decimal.NewFromInt(-1)
		_, err := doc.AddLine(spec)
		assert.Error(t, err)
	})

	t.Run("rejects edits outside draft", func(t *testing.T) {
		require.NoError(t, doc.Submit())
		_, err := doc.AddLine(testLineSpec())
		assert.True(t, errors.Is(err, ErrDocumentImmutable))
	})
}

func TestBudgetDocument_CostCenterDistribution(t *testing.T) {
	cc := uuid.New()
	doc, err := NewBudgetDocument(uuid.New(), DocumentSpec{ProjectID: uuid.New(), Currency: "USD", CostCenterID: &cc}, 1, uuid.New())
	require.NoError(t, err)

	t.Run("empty distribution defaults to cost center", func(t *testing.T) {
		line, err := doc.AddLine(testLineSpec())
		require.NoError(t, err)
		assert.True(t, line.Distribution.Includes(cc))
		assert.True(t, line.Distribution[cc.String()].Equal(decimal.NewFromInt(100)))
	})

	t.Run("distribution must include cost center", func(t *testing.T) {
		spec := testLineSpec()
		spec.Distribution = Distribution{uuid.New().String(): decimal.NewFromInt(100)}
		_, err := doc.AddLine(spec)
		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidDistribution, de.Code)
	})

	t.Run("changing cost center moves full allocations", func(t *testing.T) {
		next := uuid.New()
		require.NoError(t, doc.UpdateHeader(HeaderPatch{CostCenterID: &next}))
		assert.True(t, doc.Lines[0].Distribution.Includes(next))
		assert.False(t, doc.Lines[0].Distribution.Includes(cc))
	})
}

func TestBudgetDocument_Lifecycle(t *testing.T) {
	approver := uuid.New()

	t.Run("submit requires lines", func(t *testing.T) {
		doc := newTestDocument(t)
		assert.ErrorIs(t, doc.Submit(), ErrEmptyBudget)
	})

	t.Run("approve without lines reports empty budget", func(t *testing.T) {
		doc := newTestDocument(t)
		assert.ErrorIs(t, doc.Approve(approver), ErrEmptyBudget)
	})

	t.Run("approve requires submitted", func(t *testing.T) {
		doc := newTestDocument(t)
		_, _ = doc.AddLine(testLineSpec())
		assert.ErrorIs(t, doc.Approve(approver), shared.ErrInvalidState)
	})

	t.Run("full path", func(t *testing.T) {
		doc := newTestDocument(t)
		_, _ = doc.AddLine(testLineSpec())

		require.NoError(t, doc.Submit())
		assert.Equal(t, StateSubmitted, doc.State)

		require.NoError(t, doc.Approve(approver))
		assert.Equal(t, StateApproved, doc.State)
		require.NotNil(t, doc.ApprovedBy)
		assert.Equal(t, approver, *doc.ApprovedBy)
		assert.NotNil(t, doc.ApprovedAt)

		require.NoError(t, doc.Lock())
		assert.Equal(t, StateLocked, doc.State)

		require.NoError(t, doc.Close())
		assert.Equal(t, StateClosed, doc.State)

		assert.Error(t, doc.Lock())
		assert.Error(t, doc.Close())
	})

	t.Run("reset to draft from submitted", func(t *testing.T) {
		doc := newTestDocument(t)
		_, _ = doc.AddLine(testLineSpec())
		require.NoError(t, doc.Submit())
		require.NoError(t, doc.ResetToDraft())
		assert.Equal(t, StateDraft, doc.State)
		assert.Error(t, doc.ResetToDraft())
	})
}

func TestBudgetDocument_Fork(t *testing.T) {
	approver := uuid.New()
	doc := newTestDocument(t)
	original, _ := doc.AddLine(testLineSpec())
	originalLineID := original.ID
	require.NoError(t, doc.Submit())
	require.NoError(t, doc.Approve(approver))
	doc.ClearDomainEvents()

	result, err := doc.Fork(2)
	require.NoError(t, err)

	snap := result.Snapshot
	assert.NotEqual(t, doc.ID, snap.ID)
	assert.False(t, snap.Active)
	assert.Equal(t, StateLocked, snap.State)
	assert.Equal(t, 1, snap.BOQVersion)
	assert.Equal(t, "Tower A", snap.Name)
	require.NotNil(t, snap.ApprovedBy)
	assert.Equal(t, approver, *snap.ApprovedBy)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, originalLineID, snap.Lines[0].ID, "snapshot keeps the ledger-bearing line")
	assert.Equal(t, snap.ID, snap.Lines[0].DocumentID)

	assert.Equal(t, StateDraft, doc.State)
	assert.Equal(t, 2, doc.BOQVersion)
	assert.Nil(t, doc.ApprovedBy)
	assert.Nil(t, doc.ApprovedAt)
	assert.Equal(t, "Tower A (Rev 2)", doc.Name)
	require.NotNil(t, doc.PreviousVersionID)
	assert.Equal(t, snap.ID, *doc.PreviousVersionID)
	require.Len(t, doc.Lines, 1)
	assert.NotEqual(t, originalLineID, doc.Lines[0].ID)
	assert.Equal(t, doc.ID, doc.Lines[0].DocumentID)
	assert.Equal(t, doc.Lines[0].ID, result.LineMap[originalLineID])

	require.Len(t, doc.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeDocumentRevised, doc.GetDomainEvents()[0].EventType())

	t.Run("draft does not fork", func(t *testing.T) {
		_, err := doc.Fork(3)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("closed cannot fork", func(t *testing.T) {
		closed := newTestDocument(t)
		_, _ = closed.AddLine(testLineSpec())
		require.NoError(t, closed.Submit())
		require.NoError(t, closed.Approve(approver))
		require.NoError(t, closed.Close())
		_, err := closed.Fork(2)
		assert.ErrorIs(t, err, ErrDocumentImmutable)
	})

	t.Run("snapshot cannot be edited", func(t *testing.T) {
		_, err := snap.AddLine(testLineSpec())
		assert.ErrorIs(t, err, ErrDocumentImmutable)
	})
}

func TestRevisionName(t *testing.T) {
	assert.Equal(t, "BOQ (Rev 2)", RevisionName("BOQ", 2))
	assert.Equal(t, "BOQ (Rev 3)", RevisionName("BOQ (Rev 2)", 3))
}

func TestNewRevisionLink(t *testing.T) {
	doc := newTestDocument(t)

	_, err := NewRevisionLink(doc, doc, "scope change", uuid.New())
	assert.Error(t, err)

	other := newTestDocument(t)
	_, err = NewRevisionLink(other, doc, "  ", uuid.New())
	assert.Error(t, err)

	link, err := NewRevisionLink(other, doc, "scope change", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, other.ID, link.SnapshotID)
	assert.Equal(t, doc.ID, link.SuccessorID)
}
