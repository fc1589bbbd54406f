package budget

import (
	"context"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportService builds read-only aggregates over BOQs and their ledger
type ReportService struct {
	txScope TransactionScope
}

// NewReportService creates a new ReportService
func NewReportService(txScope TransactionScope) *ReportService {
	return &ReportService{txScope: txScope}
}

// BudgetVsActual compares each line's budget with what the ledger has recorded against it.
func (s *ReportService) BudgetVsActual(ctx context.Context, tenantID, docID uuid.UUID) (*BudgetVsActualResponse, error) {
	var resp *BudgetVsActualResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		doc, err := repos.Documents().FindByIDForTenant(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(doc.Lines))
		for _, l := range doc.Lines {
			ids = append(ids, l.ID)
		}
		usage := map[uuid.UUID]budget.Usage{}
		if len(ids) > 0 {
			usage, err = repos.Ledger().SumByLines(ctx, ids)
			if err != nil {
				return err
			}
		}
		resp = buildBudgetVsActual(doc, usage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func buildBudgetVsActual(doc *budget.BudgetDocument, usage map[uuid.UUID]budget.Usage) *BudgetVsActualResponse {
	resp := &BudgetVsActualResponse{
		DocumentID:    doc.ID,
		BOQVersion:    doc.BOQVersion,
		Currency:      doc.Currency.String(),
		Lines:         make([]BudgetVsActualLine, 0, len(doc.Lines)),
		TotalBudget:   decimal.Zero,
		TotalConsumed: decimal.Zero,
	}
	for i := range doc.Lines {
		line := &doc.Lines[i]
		u := usage[line.ID]
		consumedQty := decimal.Zero.Add(u.Quantity)
		consumedAmt := decimal.Zero.Add(u.Amount)
		resp.Lines = append(resp.Lines, BudgetVsActualLine{
			LineID:           line.ID,
			Description:      line.Description,
			CostType:         string(line.CostType),
			SectionID:        line.SectionID,
			BudgetQuantity:   line.Quantity,
			BudgetAmount:     line.BudgetAmount,
			ConsumedQuantity: consumedQty,
			ConsumedAmount:   consumedAmt,
			Variance:         line.BudgetAmount.Sub(consumedAmt),
			VarianceQuantity: line.Quantity.Sub(consumedQty),
			ProgressPct:      line.ConsumptionPercentage(u),
		})
		resp.TotalBudget = resp.TotalBudget.Add(line.BudgetAmount)
		resp.TotalConsumed = resp.TotalConsumed.Add(consumedAmt)
	}
	resp.TotalVariance = resp.TotalBudget.Sub(resp.TotalConsumed)
	resp.TotalProgress = decimal.Zero
	if !resp.TotalBudget.IsZero() {
		resp.TotalProgress = resp.TotalConsumed.Div(resp.TotalBudget).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return resp
}
