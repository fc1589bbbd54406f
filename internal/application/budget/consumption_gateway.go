package budget

import (
	"context"
	"sort"
	"time"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/erp/budget/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConsumptionRecorder observes gateway outcomes, typically for metrics.
type ConsumptionRecorder interface {
	RecordPosted(ctx context.Context, entry *budget.ConsumptionEntry, reason budget.DecisionReason)
	RecordRejected(ctx context.Context, code string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPosted(context.Context, *budget.ConsumptionEntry, budget.DecisionReason) {
}

func (nopRecorder) RecordRejected(context.Context, string) {
}

// ConsumptionGatewayConfig holds the gateway's collaborators.
type ConsumptionGatewayConfig struct {
	TxScope    TransactionScope
	Normalizer *CurrencyNormalizer
	Tolerance  budget.Tolerance
	Recorder   ConsumptionRecorder
	Logger     *zap.Logger
}

// ConsumptionGateway is the single entry point through which external documents
// draw down budget lines. Every accepted consumption becomes exactly one ledger entry.
type ConsumptionGateway struct {
	txScope        TransactionScope
	normalizer     *CurrencyNormalizer
	tolerance      budget.Tolerance
	recorder       ConsumptionRecorder
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewConsumptionGateway creates a new ConsumptionGateway
func NewConsumptionGateway(cfg ConsumptionGatewayConfig) *ConsumptionGateway {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = NewCurrencyNormalizer(nil)
	}
	tol := cfg.Tolerance
	if tol.Quantity.IsZero() && tol.Amount.IsZero() {
		tol = budget.DefaultTolerance()
	}
	return &ConsumptionGateway{
		txScope:    cfg.TxScope,
		normalizer: normalizer,
		tolerance:  tol,
		recorder:   recorder,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (g *ConsumptionGateway) SetEventPublisher(publisher shared.EventPublisher) {
	g.eventPublisher = publisher
}

// RequestConsumption checks and records a single consumption.
func (g *ConsumptionGateway) RequestConsumption(ctx context.Context, tenantID uuid.UUID, req ConsumptionRequest, actor uuid.UUID) (*PostingResult, error) {
	results, err := g.PostBatch(ctx, tenantID, []ConsumptionRequest{req}, actor)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// PostFromSource records every consumption a source document carries, all or nothing.
// A source without budgeted lines yields an empty result.
func (g *ConsumptionGateway) PostFromSource(ctx context.Context, tenantID uuid.UUID, source ConsumptionSource, actor uuid.UUID) ([]PostingResult, error) {
	reqs, err := source.ConsumptionRequests()
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return []PostingResult{}, nil
	}
	return g.PostBatch(ctx, tenantID, reqs, actor)
}

type preparedRequest struct {
	ConsumptionRequest
	original valueobject.Money
}

// PostBatch records several consumptions atomically. Lines are locked in ascending ID
// order, so batches touching overlapping lines cannot deadlock. Requests against the
// same line are evaluated in order, each seeing the ones before it.
func (g *ConsumptionGateway) PostBatch(ctx context.Context, tenantID uuid.UUID, reqs []ConsumptionRequest, actor uuid.UUID) ([]PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumption", "post")
	defer span.End()
	telemetry.SetAttributes(span,
		"tenant_id", tenantID.String(),
		"requests", len(reqs),
	)

	prepared, err := prepareRequests(reqs, actor)
	if err != nil {
		telemetry.RecordError(span, err)
		g.recordRejection(ctx, err)
		return nil, err
	}

	var entries []*budget.ConsumptionEntry
	var reasons []budget.DecisionReason
	var results []PostingResult
	err = g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		entries = make([]*budget.ConsumptionEntry, 0, len(prepared))
		reasons = make([]budget.DecisionReason, 0, len(prepared))
		results = make([]PostingResult, 0, len(prepared))

		lineIDs := uniqueLineIDs(prepared)
		lines, err := lockLines(ctx, repos, tenantID, lineIDs)
		if err != nil {
			return err
		}
		docs, err := loadEligibleDocuments(ctx, repos, tenantID, lines)
		if err != nil {
			return err
		}

		refs := make([]budget.SourceRef, len(prepared))
		for i := range prepared {
			refs[i] = prepared[i].Source
		}
		existing, err := repos.Ledger().ExistingSources(ctx, refs)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return budget.ErrDuplicateConsumption.WithDetail("source", existing[0].String())
		}

		usage, err := repos.Ledger().SumByLines(ctx, lineIDs)
		if err != nil {
			return err
		}

		for _, req := range prepared {
			line := lines[req.LineID]
			doc := docs[line.DocumentID]
			if !line.MatchesProduct(req.ProductID) {
				return budget.ErrProductMismatch.
					WithDetail("line_id", line.ID.String()).
					WithDetail("product_id", uuidString(req.ProductID))
			}
			converted, rate, err := g.normalizer.Normalize(ctx, req.original, doc.Currency, req.Date)
			if err != nil {
				return err
			}

			decision := line.Evaluate(usage[line.ID], req.Quantity, converted.Amount(), g.tolerance)
			if !decision.Allowed {
				return budget.NewBudgetExceededError(line.ID, decision, req.Quantity, converted.Amount())
			}

			entry, err := budget.NewConsumptionEntry(line, req.Source, req.Quantity, converted, req.original, rate, req.Date, actor)
			if err != nil {
				return err
			}
			usage[line.ID] = usage[line.ID].Add(entry.Quantity, entry.Amount)
			entries = append(entries, entry)
			reasons = append(reasons, decision.Reason)
			results = append(results, PostingResult{
				Entry:            ToEntryResponse(entry),
				Remaining:        line.RemainingAfter(usage[line.ID]),
				ExpenseAccountID: line.ExpenseAccountID,
				Distribution:     entry.Distribution,
			})
		}

		return repos.Ledger().Append(ctx, entries...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		g.recordRejection(ctx, err)
		g.logger.Info("Consumption rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("requests", len(reqs)),
			zap.Error(err),
		)
		return nil, err
	}

	events := make([]shared.DomainEvent, 0, len(entries))
	for i, entry := range entries {
		g.recorder.RecordPosted(ctx, entry, reasons[i])
		events = append(events, budget.NewConsumptionPostedEvent(entry))
		g.logger.Debug("Consumption posted",
			zap.String("line_id", entry.LineID.String()),
			zap.String("source", entry.Source().String()),
			zap.String("quantity", entry.Quantity.String()),
			zap.String("amount", entry.Amount.String()),
			zap.String("reason", string(reasons[i])),
		)
	}
	if g.eventPublisher != nil {
		if err := g.eventPublisher.Publish(ctx, events...); err != nil {
			g.logger.Warn("Failed to publish consumption events", zap.Error(err))
		}
	}
	return results, nil
}

// GetRemaining returns the remaining budget of a line without writing anything.
func (g *ConsumptionGateway) GetRemaining(ctx context.Context, tenantID, lineID uuid.UUID) (*RemainingResponse, error) {
	var resp *RemainingResponse
	err := g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		line, err := repos.Lines().FindByIDForTenant(ctx, tenantID, lineID)
		if err != nil {
			return err
		}
		docs, err := repos.Documents().FindHeadersByIDs(ctx, tenantID, []uuid.UUID{line.DocumentID})
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return shared.ErrNotFound
		}
		usage, err := repos.Ledger().SumByLines(ctx, []uuid.UUID{line.ID})
		if err != nil {
			return err
		}
		u := usage[line.ID]
		remaining := line.RemainingAfter(u)
		resp = &RemainingResponse{
			LineID:            line.ID,
			Currency:          docs[0].Currency.String(),
			BudgetQuantity:    line.Quantity,
			BudgetAmount:      line.BudgetAmount,
			ConsumedQuantity:  u.Quantity,
			ConsumedAmount:    u.Amount,
			RemainingQuantity: remaining.Quantity,
			RemainingAmount:   remaining.Amount,
			ConsumptionPct:    line.ConsumptionPercentage(u),
			AllowOverride:     line.AllowOverride,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidatePurchaseLine runs the checks a purchase order line must pass before it is
// confirmed: project, product, eligibility and the quantity limit. Nothing is recorded.
func (g *ConsumptionGateway) ValidatePurchaseLine(ctx context.Context, tenantID uuid.UUID, check PurchaseLineCheck) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumption", "validate_purchase_line")
	defer span.End()
	telemetry.SetAttributes(span, "line_id", check.BudgetLineID.String())

	err := g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		line, err := repos.Lines().FindByIDForTenant(ctx, tenantID, check.BudgetLineID)
		if err != nil {
			return err
		}
		docs, err := loadEligibleDocuments(ctx, repos, tenantID, map[uuid.UUID]*budget.BudgetLine{line.ID: line})
		if err != nil {
			return err
		}
		doc := docs[line.DocumentID]
		if check.ProjectID != nil && *check.ProjectID != doc.ProjectID {
			return budget.ErrProjectMismatch.
				WithDetail("boq_project_id", doc.ProjectID.String()).
				WithDetail("project_id", check.ProjectID.String())
		}
		if !line.MatchesProduct(check.ProductID) {
			return budget.ErrProductMismatch.WithDetail("line_id", line.ID.String())
		}
		usage, err := repos.Ledger().SumByLines(ctx, []uuid.UUID{line.ID})
		if err != nil {
			return err
		}
		decision := line.Evaluate(usage[line.ID], check.Quantity, decimal.Zero, g.tolerance)
		if !decision.Allowed {
			return budget.NewBudgetExceededError(line.ID, decision, check.Quantity, decimal.Zero)
		}
		return nil
	})
	telemetry.RecordError(span, err)
	return err
}

// ListEntries returns the ledger entries of a line, newest first.
func (g *ConsumptionGateway) ListEntries(ctx context.Context, tenantID, lineID uuid.UUID, filter shared.Filter) (*shared.Paginated[EntryResponse], error) {
	var page shared.Paginated[EntryResponse]
	err := g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Lines().FindByIDForTenant(ctx, tenantID, lineID); err != nil {
			return err
		}
		entries, err := repos.Ledger().FindByLine(ctx, tenantID, lineID, filter)
		if err != nil {
			return err
		}
		total, err := repos.Ledger().CountByLine(ctx, lineID)
		if err != nil {
			return err
		}
		items := make([]EntryResponse, 0, len(entries))
		for i := range entries {
			items = append(items, ToEntryResponse(&entries[i]))
		}
		page = shared.NewPaginated(items, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (g *ConsumptionGateway) recordRejection(ctx context.Context, err error) {
	code := "INTERNAL_ERROR"
	if de, ok := shared.AsDomainError(err); ok {
		code = de.Code
	}
	g.recorder.RecordRejected(ctx, code)
}

// prepareRequests validates requests that need no database access and rejects a batch
// that names the same source twice.
func prepareRequests(reqs []ConsumptionRequest, actor uuid.UUID) ([]preparedRequest, error) {
	if len(reqs) == 0 {
		return nil, shared.ErrInvalidInput.WithDetail("reason", "no consumption requests")
	}
	if actor == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Recording user is required")
	}
	seen := make(map[budget.SourceRef]struct{}, len(reqs))
	prepared := make([]preparedRequest, 0, len(reqs))
	for _, req := range reqs {
		if req.LineID == uuid.Nil {
			return nil, shared.ErrInvalidInput.WithDetail("reason", "budget line is required")
		}
		if err := req.Source.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[req.Source]; dup {
			return nil, budget.ErrDuplicateConsumption.WithDetail("source", req.Source.String())
		}
		seen[req.Source] = struct{}{}

		cur, err := valueobject.ParseCurrency(req.Currency)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_CURRENCY", err.Error())
		}
		original, err := valueobject.NewMoney(req.Amount, cur)
		if err != nil {
			return nil, err
		}
		if req.Date.IsZero() {
			req.Date = time.Now()
		}
		prepared = append(prepared, preparedRequest{ConsumptionRequest: req, original: original})
	}
	return prepared, nil
}

func uniqueLineIDs(reqs []preparedRequest) []uuid.UUID {
	set := make(map[uuid.UUID]struct{}, len(reqs))
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := set[r.LineID]; ok {
			continue
		}
		set[r.LineID] = struct{}{}
		ids = append(ids, r.LineID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func lockLines(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*budget.BudgetLine, error) {
	locked, err := repos.Lines().LockForUpdate(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	lines := make(map[uuid.UUID]*budget.BudgetLine, len(locked))
	for i := range locked {
		lines[locked[i].ID] = &locked[i]
	}
	for _, id := range ids {
		if _, ok := lines[id]; !ok {
			return nil, shared.ErrNotFound.WithDetail("line_id", id.String())
		}
	}
	return lines, nil
}

// loadEligibleDocuments loads the owning documents and checks each accepts consumption.
func loadEligibleDocuments(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, lines map[uuid.UUID]*budget.BudgetLine) (map[uuid.UUID]*budget.BudgetDocument, error) {
	idSet := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := idSet[l.DocumentID]; ok {
			continue
		}
		idSet[l.DocumentID] = struct{}{}
		ids = append(ids, l.DocumentID)
	}
	headers, err := repos.Documents().FindHeadersByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	docs := make(map[uuid.UUID]*budget.BudgetDocument, len(headers))
	for i := range headers {
		docs[headers[i].ID] = &headers[i]
	}
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			return nil, shared.ErrNotFound.WithDetail("document_id", id.String())
		}
		if err := checkEligible(doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func checkEligible(doc *budget.BudgetDocument) error {
	if doc.State == budget.StateClosed {
		return budget.ErrDocumentClosed.WithDetail("document_id", doc.ID.String())
	}
	if !doc.Active || !doc.State.AcceptsConsumption() {
		return budget.ErrDocumentNotEligible.
			WithDetail("document_id", doc.ID.String()).
			WithDetail("state", doc.State.String())
	}
	return nil
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
