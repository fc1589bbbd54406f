package budget

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	csvimport "github.com/erp/budget/internal/infrastructure/import"
	"github.com/erp/budget/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BOQService handles BOQ lifecycle and business edits
type BOQService struct {
	txScope        TransactionScope
	revisions      *RevisionEngine
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewBOQService creates a new BOQService
func NewBOQService(txScope TransactionScope, revisions *RevisionEngine, logger *zap.Logger) *BOQService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if revisions == nil {
		revisions = NewRevisionEngine(logger)
	}
	return &BOQService{
		txScope:   txScope,
		revisions: revisions,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *BOQService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a draft BOQ. The version is one more than the highest version the
// project has used so far.
func (s *BOQService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDocumentRequest, actor uuid.UUID) (*DocumentResponse, error) {
	var doc *budget.BudgetDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		version, err := repos.Documents().NextVersion(ctx, tenantID, req.ProjectID)
		if err != nil {
			return err
		}
		doc, err = budget.NewBudgetDocument(tenantID, budget.DocumentSpec{
			Name:         req.Name,
			ProjectID:    req.ProjectID,
			CostCenterID: req.CostCenterID,
			Currency:     req.Currency,
		}, version, actor)
		if err != nil {
			return err
		}
		return repos.Documents().Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetByID returns a BOQ with its lines
func (s *BOQService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*DocumentResponse, error) {
	var resp DocumentResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		doc, err := repos.Documents().FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		resp = ToDocumentResponse(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns BOQs for a tenant. Snapshots are hidden unless IncludeInactive is set.
func (s *BOQService) List(ctx context.Context, tenantID uuid.UUID, filter DocumentListFilter) (*shared.Paginated[DocumentResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.ProjectID != nil {
		f.Filters["project_id"] = *filter.ProjectID
	}
	if filter.State != "" {
		f.Filters["state"] = filter.State
	}
	if !filter.IncludeInactive {
		f.Filters["active"] = true
	}

	var page shared.Paginated[DocumentResponse]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		docs, err := repos.Documents().FindAllForTenant(ctx, tenantID, f)
		if err != nil {
			return err
		}
		total, err := repos.Documents().CountForTenant(ctx, tenantID, f)
		if err != nil {
			return err
		}
		items := make([]DocumentResponse, 0, len(docs))
		for i := range docs {
			items = append(items, ToDocumentResponse(&docs[i]))
		}
		page = shared.NewPaginated(items, total, f.Page, f.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// AddLine adds a budget line, forking the document first if it is past draft.
func (s *BOQService) AddLine(ctx context.Context, tenantID, docID uuid.UUID, req LineRequest, actor uuid.UUID) (*DocumentResponse, error) {
	return s.Edit(ctx, tenantID, docID, []Edit{{Op: EditAddLine, Line: &req}}, actor)
}

// UpdateLine patches a budget line, forking the document first if it is past draft.
func (s *BOQService) UpdateLine(ctx context.Context, tenantID, docID, lineID uuid.UUID, req LinePatchRequest, actor uuid.UUID) (*DocumentResponse, error) {
	return s.Edit(ctx, tenantID, docID, []Edit{{Op: EditUpdateLine, LineID: &lineID, Patch: &req}}, actor)
}

// RemoveLine removes a budget line, forking the document first if it is past draft.
func (s *BOQService) RemoveLine(ctx context.Context, tenantID, docID, lineID uuid.UUID, actor uuid.UUID) (*DocumentResponse, error) {
	return s.Edit(ctx, tenantID, docID, []Edit{{Op: EditRemoveLine, LineID: &lineID}}, actor)
}

// UpdateHeader changes the name or cost center, forking the document first if it is past draft.
func (s *BOQService) UpdateHeader(ctx context.Context, tenantID, docID uuid.UUID, req HeaderPatchRequest, actor uuid.UUID) (*DocumentResponse, error) {
	return s.Edit(ctx, tenantID, docID, []Edit{{Op: EditUpdateHeader, Header: &req}}, actor)
}

// ImportLines appends every line of a CSV sheet as one edit batch. A sheet with
// any invalid row adds nothing.
func (s *BOQService) ImportLines(ctx context.Context, tenantID, docID uuid.UUID, sheet io.Reader, actor uuid.UUID, opts ...csvimport.ReaderOption) (*DocumentResponse, error) {
	specs, err := csvimport.ParseLines(sheet, opts...)
	if err != nil {
		return nil, err
	}
	edits := make([]Edit, 0, len(specs))
	for _, spec := range specs {
		req := LineRequestFromSpec(spec)
		edits = append(edits, Edit{Op: EditAddLine, Line: &req})
	}
	s.logger.Debug("Importing BOQ lines",
		zap.String("document_id", docID.String()),
		zap.Int("lines", len(edits)))
	return s.Edit(ctx, tenantID, docID, edits, actor)
}

// Edit applies business edits atomically. A submitted, approved or locked document is
// forked exactly once before the first edit; a closed one is immutable. Concurrent
// callers serialize on the document lock, so only the first of them forks.
func (s *BOQService) Edit(ctx context.Context, tenantID, docID uuid.UUID, edits []Edit, actor uuid.UUID) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "boq", "edit")
	defer span.End()
	telemetry.SetAttributes(span,
		"document_id", docID.String(),
		"edits", len(edits),
	)

	if len(edits) == 0 {
		return nil, shared.ErrInvalidInput.WithDetail("reason", "no edits")
	}

	var doc *budget.BudgetDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if err := checkSections(ctx, repos, tenantID, edits); err != nil {
			return err
		}

		var lineMap map[uuid.UUID]uuid.UUID
		if doc.Active && doc.State.RequiresRevision() {
			reason := fmt.Sprintf("Edited while %s", doc.State)
			fork, err := s.revisions.Fork(ctx, repos, doc, reason, actor)
			if err != nil {
				return err
			}
			lineMap = fork.LineMap
		}

		before := make(map[uuid.UUID]struct{}, len(doc.Lines))
		for _, l := range doc.Lines {
			before[l.ID] = struct{}{}
		}
		for _, e := range edits {
			if err := applyEdit(doc, e, lineMap); err != nil {
				return err
			}
		}
		if err := persistLines(ctx, repos, doc, before); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "boq_version", doc.BOQVersion)
	s.publishDomainEvents(ctx, doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// Revise forks the document explicitly, recording reason on the revision link.
func (s *BOQService) Revise(ctx context.Context, tenantID, docID uuid.UUID, reason string, actor uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, tenantID, docID, func(repos TransactionalRepositories, doc *budget.BudgetDocument) error {
		_, err := s.revisions.Fork(ctx, repos, doc, reason, actor)
		return err
	})
}

// Submit moves a draft BOQ to submitted
func (s *BOQService) Submit(ctx context.Context, tenantID, docID, actor uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, tenantID, docID, func(_ TransactionalRepositories, doc *budget.BudgetDocument) error {
		return doc.Submit()
	})
}

// ResetToDraft returns a submitted BOQ to draft
func (s *BOQService) ResetToDraft(ctx context.Context, tenantID, docID, actor uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, tenantID, docID, func(_ TransactionalRepositories, doc *budget.BudgetDocument) error {
		return doc.ResetToDraft()
	})
}

// Approve approves a submitted BOQ. At most one active document per project may be
// approved or locked; the project's documents are locked while this is checked.
func (s *BOQService) Approve(ctx context.Context, tenantID, docID, actor uuid.UUID) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "boq", "approve")
	defer span.End()
	telemetry.SetAttributes(span, "document_id", docID.String())

	var doc *budget.BudgetDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		header, err := repos.Documents().FindHeadersByIDs(ctx, tenantID, []uuid.UUID{docID})
		if err != nil {
			return err
		}
		if len(header) == 0 {
			return shared.ErrNotFound
		}
		if err := repos.Documents().LockProject(ctx, tenantID, header[0].ProjectID); err != nil {
			return err
		}
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if err := doc.ValidateApproval(); err != nil {
			return err
		}
		exists, err := repos.Documents().ExistsActiveBudget(ctx, tenantID, doc.ProjectID, doc.ID)
		if err != nil {
			return err
		}
		if exists {
			return budget.ErrDuplicateActiveBudget.WithDetail("project_id", doc.ProjectID.String())
		}
		if err := doc.Approve(actor); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publishDomainEvents(ctx, doc)
	s.logger.Info("BOQ approved",
		zap.String("document_id", doc.ID.String()),
		zap.String("project_id", doc.ProjectID.String()),
		zap.Int("boq_version", doc.BOQVersion),
		zap.String("approved_by", actor.String()),
	)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// Lock marks an approved BOQ as locked
func (s *BOQService) Lock(ctx context.Context, tenantID, docID, actor uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, tenantID, docID, func(_ TransactionalRepositories, doc *budget.BudgetDocument) error {
		return doc.Lock()
	})
}

// Close closes an approved or locked BOQ. The document's lines are locked first so
// consumptions already in flight finish before the state changes.
func (s *BOQService) Close(ctx context.Context, tenantID, docID, actor uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, tenantID, docID, func(repos TransactionalRepositories, doc *budget.BudgetDocument) error {
		if len(doc.Lines) > 0 {
			if _, err := repos.Lines().LockForUpdate(ctx, tenantID, sortedLineIDs(doc.Lines)); err != nil {
				return err
			}
		}
		return doc.Close()
	})
}

// History returns the revision links that produced the document, oldest first.
func (s *BOQService) History(ctx context.Context, tenantID, docID uuid.UUID) ([]RevisionResponse, error) {
	var history []RevisionResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		headers, err := repos.Documents().FindHeadersByIDs(ctx, tenantID, []uuid.UUID{docID})
		if err != nil {
			return err
		}
		if len(headers) == 0 {
			return shared.ErrNotFound
		}
		links, err := repos.Revisions().FindBySuccessor(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.SnapshotID)
		}
		snapshots, err := repos.Documents().FindHeadersByIDs(ctx, tenantID, ids)
		if err != nil {
			return err
		}
		versions := make(map[uuid.UUID]int, len(snapshots))
		for _, snap := range snapshots {
			versions[snap.ID] = snap.BOQVersion
		}
		history = make([]RevisionResponse, 0, len(links))
		for _, l := range links {
			history = append(history, RevisionResponse{
				ID:              l.ID,
				SnapshotID:      l.SnapshotID,
				SnapshotVersion: versions[l.SnapshotID],
				SuccessorID:     l.SuccessorID,
				Reason:          l.Reason,
				ApprovedBy:      l.ApprovedBy,
				ApprovedAt:      l.ApprovedAt,
				RevisedBy:       l.RevisedBy,
				CreatedAt:       l.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// transition loads and locks a document, runs fn and saves the header.
func (s *BOQService) transition(ctx context.Context, tenantID, docID uuid.UUID, fn func(TransactionalRepositories, *budget.BudgetDocument) error) (*DocumentResponse, error) {
	var doc *budget.BudgetDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.Documents().FindByIDForUpdate(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if err := fn(repos, doc); err != nil {
			return err
		}
		return repos.Documents().SaveWithLock(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// publishDomainEvents publishes all domain events from the document
func (s *BOQService) publishDomainEvents(ctx context.Context, doc *budget.BudgetDocument) {
	if s.eventPublisher == nil {
		doc.ClearDomainEvents()
		return
	}
	events := doc.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish BOQ events",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}
	doc.ClearDomainEvents()
}

func applyEdit(doc *budget.BudgetDocument, e Edit, lineMap map[uuid.UUID]uuid.UUID) error {
	lineID := func() (uuid.UUID, error) {
		if e.LineID == nil {
			return uuid.Nil, shared.ErrInvalidInput.WithDetail("reason", "line_id is required")
		}
		if mapped, ok := lineMap[*e.LineID]; ok {
			return mapped, nil
		}
		return *e.LineID, nil
	}

	switch e.Op {
	case EditAddLine:
		if e.Line == nil {
			return shared.ErrInvalidInput.WithDetail("reason", "line is required")
		}
		_, err := doc.AddLine(e.Line.ToSpec())
		return err
	case EditUpdateLine:
		id, err := lineID()
		if err != nil {
			return err
		}
		if e.Patch == nil {
			return shared.ErrInvalidInput.WithDetail("reason", "patch is required")
		}
		_, err = doc.UpdateLine(id, e.Patch.ToPatch())
		return err
	case EditRemoveLine:
		id, err := lineID()
		if err != nil {
			return err
		}
		_, err = doc.RemoveLine(id)
		return err
	case EditUpdateHeader:
		if e.Header == nil {
			return shared.ErrInvalidInput.WithDetail("reason", "header is required")
		}
		return doc.UpdateHeader(budget.HeaderPatch{Name: e.Header.Name, CostCenterID: e.Header.CostCenterID})
	default:
		return shared.ErrInvalidInput.WithDetail("op", string(e.Op))
	}
}

// checkSections rejects edits that file a line under a section the tenant does not have.
func checkSections(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, edits []Edit) error {
	checked := make(map[uuid.UUID]struct{})
	for _, e := range edits {
		var id *uuid.UUID
		switch {
		case e.Line != nil:
			id = e.Line.SectionID
		case e.Patch != nil:
			id = e.Patch.SectionID
		}
		if id == nil {
			continue
		}
		if _, ok := checked[*id]; ok {
			continue
		}
		checked[*id] = struct{}{}
		if _, err := repos.Sections().FindByIDForTenant(ctx, tenantID, *id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrInvalidSection.WithDetail("section_id", id.String())
			}
			return err
		}
	}
	return nil
}

// persistLines writes the difference between the lines present before the edits and now.
func persistLines(ctx context.Context, repos TransactionalRepositories, doc *budget.BudgetDocument, before map[uuid.UUID]struct{}) error {
	after := make(map[uuid.UUID]struct{}, len(doc.Lines))
	created := make([]budget.BudgetLine, 0)
	for i := range doc.Lines {
		line := &doc.Lines[i]
		after[line.ID] = struct{}{}
		if _, existed := before[line.ID]; !existed {
			created = append(created, *line)
			continue
		}
		if err := repos.Lines().Save(ctx, line); err != nil {
			return err
		}
	}
	for id := range before {
		if _, kept := after[id]; kept {
			continue
		}
		count, err := repos.Ledger().CountByLine(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return budget.ErrLineHasConsumption.WithDetail("line_id", id.String())
		}
		if err := repos.Lines().Delete(ctx, id); err != nil {
			return err
		}
	}
	if len(created) > 0 {
		return repos.Lines().CreateBatch(ctx, created)
	}
	return nil
}
