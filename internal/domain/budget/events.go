package budget

import (
	"time"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names used in events
const (
	AggregateTypeDocument = "BudgetDocument"
	AggregateTypeLine     = "BudgetLine"
)

// Event type names
const (
	EventTypeDocumentCreated      = "BudgetDocumentCreated"
	EventTypeDocumentStateChanged = "BudgetDocumentStateChanged"
	EventTypeDocumentRevised      = "BudgetDocumentRevised"
	EventTypeConsumptionPosted    = "ConsumptionPosted"
)

// DocumentCreatedEvent is raised when a new BOQ is created
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID `json:"document_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Name       string    `json:"name"`
	BOQVersion int       `json:"boq_version"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(d *BudgetDocument) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCreated, AggregateTypeDocument, d.ID, d.TenantID),
		DocumentID:      d.ID,
		ProjectID:       d.ProjectID,
		Name:            d.Name,
		BOQVersion:      d.BOQVersion,
	}
}

// DocumentStateChangedEvent is raised on every lifecycle transition
type DocumentStateChangedEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID     `json:"document_id"`
	ProjectID  uuid.UUID     `json:"project_id"`
	From       DocumentState `json:"from"`
	To         DocumentState `json:"to"`
	ApprovedBy *uuid.UUID    `json:"approved_by,omitempty"`
}

// NewDocumentStateChangedEvent creates a new DocumentStateChangedEvent
func NewDocumentStateChangedEvent(d *BudgetDocument, from DocumentState) *DocumentStateChangedEvent {
	return &DocumentStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStateChanged, AggregateTypeDocument, d.ID, d.TenantID),
		DocumentID:      d.ID,
		ProjectID:       d.ProjectID,
		From:            from,
		To:              d.State,
		ApprovedBy:      d.ApprovedBy,
	}
}

// DocumentRevisedEvent is raised when a document forks into a new draft version
type DocumentRevisedEvent struct {
	shared.BaseDomainEvent
	DocumentID      uuid.UUID `json:"document_id"`
	SnapshotID      uuid.UUID `json:"snapshot_id"`
	SnapshotVersion int       `json:"snapshot_version"`
	NewVersion      int       `json:"new_version"`
}

// NewDocumentRevisedEvent creates a new DocumentRevisedEvent
func NewDocumentRevisedEvent(d *BudgetDocument, snapshot *BudgetDocument) *DocumentRevisedEvent {
	return &DocumentRevisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentRevised, AggregateTypeDocument, d.ID, d.TenantID),
		DocumentID:      d.ID,
		SnapshotID:      snapshot.ID,
		SnapshotVersion: snapshot.BOQVersion,
		NewVersion:      d.BOQVersion,
	}
}

// ConsumptionPostedEvent is raised after a ledger entry is committed
type ConsumptionPostedEvent struct {
	shared.BaseDomainEvent
	EntryID       uuid.UUID       `json:"entry_id"`
	LineID        uuid.UUID       `json:"line_id"`
	SourceSystem  string          `json:"source_system"`
	SourceID      string          `json:"source_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate time.Time       `json:"effective_date"`
}

// NewConsumptionPostedEvent creates a new ConsumptionPostedEvent
func NewConsumptionPostedEvent(e *ConsumptionEntry) *ConsumptionPostedEvent {
	return &ConsumptionPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConsumptionPosted, AggregateTypeLine, e.LineID, e.TenantID),
		EntryID:         e.ID,
		LineID:          e.LineID,
		SourceSystem:    e.SourceSystem,
		SourceID:        e.SourceID,
		Quantity:        e.Quantity,
		Amount:          e.Amount,
		EffectiveDate:   e.EffectiveDate,
	}
}
