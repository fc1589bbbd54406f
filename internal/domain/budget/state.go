package budget

// DocumentState is the lifecycle state of a BOQ document.
type DocumentState string

const (
	StateDraft     DocumentState = "draft"
	StateSubmitted DocumentState = "submitted"
	StateApproved  DocumentState = "approved"
	StateLocked    DocumentState = "locked"
	StateClosed    DocumentState = "closed"
)

// String returns the string representation of DocumentState
func (s DocumentState) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s DocumentState) IsValid() bool {
	switch s {
	case StateDraft, StateSubmitted, StateApproved, StateLocked, StateClosed:
		return true
	}
	return false
}

// IsActiveBudget reports whether the state makes the document the project's authoritative budget.
func (s DocumentState) IsActiveBudget() bool {
	return s == StateApproved || s == StateLocked
}

// AcceptsConsumption reports whether lines in this state may be consumed.
func (s DocumentState) AcceptsConsumption() bool {
	return s.IsActiveBudget()
}

// RequiresRevision reports whether a business edit must go through a copy-on-write fork.
func (s DocumentState) RequiresRevision() bool {
	return s == StateSubmitted || s == StateApproved || s == StateLocked
}

// IsEditable reports whether business fields may be changed in place.
func (s DocumentState) IsEditable() bool {
	return s == StateDraft
}

// CostType classifies a budget line.
type CostType string

const (
	CostTypeMaterial    CostType = "material"
	CostTypeLabor       CostType = "labor"
	CostTypeSubcontract CostType = "subcontract"
	CostTypeService     CostType = "service"
	CostTypeOverhead    CostType = "overhead"
)

// IsValid returns true if the cost type is known
func (c CostType) IsValid() bool {
	switch c {
	case CostTypeMaterial, CostTypeLabor, CostTypeSubcontract, CostTypeService, CostTypeOverhead:
		return true
	}
	return false
}
