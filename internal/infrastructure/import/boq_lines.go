package csvimport

import (
	"errors"
	"io"
	"strconv"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOQ line sheet columns
const (
	ColDescription    = "description"
	ColCostType       = "cost_type"
	ColQuantity       = "quantity"
	ColUnitRate       = "unit_rate"
	ColExpenseAccount = "expense_account_id"
	ColProduct        = "product_id"
	ColSection        = "section_id"
	ColAllowOverride  = "allow_override"
	ColSequence       = "sequence"
)

// RequiredLineColumns must appear in every BOQ line sheet
var RequiredLineColumns = []string{ColDescription, ColCostType, ColQuantity, ColExpenseAccount}

// ParseLines reads a BOQ line sheet into line specs. Either every row is
// valid and all specs are returned, or nothing is returned and the error
// carries the row errors. Blank rows are skipped.
func ParseLines(in io.Reader, opts ...ReaderOption) ([]budget.LineSpec, error) {
	sheet, err := NewSheetReader(in, opts...)
	if err != nil {
		return nil, fileError(err)
	}
	if missing := sheet.MissingHeaders(RequiredLineColumns...); len(missing) > 0 {
		return nil, shared.NewDomainError(CodeInvalidFile, "Missing required columns").
			WithDetail("missing_columns", missing)
	}

	errs := NewErrorCollection(0)
	specs := make([]budget.LineSpec, 0)
	for {
		row, err := sheet.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs.Add(RowError{Code: ErrCodeMalformedRow, Message: err.Error()})
			break
		}
		if row.IsEmpty() {
			continue
		}
		if spec, ok := parseLineRow(row, errs); ok {
			specs = append(specs, spec)
		}
	}

	if errs.HasErrors() {
		return nil, errs.DomainError()
	}
	if len(specs) == 0 {
		return nil, fileError(ErrNoDataRows)
	}
	return specs, nil
}

func parseLineRow(row *Row, errs *ErrorCollection) (budget.LineSpec, bool) {
	before := errs.TotalCount()
	n := row.LineNumber

	spec := budget.LineSpec{
		Description: row.Get(ColDescription),
		CostType:    budget.CostType(row.Get(ColCostType)),
		UnitRate:    decimal.Zero,
	}
	if spec.Description == "" {
		errs.AddRequired(n, ColDescription)
	}
	if v := row.Get(ColCostType); v == "" {
		errs.AddRequired(n, ColCostType)
	} else if !spec.CostType.IsValid() {
		errs.AddInvalid(n, ColCostType, ErrCodeInvalidValue, "one of material, labor, subcontract, service, overhead", v)
	}

	spec.Quantity = requiredDecimal(row, ColQuantity, errs)
	if v := row.Get(ColUnitRate); v != "" {
		spec.UnitRate = parseDecimal(n, ColUnitRate, v, errs)
	}

	if v := row.Get(ColExpenseAccount); v == "" {
		errs.AddRequired(n, ColExpenseAccount)
	} else if id, err := uuid.Parse(v); err != nil {
		errs.AddInvalid(n, ColExpenseAccount, ErrCodeInvalidUUID, "a UUID", v)
	} else {
		spec.ExpenseAccountID = id
	}
	spec.ProductID = optionalUUID(row, ColProduct, errs)
	spec.SectionID = optionalUUID(row, ColSection, errs)

	if v := row.Get(ColAllowOverride); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.AddInvalid(n, ColAllowOverride, ErrCodeInvalidBool, "true or false", v)
		}
		spec.AllowOverride = b
	}
	if v := row.Get(ColSequence); v != "" {
		seq, err := strconv.Atoi(v)
		if err != nil {
			errs.AddInvalid(n, ColSequence, ErrCodeInvalidNumber, "an integer", v)
		}
		spec.Sequence = seq
	}

	if errs.TotalCount() > before {
		return spec, false
	}
	if err := spec.Validate(); err != nil {
		re := RowError{Row: n, Code: ErrCodeInvalidValue, Message: err.Error()}
		if de, ok := shared.AsDomainError(err); ok {
			re.Code = de.Code
		}
		errs.Add(re)
		return spec, false
	}
	return spec, true
}

func requiredDecimal(row *Row, column string, errs *ErrorCollection) decimal.Decimal {
	v := row.Get(column)
	if v == "" {
		errs.AddRequired(row.LineNumber, column)
		return decimal.Zero
	}
	return parseDecimal(row.LineNumber, column, v, errs)
}

func parseDecimal(n int, column, v string, errs *ErrorCollection) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		errs.AddInvalid(n, column, ErrCodeInvalidNumber, "a decimal number", v)
		return decimal.Zero
	}
	return d
}

func optionalUUID(row *Row, column string, errs *ErrorCollection) *uuid.UUID {
	v := row.Get(column)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		errs.AddInvalid(row.LineNumber, column, ErrCodeInvalidUUID, "a UUID", v)
		return nil
	}
	return &id
}
