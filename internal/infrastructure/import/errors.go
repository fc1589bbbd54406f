package csvimport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/budget/internal/domain/shared"
)

// Import error codes
const (
	// CodeInvalidFile is returned when the sheet cannot be read at all
	CodeInvalidFile = "INVALID_IMPORT_FILE"
	// CodeInvalidRows is returned when one or more rows fail validation
	CodeInvalidRows = "INVALID_IMPORT_ROWS"

	// Row-level codes
	ErrCodeRequiredField = "REQUIRED_FIELD"
	ErrCodeInvalidNumber = "INVALID_NUMBER"
	ErrCodeInvalidUUID   = "INVALID_UUID"
	ErrCodeInvalidBool   = "INVALID_BOOLEAN"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeMalformedRow  = "MALFORMED_ROW"
)

// Sheet-level errors
var (
	ErrEmptyFile       = errors.New("CSV file is empty")
	ErrInvalidEncoding = errors.New("invalid file encoding")
	ErrMissingHeader   = errors.New("CSV file missing header row")
	ErrDuplicateHeader = errors.New("duplicate column")
	ErrNoDataRows      = errors.New("CSV file contains no data rows")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
)

// RowError represents an error in a specific row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection gathers row errors up to a limit while still counting the rest
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddRequired records a blank required cell
func (ec *ErrorCollection) AddRequired(row int, column string) {
	ec.Add(RowError{Row: row, Column: column, Code: ErrCodeRequiredField, Message: fmt.Sprintf("field '%s' is required", column)})
}

// AddInvalid records a cell that does not parse as the expected kind
func (ec *ErrorCollection) AddInvalid(row int, column, code, expected, value string) {
	ec.Add(RowError{Row: row, Column: column, Code: code, Message: "expected " + expected, Value: value})
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", ec.totalCount)
	if ec.IsTruncated() {
		fmt.Fprintf(&sb, " (showing first %d)", ec.maxErrors)
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// DomainError reports the collected row errors as a single domain error
func (ec *ErrorCollection) DomainError() *shared.DomainError {
	return shared.NewDomainErrorf(CodeInvalidRows, "%d row error(s) in import", ec.totalCount).
		WithDetail("rows", ec.errors).
		WithDetail("total_errors", ec.totalCount).
		WithDetail("truncated", ec.IsTruncated())
}

// fileError wraps a sheet-level failure as a domain error
func fileError(err error) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidFile, err.Error())
}
