package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// BudgetDocumentSortFields contains allowed sort fields for BOQ documents
var BudgetDocumentSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"name":        true,
	"boq_version": true,
	"state":       true,
}

// ConsumptionEntrySortFields contains allowed sort fields for ledger entries.
// Entries are never updated, so there is no updated_at.
var ConsumptionEntrySortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"effective_date": true,
	"quantity":       true,
	"amount":         true,
}
