// Package tenant scopes GORM queries to a single tenant.
//
// Every budget table carries a tenant_id column; repositories add the scope
// to list and count queries:
//
//	db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Find(&docs)
package tenant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is the tenant discriminator column
const Column = "tenant_id"

// Scope restricts a query to rows owned by tenantID. A nil tenant matches nothing.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			return db.Where("1 = 0")
		}
		return db.Where(Column+" = ?", tenantID)
	}
}

// TableScope qualifies the tenant column with a table name, for joined queries
func TableScope(table string, tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			return db.Where("1 = 0")
		}
		return db.Where(table+"."+Column+" = ?", tenantID)
	}
}
