package specification

import "gorm.io/gorm"

// Specification applies a filter/ordering clause to a query.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
