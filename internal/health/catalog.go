package health

import (
	"context"
	"fmt"
)

// catalogSource is the slice of the character catalog health needs.
type catalogSource interface {
	Count() int
	ValidateDirectory() bool
}

// CatalogChecker reports whether the character catalog is usable. A missing
// portrait directory alone is not fatal because the catalog falls back to its
// static character list; an empty catalog is.
type CatalogChecker struct {
	catalog catalogSource
}

// NewCatalogChecker creates a new catalog health checker.
func NewCatalogChecker(catalog catalogSource) *CatalogChecker {
	return &CatalogChecker{catalog: catalog}
}

// HealthCheck verifies the catalog has characters to rank.
func (c *CatalogChecker) HealthCheck(ctx context.Context) error {
	if c.catalog.Count() > 0 {
		return nil
	}
	if !c.catalog.ValidateDirectory() {
		return fmt.Errorf("character catalog is empty and portrait directory is unavailable")
	}
	return fmt.Errorf("character catalog is empty")
}
