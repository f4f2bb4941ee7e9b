package storage

import (
	"context"

	"github.com/printhub/fulfillment/internal/application/supplysync"
)

// NoopCatalogArchive drops snapshots. Used when storage is disabled.
type NoopCatalogArchive struct{}

var _ supplysync.CatalogArchive = NoopCatalogArchive{}

// Archive returns an empty key
func (NoopCatalogArchive) Archive(context.Context, supplysync.CatalogSnapshot) (string, error) {
	return "", nil
}

