// Package storage contains the storage-agnostic contract the pipeline loads
// through. The concrete Postgres implementation lives in the postgres
// subpackage; tests substitute fakes.
package storage

import (
	"context"
	"time"

	"sepaetl/pkg/records"
)

// Repository is the destination store for one run. Dimension upserts are
// idempotent across runs; PreparePartition gives the fact load its
// replace-by-date semantics; BulkLoadPrecios appends fact rows through the
// backend's bulk-copy path.
type Repository interface {
	UpsertComercios(ctx context.Context, rows []records.Record) (int64, error)
	UpsertSucursales(ctx context.Context, rows []records.Record) (int64, error)
	UpsertProductosMaster(ctx context.Context, rows []records.Record) (int64, error)
	PreparePartition(ctx context.Context, fechaVigencia time.Time) error
	BulkLoadPrecios(ctx context.Context, rows []records.Record, scrapedAt, fechaVigencia time.Time) (int64, error)
}
