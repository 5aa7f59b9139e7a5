package core

import (
	"context"
	"time"
)

// SalesRecordStore is the persistence contract the sales-record ledger needs.
// Implementations: the PostgreSQL store in this package and the in-memory store
// in internal/store/memory.
type SalesRecordStore interface {
	// InsertSalesRecord reserves the next slot of the per-month sequence for
	// rec.SaleDate, sets rec.RecordNumber/ID/CreatedAt/UpdatedAt and persists rec,
	// all atomically. A collision with an existing record number is reported as
	// ErrRecordNumberConflict and leaves nothing written.
	InsertSalesRecord(ctx context.Context, rec *SalesRecord) error

	// UpdateSalesRecord loads the record under a write lock, applies mutate and
	// persists the result. If mutate returns an error nothing is written.
	// RecordNumber, ID and CreatedAt are never changed by an update.
	UpdateSalesRecord(ctx context.Context, id int, mutate func(*SalesRecord) error) (*SalesRecord, error)

	GetSalesRecord(ctx context.Context, id int) (*SalesRecord, error)
	GetSalesRecordByNumber(ctx context.Context, number string) (*SalesRecord, error)
	ListSalesRecords(ctx context.Context, filter SalesRecordFilter) ([]SalesRecord, error)

	// SalesStats aggregates records whose sale date lies in [from, to].
	SalesStats(ctx context.Context, from, to time.Time, salesPersonID *int) (SalesStats, error)

	// MarkOverdueFollowUps flips scheduled follow-ups dated before now to overdue.
	MarkOverdueFollowUps(ctx context.Context, now time.Time) (int, error)
}
