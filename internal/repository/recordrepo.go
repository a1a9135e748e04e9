// Package repository defines the storage contracts consumed by services.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/amqadri/nisab-keeper/internal/model"
)

// ListFilter narrows record listings. A nil field means no constraint.
type ListFilter struct {
	Status *model.RecordStatus
	Year   *int // calendar year of the Hawl start date
}

// RecordTx exposes the write primitives available inside a single record
// transaction. Append is the only write primitive the audit trail has;
// entries are never updated or deleted on their own.
type RecordTx interface {
	// GetRecordForUpdate loads a record owned by userID and row-locks it so
	// the status guard applies to the freshest state.
	GetRecordForUpdate(ctx context.Context, userID, recordID uuid.UUID) (*model.RecordRow, error)

	// SaveRecord inserts or updates the full at-rest row.
	SaveRecord(ctx context.Context, row *model.RecordRow) error

	// DeleteRecord removes a record together with its audit trail.
	DeleteRecord(ctx context.Context, userID, recordID uuid.UUID) error

	// LastAuditEntry returns the highest-sequence entry for the record, or
	// nil when the trail is empty.
	LastAuditEntry(ctx context.Context, recordID uuid.UUID) (*model.AuditEntry, error)

	// AppendAudit inserts a new audit entry.
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
}

// RecordRepository provides durable storage of nisab year records.
type RecordRepository interface {
	// RunInTransaction executes fn atomically with respect to other
	// operations on the same record ids. A returned error rolls back
	// everything, leaving record and ledger untouched.
	RunInTransaction(ctx context.Context, fn func(tx RecordTx) error) error

	// GetRecord loads a record owned by userID without locking.
	GetRecord(ctx context.Context, userID, recordID uuid.UUID) (*model.RecordRow, error)

	// ListRecords returns the user's records matching the filter, newest
	// Hawl start first.
	ListRecords(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]model.RecordRow, error)

	// ListAuditEntries returns a record's trail in sequence order.
	ListAuditEntries(ctx context.Context, recordID uuid.UUID) ([]model.AuditEntry, error)
}
