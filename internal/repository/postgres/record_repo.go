package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/model"
	"github.com/amqadri/nisab-keeper/internal/repository"
)

// RecordRepo implements repository.RecordRepository using PostgreSQL.
type RecordRepo struct{ db *DB }

// NewRecordRepo constructs a record repository.
func NewRecordRepo(db *DB) *RecordRepo { return &RecordRepo{db: db} }

const recordColumns = `id, user_id, status, hawl_start_date, hawl_completion_date, nisab_basis,
nisab_threshold_enc, total_wealth_enc, total_liabilities_enc, zakatable_wealth_enc, zakat_amount_enc,
asset_breakdown_enc, user_notes_enc, is_primary, finalized_at, created_at, updated_at`

const auditColumns = `record_id, sequence, event_type, before_status, after_status, changes,
unlock_reason_enc, created_at, integrity_hash`

// RunInTransaction executes fn within a single database transaction.
func (r *RecordRepo) RunInTransaction(ctx context.Context, fn func(tx repository.RecordTx) error) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	err = fn(&recordTx{tx: tx})
	return err
}

// GetRecord loads a record owned by userID without locking.
func (r *RecordRepo) GetRecord(ctx context.Context, userID, recordID uuid.UUID) (*model.RecordRow, error) {
	q := `SELECT ` + recordColumns + ` FROM nisab_year_records WHERE id=$1 AND user_id=$2`
	return scanRecord(r.db.Pool.QueryRow(ctx, q, recordID, userID))
}

// ListRecords returns the user's records matching the filter, newest Hawl
// start first.
func (r *RecordRepo) ListRecords(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]model.RecordRow, error) {
	q := `SELECT ` + recordColumns + ` FROM nisab_year_records WHERE user_id=$1`
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		q += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		q += ` AND EXTRACT(YEAR FROM hawl_start_date)=$` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY hawl_start_date DESC`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecordRow
	for rows.Next() {
		row, err := scanRecordValues(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// ListAuditEntries returns a record's trail in sequence order.
func (r *RecordRepo) ListAuditEntries(ctx context.Context, recordID uuid.UUID) ([]model.AuditEntry, error) {
	q := `SELECT ` + auditColumns + ` FROM audit_trail_entries WHERE record_id=$1 ORDER BY sequence ASC`
	rows, err := r.db.Pool.Query(ctx, q, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		e, err := scanAuditValues(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// recordTx implements repository.RecordTx on top of a pgx transaction.
type recordTx struct{ tx pgx.Tx }

// GetRecordForUpdate loads and row-locks a record owned by userID.
func (t *recordTx) GetRecordForUpdate(ctx context.Context, userID, recordID uuid.UUID) (*model.RecordRow, error) {
	q := `SELECT ` + recordColumns + ` FROM nisab_year_records WHERE id=$1 AND user_id=$2 FOR UPDATE`
	return scanRecord(t.tx.QueryRow(ctx, q, recordID, userID))
}

// SaveRecord inserts or updates the full at-rest row. The immutable columns
// (user, dates, basis, threshold, created_at) are never touched on update.
func (t *recordTx) SaveRecord(ctx context.Context, row *model.RecordRow) error {
	const q = `
INSERT INTO nisab_year_records (
  id, user_id, status, hawl_start_date, hawl_completion_date, nisab_basis,
  nisab_threshold_enc, total_wealth_enc, total_liabilities_enc, zakatable_wealth_enc, zakat_amount_enc,
  asset_breakdown_enc, user_notes_enc, is_primary, finalized_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  total_wealth_enc=EXCLUDED.total_wealth_enc,
  total_liabilities_enc=EXCLUDED.total_liabilities_enc,
  zakatable_wealth_enc=EXCLUDED.zakatable_wealth_enc,
  zakat_amount_enc=EXCLUDED.zakat_amount_enc,
  asset_breakdown_enc=EXCLUDED.asset_breakdown_enc,
  user_notes_enc=EXCLUDED.user_notes_enc,
  is_primary=EXCLUDED.is_primary,
  finalized_at=EXCLUDED.finalized_at,
  updated_at=EXCLUDED.updated_at`
	_, err := t.tx.Exec(ctx, q,
		row.ID, row.UserID, string(row.Status), row.HawlStartDate, row.HawlCompletionDate, string(row.NisabBasis),
		row.NisabThresholdEnc, row.TotalWealthEnc, row.TotalLiabilitiesEnc, row.ZakatableWealthEnc, row.ZakatAmountEnc,
		row.AssetBreakdownEnc, row.UserNotesEnc, row.IsPrimary, row.FinalizedAt, row.CreatedAt, row.UpdatedAt,
	)
	return err
}

// DeleteRecord removes the record and its audit trail. The status guard
// restricting this to drafts is enforced by the service layer.
func (t *recordTx) DeleteRecord(ctx context.Context, userID, recordID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM nisab_year_records WHERE id=$1 AND user_id=$2`, recordID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	_, err = t.tx.Exec(ctx, `DELETE FROM audit_trail_entries WHERE record_id=$1`, recordID)
	return err
}

// LastAuditEntry returns the highest-sequence entry for the record, nil if none.
func (t *recordTx) LastAuditEntry(ctx context.Context, recordID uuid.UUID) (*model.AuditEntry, error) {
	q := `SELECT ` + auditColumns + ` FROM audit_trail_entries WHERE record_id=$1 ORDER BY sequence DESC LIMIT 1`
	e, err := scanAudit(t.tx.QueryRow(ctx, q, recordID))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// AppendAudit inserts a new audit entry. There is no update or delete path.
func (t *recordTx) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	var changes []byte
	if len(e.Changes) > 0 {
		b, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = b
	}
	const q = `
INSERT INTO audit_trail_entries (record_id, sequence, event_type, before_status, after_status, changes,
  unlock_reason_enc, created_at, integrity_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := t.tx.Exec(ctx, q,
		e.RecordID, e.Sequence, string(e.EventType), string(e.BeforeStatus), string(e.AfterStatus),
		changes, e.UnlockReasonEnc, e.Timestamp, e.IntegrityHash,
	)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRecordValues(row rowScanner) (*model.RecordRow, error) {
	var r model.RecordRow
	var status, basis string
	err := row.Scan(
		&r.ID, &r.UserID, &status, &r.HawlStartDate, &r.HawlCompletionDate, &basis,
		&r.NisabThresholdEnc, &r.TotalWealthEnc, &r.TotalLiabilitiesEnc, &r.ZakatableWealthEnc, &r.ZakatAmountEnc,
		&r.AssetBreakdownEnc, &r.UserNotesEnc, &r.IsPrimary, &r.FinalizedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = model.RecordStatus(status)
	r.NisabBasis = model.NisabBasis(basis)
	return &r, nil
}

func scanRecord(row rowScanner) (*model.RecordRow, error) {
	r, err := scanRecordValues(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return r, err
}

func scanAuditValues(row rowScanner) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var eventType, before, after string
	var changes []byte
	err := row.Scan(
		&e.RecordID, &e.Sequence, &eventType, &before, &after, &changes,
		&e.UnlockReasonEnc, &e.Timestamp, &e.IntegrityHash,
	)
	if err != nil {
		return nil, err
	}
	e.EventType = model.AuditEventType(eventType)
	e.BeforeStatus = model.RecordStatus(before)
	e.AfterStatus = model.RecordStatus(after)
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal changes: %w", err)
		}
	}
	return &e, nil
}

func scanAudit(row rowScanner) (*model.AuditEntry, error) {
	e, err := scanAuditValues(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return e, err
}
