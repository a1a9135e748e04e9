package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/model"
	"github.com/amqadri/nisab-keeper/internal/repository"
)

var recordColumnNames = []string{
	"id", "user_id", "status", "hawl_start_date", "hawl_completion_date", "nisab_basis",
	"nisab_threshold_enc", "total_wealth_enc", "total_liabilities_enc", "zakatable_wealth_enc", "zakat_amount_enc",
	"asset_breakdown_enc", "user_notes_enc", "is_primary", "finalized_at", "created_at", "updated_at",
}

var auditColumnNames = []string{
	"record_id", "sequence", "event_type", "before_status", "after_status", "changes",
	"unlock_reason_enc", "created_at", "integrity_hash",
}

func newMockRepo(t *testing.T) (*RecordRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewRecordRepo(&DB{Pool: mock}), mock
}

func sampleRow(userID uuid.UUID) *model.RecordRow {
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	return &model.RecordRow{
		ID:                  uuid.Must(uuid.NewV4()),
		UserID:              userID,
		Status:              model.StatusDraft,
		HawlStartDate:       time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		HawlCompletionDate:  time.Date(2025, time.December, 21, 0, 0, 0, 0, time.UTC),
		NisabBasis:          model.BasisGold,
		NisabThresholdEnc:   []byte("ct-threshold"),
		TotalWealthEnc:      []byte("ct-wealth"),
		TotalLiabilitiesEnc: []byte("ct-liabilities"),
		ZakatableWealthEnc:  []byte("ct-zakatable"),
		ZakatAmountEnc:      []byte("ct-amount"),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func recordRows(row *model.RecordRow) *pgxmock.Rows {
	return pgxmock.NewRows(recordColumnNames).AddRow(
		row.ID, row.UserID, string(row.Status), row.HawlStartDate, row.HawlCompletionDate, string(row.NisabBasis),
		row.NisabThresholdEnc, row.TotalWealthEnc, row.TotalLiabilitiesEnc, row.ZakatableWealthEnc, row.ZakatAmountEnc,
		row.AssetBreakdownEnc, row.UserNotesEnc, row.IsPrimary, row.FinalizedAt, row.CreatedAt, row.UpdatedAt,
	)
}

func TestGetRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	want := sampleRow(userID)

	mock.ExpectQuery(`SELECT (.+) FROM nisab_year_records WHERE id=\$1 AND user_id=\$2`).
		WithArgs(want.ID, userID).
		WillReturnRows(recordRows(want))

	got, err := repo.GetRecord(context.Background(), userID, want.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.ID != want.ID || got.Status != model.StatusDraft || string(got.TotalWealthEnc) != "ct-wealth" {
		t.Errorf("GetRecord = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	recordID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT (.+) FROM nisab_year_records WHERE id=\$1 AND user_id=\$2`).
		WithArgs(recordID, userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetRecord(context.Background(), userID, recordID)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("got %v, want errs.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListRecordsWithFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	row := sampleRow(userID)
	status := model.StatusDraft
	year := 2025

	mock.ExpectQuery(`SELECT (.+) FROM nisab_year_records WHERE user_id=\$1 AND status=\$2 AND EXTRACT\(YEAR FROM hawl_start_date\)=\$3 ORDER BY hawl_start_date DESC`).
		WithArgs(userID, string(status), year).
		WillReturnRows(recordRows(row))

	got, err := repo.ListRecords(context.Background(), userID, repository.ListFilter{Status: &status, Year: &year})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 1 || got[0].ID != row.ID {
		t.Errorf("ListRecords = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunInTransactionCommit(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	row := sampleRow(userID)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO nisab_year_records`).
		WithArgs(
			row.ID, row.UserID, string(row.Status), row.HawlStartDate, row.HawlCompletionDate, string(row.NisabBasis),
			row.NisabThresholdEnc, row.TotalWealthEnc, row.TotalLiabilitiesEnc, row.ZakatableWealthEnc, row.ZakatAmountEnc,
			row.AssetBreakdownEnc, row.UserNotesEnc, row.IsPrimary, row.FinalizedAt, row.CreatedAt, row.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		return tx.SaveRecord(context.Background(), row)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteRecordCascadesTrail(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	recordID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM nisab_year_records WHERE id=\$1 AND user_id=\$2`).
		WithArgs(recordID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM audit_trail_entries WHERE record_id=\$1`).
		WithArgs(recordID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		return tx.DeleteRecord(context.Background(), userID, recordID)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteRecordNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.Must(uuid.NewV4())
	recordID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM nisab_year_records WHERE id=\$1 AND user_id=\$2`).
		WithArgs(recordID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		return tx.DeleteRecord(context.Background(), userID, recordID)
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v, want errs.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLastAuditEntryEmptyTrail(t *testing.T) {
	repo, mock := newMockRepo(t)
	recordID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM audit_trail_entries WHERE record_id=\$1 ORDER BY sequence DESC LIMIT 1`).
		WithArgs(recordID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		e, err := tx.LastAuditEntry(context.Background(), recordID)
		if err != nil {
			return err
		}
		if e != nil {
			t.Errorf("empty trail returned %+v", e)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAppendAudit(t *testing.T) {
	repo, mock := newMockRepo(t)
	recordID := uuid.Must(uuid.NewV4())
	ts := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	entry := &model.AuditEntry{
		RecordID:      recordID,
		Sequence:      2,
		EventType:     model.EventEdited,
		BeforeStatus:  model.StatusDraft,
		AfterStatus:   model.StatusDraft,
		Changes:       []model.FieldChange{{Field: "totalWealth"}},
		Timestamp:     ts,
		IntegrityHash: "deadbeef",
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_trail_entries`).
		WithArgs(
			recordID, int64(2), "EDITED", "DRAFT", "DRAFT",
			[]byte(`[{"field":"totalWealth"}]`), []byte(nil), ts, "deadbeef",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.RunInTransaction(context.Background(), func(tx repository.RecordTx) error {
		return tx.AppendAudit(context.Background(), entry)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListAuditEntries(t *testing.T) {
	repo, mock := newMockRepo(t)
	recordID := uuid.Must(uuid.NewV4())
	ts := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(auditColumnNames).
		AddRow(recordID, int64(1), "CREATED", "", "DRAFT", []byte(nil), []byte(nil), ts, "hash-1").
		AddRow(recordID, int64(2), "FINALIZED", "DRAFT", "FINALIZED", []byte(nil), []byte(nil), ts.Add(time.Hour), "hash-2")

	mock.ExpectQuery(`SELECT (.+) FROM audit_trail_entries WHERE record_id=\$1 ORDER BY sequence ASC`).
		WithArgs(recordID).
		WillReturnRows(rows)

	got, err := repo.ListAuditEntries(context.Background(), recordID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].EventType != model.EventCreated || got[1].Sequence != 2 {
		t.Errorf("entries = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
