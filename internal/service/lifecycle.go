// Package service contains the application service orchestrating the nisab
// year record lifecycle: state machine, Hawl tracking, audit trail, field
// encryption and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/amqadri/nisab-keeper/internal/audit"
	"github.com/amqadri/nisab-keeper/internal/crypto"
	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/hawl"
	"github.com/amqadri/nisab-keeper/internal/limiter"
	"github.com/amqadri/nisab-keeper/internal/model"
	"github.com/amqadri/nisab-keeper/internal/repository"
	"github.com/amqadri/nisab-keeper/internal/statemachine"
)

// LifecycleService defines the record operations exposed to the HTTP layer.
type LifecycleService interface {
	// Create opens a new DRAFT record and derives its Hawl completion date.
	Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*model.NisabYearRecord, error)
	// List returns the user's records matching the filter.
	List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]model.NisabYearRecord, error)
	// GetWithLiveData returns a record with Hawl progress derived from the clock.
	GetWithLiveData(ctx context.Context, userID, recordID uuid.UUID) (*model.NisabYearRecord, *model.LiveTracking, error)
	// Update edits mutable fields of a DRAFT or UNLOCKED record.
	Update(ctx context.Context, userID, recordID uuid.UUID, p UpdateParams) (*model.NisabYearRecord, error)
	// Finalize freezes the record, recomputing the zakat amount at transition time.
	Finalize(ctx context.Context, userID, recordID uuid.UUID, p statemachine.FinalizeParams) (*model.NisabYearRecord, error)
	// Unlock reopens a finalized record for correction, requiring a reason.
	Unlock(ctx context.Context, userID, recordID uuid.UUID, reason, ip string) (*model.NisabYearRecord, error)
	// Delete removes a DRAFT record and its trail.
	Delete(ctx context.Context, userID, recordID uuid.UUID) error
	// RefreshAssets previews the user's current holdings without persisting.
	RefreshAssets(ctx context.Context, userID, recordID uuid.UUID) (*model.AssetPreview, error)
	// GetAuditTrail returns the record's trail with integrity verification.
	GetAuditTrail(ctx context.Context, userID, recordID uuid.UUID) (*model.AuditTrail, error)
}

// LifecycleServiceImpl implements LifecycleService.
type LifecycleServiceImpl struct {
	repo   repository.RecordRepository
	assets repository.AssetSource
	codec  crypto.FieldCodec
	lim    limiter.Limiter
	now    func() time.Time
}

// NewLifecycleService constructs the service. lim may be nil to disable
// unlock throttling (tests).
func NewLifecycleService(repo repository.RecordRepository, assets repository.AssetSource, codec crypto.FieldCodec, lim limiter.Limiter) *LifecycleServiceImpl {
	return &LifecycleServiceImpl{repo: repo, assets: assets, codec: codec, lim: lim, now: time.Now}
}

// CreateParams are the caller-supplied fields for a new record.
type CreateParams struct {
	HawlStartDate         time.Time
	NisabBasis            model.NisabBasis
	NisabThresholdAtStart int64
	UserNotes             string
	IsPrimary             bool
}

// UpdateParams name the mutable fields of an edit. Nil pointers leave the
// field untouched. A non-nil AssetBreakdown commits a new snapshot and
// recomputes the derived totals from it.
type UpdateParams struct {
	TotalWealth      *int64
	TotalLiabilities *int64
	UserNotes        *string
	IsPrimary        *bool
	AssetBreakdown   []model.AssetSnapshot
}

// Create opens a new DRAFT record. Basis and threshold are frozen here; the
// completion date is derived once and never recomputed.
func (s *LifecycleServiceImpl) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*model.NisabYearRecord, error) {
	if userID == uuid.Nil {
		return nil, &errs.ValidationError{Field: "userId", Constraint: "required"}
	}
	if p.HawlStartDate.IsZero() {
		return nil, &errs.ValidationError{Field: "hawlStartDate", Constraint: "required"}
	}
	switch p.NisabBasis {
	case model.BasisGold, model.BasisSilver:
	default:
		return nil, &errs.ValidationError{Field: "nisabBasis", Constraint: "must be GOLD or SILVER"}
	}
	if p.NisabThresholdAtStart < 0 {
		return nil, &errs.ValidationError{Field: "nisabThresholdAtStart", Constraint: "must be non-negative"}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &model.NisabYearRecord{
		ID:                    id,
		UserID:                userID,
		Status:                model.StatusDraft,
		HawlStartDate:         p.HawlStartDate,
		HawlCompletionDate:    hawl.CompletionDate(p.HawlStartDate),
		NisabBasis:            p.NisabBasis,
		NisabThresholdAtStart: p.NisabThresholdAtStart,
		UserNotes:             p.UserNotes,
		IsPrimary:             p.IsPrimary,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = s.repo.RunInTransaction(ctx, func(tx repository.RecordTx) error {
		row, err := encodeRecord(s.codec, rec)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, row); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, model.AuditEntry{
			RecordID:    rec.ID,
			EventType:   model.EventCreated,
			AfterStatus: model.StatusDraft,
			Timestamp:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns decrypted records matching the filter.
func (s *LifecycleServiceImpl) List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]model.NisabYearRecord, error) {
	if userID == uuid.Nil {
		return nil, &errs.ValidationError{Field: "userId", Constraint: "required"}
	}
	rows, err := s.repo.ListRecords(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.NisabYearRecord, 0, len(rows))
	for i := range rows {
		rec, err := decodeRecord(s.codec, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// GetWithLiveData loads a record and derives Hawl progress and the current
// total wealth fresh from the clock and the asset source. Nothing here is
// persisted and no lock is taken.
func (s *LifecycleServiceImpl) GetWithLiveData(ctx context.Context, userID, recordID uuid.UUID) (*model.NisabYearRecord, *model.LiveTracking, error) {
	row, err := s.repo.GetRecord(ctx, userID, recordID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := decodeRecord(s.codec, row)
	if err != nil {
		return nil, nil, err
	}

	assets, err := s.assets.CurrentZakatableAssets(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("asset source: %w", err)
	}
	var currentTotal int64
	for _, a := range assets {
		currentTotal += a.Value
	}

	now := s.now()
	complete := hawl.IsComplete(now, rec.HawlCompletionDate)
	live := &model.LiveTracking{
		DaysElapsed:        hawl.DaysElapsed(now, rec.HawlStartDate),
		DaysRemaining:      hawl.DaysRemaining(now, rec.HawlStartDate),
		IsHawlComplete:     complete,
		CanFinalize:        complete && rec.Status != model.StatusFinalized,
		CurrentTotalWealth: currentTotal,
	}
	return rec, live, nil
}

// Update edits mutable fields inside one transaction: the status guard runs
// against the row-locked state, and the EDITED entry is appended atomically
// with the save. A no-op update returns the record without touching the trail.
func (s *LifecycleServiceImpl) Update(ctx context.Context, userID, recordID uuid.UUID, p UpdateParams) (*model.NisabYearRecord, error) {
	if err := validateUpdate(p); err != nil {
		return nil, err
	}

	var out *model.NisabYearRecord
	err := s.repo.RunInTransaction(ctx, func(tx repository.RecordTx) error {
		rec, err := s.loadForUpdate(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		if err := statemachine.CanUpdate(rec); err != nil {
			return err
		}

		changes := applyUpdate(rec, p)
		if len(changes) == 0 {
			out = rec
			return nil
		}

		now := s.now()
		rec.UpdatedAt = now
		row, err := encodeRecord(s.codec, rec)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, row); err != nil {
			return err
		}
		out = rec
		return s.appendEvent(ctx, tx, model.AuditEntry{
			RecordID:     rec.ID,
			EventType:    model.EventEdited,
			BeforeStatus: rec.Status,
			AfterStatus:  rec.Status,
			Changes:      changes,
			Timestamp:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Finalize freezes the record. The zakat amount is recomputed from the
// zakatable wealth at transition time, not at creation time. Re-finalizing
// after an unlock/edit cycle is legal and appends a second FINALIZED entry.
func (s *LifecycleServiceImpl) Finalize(ctx context.Context, userID, recordID uuid.UUID, p statemachine.FinalizeParams) (*model.NisabYearRecord, error) {
	var out *model.NisabYearRecord
	err := s.repo.RunInTransaction(ctx, func(tx repository.RecordTx) error {
		rec, err := s.loadForUpdate(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := statemachine.CanFinalize(rec, now, p); err != nil {
			return err
		}

		before := rec.Status
		rec.ZakatAmount = zakatDue(rec.ZakatableWealth)
		rec.Status = model.StatusFinalized
		rec.FinalizedAt = &now
		rec.UpdatedAt = now

		row, err := encodeRecord(s.codec, rec)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, row); err != nil {
			return err
		}
		out = rec
		return s.appendEvent(ctx, tx, model.AuditEntry{
			RecordID:     rec.ID,
			EventType:    model.EventFinalized,
			BeforeStatus: before,
			AfterStatus:  model.StatusFinalized,
			Timestamp:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unlock reopens a finalized record. The reason is encrypted before it is
// embedded in the audit entry, so the integrity hash covers ciphertext only.
// Failed attempts count against the unlock limiter for (user, ip).
func (s *LifecycleServiceImpl) Unlock(ctx context.Context, userID, recordID uuid.UUID, reason, ip string) (*model.NisabYearRecord, error) {
	ipHash := limiter.HashIP(ip)
	if s.lim != nil {
		allowed, _, err := s.lim.Allow(ctx, userID, ipHash)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.ErrRateLimited
		}
	}

	var out *model.NisabYearRecord
	err := s.repo.RunInTransaction(ctx, func(tx repository.RecordTx) error {
		rec, err := s.loadForUpdate(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		if err := statemachine.CanUnlock(rec, reason); err != nil {
			return err
		}

		reasonEnc, err := s.codec.Encrypt([]byte(reason))
		if err != nil {
			return fmt.Errorf("encrypt unlock reason: %w", err)
		}

		now := s.now()
		before := rec.Status
		rec.Status = model.StatusUnlocked
		rec.UpdatedAt = now

		row, err := encodeRecord(s.codec, rec)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, row); err != nil {
			return err
		}
		out = rec
		return s.appendEvent(ctx, tx, model.AuditEntry{
			RecordID:        rec.ID,
			EventType:       model.EventUnlocked,
			BeforeStatus:    before,
			AfterStatus:     model.StatusUnlocked,
			UnlockReasonEnc: reasonEnc,
			Timestamp:       now,
		})
	})
	if err != nil {
		// Guard rejections count as failed attempts; the block, if any,
		// applies to the next call. Limiter bookkeeping runs outside the
		// rolled-back transaction.
		if s.lim != nil && (errors.Is(err, errs.ErrStateConflict) || errors.Is(err, errs.ErrValidation)) {
			_, _, _ = s.lim.Failure(ctx, userID, ipHash)
		}
		return nil, err
	}
	if s.lim != nil {
		_ = s.lim.Success(ctx, userID, ipHash)
	}
	return out, nil
}

// Delete removes a DRAFT record and its trail.
func (s *LifecycleServiceImpl) Delete(ctx context.Context, userID, recordID uuid.UUID) error {
	return s.repo.RunInTransaction(ctx, func(tx repository.RecordTx) error {
		rec, err := s.loadForUpdate(ctx, tx, userID, recordID)
		if err != nil {
			return err
		}
		if err := statemachine.CanDelete(rec); err != nil {
			return err
		}
		return tx.DeleteRecord(ctx, userID, recordID)
	})
}

// RefreshAssets previews the user's current holdings with each asset's
// calculation modifier applied. The result is advisory and never persisted;
// committing a snapshot requires a separate Update.
func (s *LifecycleServiceImpl) RefreshAssets(ctx context.Context, userID, recordID uuid.UUID) (*model.AssetPreview, error) {
	row, err := s.repo.GetRecord(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(s.codec, row)
	if err != nil {
		return nil, err
	}
	if err := statemachine.CanRefreshAssets(rec); err != nil {
		return nil, err
	}

	assets, err := s.assets.CurrentZakatableAssets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("asset source: %w", err)
	}

	preview := &model.AssetPreview{Assets: make([]model.AssetSnapshot, 0, len(assets))}
	for _, a := range assets {
		snap := model.AssetSnapshot{
			Name:                a.Name,
			Category:            a.Category,
			Value:               a.Value,
			CalculationModifier: a.CalculationModifier,
			ZakatableValue:      applyModifier(a.Value, a.CalculationModifier),
		}
		preview.Assets = append(preview.Assets, snap)
		preview.TotalWealth += snap.Value
		preview.ZakatableWealth += snap.ZakatableValue
	}
	return preview, nil
}

// GetAuditTrail returns the record's entries with unlock reasons decrypted
// for the owner, plus the integrity verification over the stored chain.
// Verification itself runs on ciphertext and needs no keys.
func (s *LifecycleServiceImpl) GetAuditTrail(ctx context.Context, userID, recordID uuid.UUID) (*model.AuditTrail, error) {
	if _, err := s.repo.GetRecord(ctx, userID, recordID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAuditEntries(ctx, recordID)
	if err != nil {
		return nil, err
	}

	report := audit.Verify(entries)
	for i := range entries {
		if len(entries[i].UnlockReasonEnc) == 0 {
			continue
		}
		plaintext, err := s.codec.Decrypt(entries[i].UnlockReasonEnc)
		if err != nil {
			// Unreadable ciphertext leaves the reason blank. The trail
			// and its integrity report, which flags the tampered
			// sequence, must still reach the caller.
			continue
		}
		entries[i].UnlockReason = string(plaintext)
	}
	return &model.AuditTrail{Entries: entries, Integrity: report}, nil
}

// loadForUpdate row-locks the record and decrypts it, so every guard below
// runs against the freshest status.
func (s *LifecycleServiceImpl) loadForUpdate(ctx context.Context, tx repository.RecordTx, userID, recordID uuid.UUID) (*model.NisabYearRecord, error) {
	row, err := tx.GetRecordForUpdate(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	return decodeRecord(s.codec, row)
}

// appendEvent chains a new entry after the record's current trail head.
func (s *LifecycleServiceImpl) appendEvent(ctx context.Context, tx repository.RecordTx, e model.AuditEntry) error {
	prev, err := tx.LastAuditEntry(ctx, e.RecordID)
	if err != nil {
		return err
	}
	entry, err := audit.NextEntry(prev, e)
	if err != nil {
		return err
	}
	return tx.AppendAudit(ctx, &entry)
}

func validateUpdate(p UpdateParams) error {
	if p.TotalWealth != nil && *p.TotalWealth < 0 {
		return &errs.ValidationError{Field: "totalWealth", Constraint: "must be non-negative"}
	}
	if p.TotalLiabilities != nil && *p.TotalLiabilities < 0 {
		return &errs.ValidationError{Field: "totalLiabilities", Constraint: "must be non-negative"}
	}
	for i := range p.AssetBreakdown {
		if p.AssetBreakdown[i].Value < 0 {
			return &errs.ValidationError{Field: "assetBreakdown", Constraint: fmt.Sprintf("asset[%d] value must be non-negative", i)}
		}
		if p.AssetBreakdown[i].CalculationModifier <= 0 {
			return &errs.ValidationError{Field: "assetBreakdown", Constraint: fmt.Sprintf("asset[%d] modifier must be positive", i)}
		}
	}
	return nil
}

// applyUpdate mutates rec in place and returns the change summary. A
// committed asset snapshot is authoritative: it recomputes the derived
// totals and supersedes any totalWealth scalar supplied alongside it, so the
// summary only names fields whose supplied values took effect.
func applyUpdate(rec *model.NisabYearRecord, p UpdateParams) []model.FieldChange {
	var changes []model.FieldChange
	if p.AssetBreakdown != nil {
		snapshot := make([]model.AssetSnapshot, len(p.AssetBreakdown))
		var totalWealth, zakatable int64
		for i, a := range p.AssetBreakdown {
			a.ZakatableValue = applyModifier(a.Value, a.CalculationModifier)
			snapshot[i] = a
			totalWealth += a.Value
			zakatable += a.ZakatableValue
		}
		rec.AssetBreakdown = snapshot
		rec.TotalWealth = totalWealth
		rec.ZakatableWealth = zakatable
		changes = append(changes, model.FieldChange{Field: "assetBreakdown"})
	} else if p.TotalWealth != nil && *p.TotalWealth != rec.TotalWealth {
		rec.TotalWealth = *p.TotalWealth
		changes = append(changes, model.FieldChange{Field: "totalWealth"})
	}
	if p.TotalLiabilities != nil && *p.TotalLiabilities != rec.TotalLiabilities {
		rec.TotalLiabilities = *p.TotalLiabilities
		changes = append(changes, model.FieldChange{Field: "totalLiabilities"})
	}
	if p.UserNotes != nil && *p.UserNotes != rec.UserNotes {
		rec.UserNotes = *p.UserNotes
		changes = append(changes, model.FieldChange{Field: "userNotes"})
	}
	if p.IsPrimary != nil && *p.IsPrimary != rec.IsPrimary {
		changes = append(changes, model.FieldChange{
			Field: "isPrimary",
			Old:   strconv.FormatBool(rec.IsPrimary),
			New:   strconv.FormatBool(*p.IsPrimary),
		})
		rec.IsPrimary = *p.IsPrimary
	}
	return changes
}

// applyModifier yields a per-asset zakatable value in minor units.
func applyModifier(value int64, modifier float64) int64 {
	return int64(math.Round(float64(value) * modifier))
}

// zakatDue applies the zakat rate; no zakat is due on non-positive wealth.
func zakatDue(zakatableWealth int64) int64 {
	if zakatableWealth <= 0 {
		return 0
	}
	return int64(math.Round(float64(zakatableWealth) * model.ZakatRate))
}
