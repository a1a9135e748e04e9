// Package statemachine enforces the legal lifecycle transitions of a nisab
// year record and the business rules gating each one. All checks are pure;
// callers apply mutations only after a guard passes.
package statemachine

import (
	"time"
	"unicode/utf8"

	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/hawl"
	"github.com/amqadri/nisab-keeper/internal/model"
)

// Unlock reason length bounds, in characters.
const (
	MinUnlockReasonLen = 10
	MaxUnlockReasonLen = 500
)

// FinalizeParams are the caller-supplied escape hatches for an early finalize.
// Both must be set for a finalize before the Hawl completion date.
type FinalizeParams struct {
	Override             bool
	AcknowledgePremature bool
}

// CanFinalize checks the DRAFT/UNLOCKED -> FINALIZED guard at the given time.
func CanFinalize(rec *model.NisabYearRecord, now time.Time, p FinalizeParams) error {
	switch rec.Status {
	case model.StatusDraft, model.StatusUnlocked:
	default:
		return &errs.StateConflictError{Status: string(rec.Status), Operation: "finalize"}
	}
	if hawl.IsComplete(now, rec.HawlCompletionDate) {
		return nil
	}
	if p.Override && p.AcknowledgePremature {
		return nil
	}
	return &errs.HawlIncompleteError{DaysRemaining: hawl.DaysRemaining(now, rec.HawlStartDate)}
}

// CanUnlock checks the FINALIZED -> UNLOCKED guard, including the reason
// length bounds. Reason validation runs first so callers get the more
// specific error even when the status is also wrong.
func CanUnlock(rec *model.NisabYearRecord, reason string) error {
	if n := utf8.RuneCountInString(reason); n < MinUnlockReasonLen {
		return &errs.ValidationError{Field: "unlockReason", Constraint: "must be at least 10 characters"}
	} else if n > MaxUnlockReasonLen {
		return &errs.ValidationError{Field: "unlockReason", Constraint: "must be at most 500 characters"}
	}
	if rec.Status != model.StatusFinalized {
		return &errs.StateConflictError{Status: string(rec.Status), Operation: "unlock"}
	}
	return nil
}

// CanUpdate checks the edit guard. Once finalized, financial values are
// frozen until explicitly unlocked.
func CanUpdate(rec *model.NisabYearRecord) error {
	if rec.Status == model.StatusFinalized {
		return &errs.StateConflictError{Status: string(rec.Status), Operation: "update"}
	}
	return nil
}

// CanDelete checks that deletion is only reachable from DRAFT.
func CanDelete(rec *model.NisabYearRecord) error {
	if rec.Status != model.StatusDraft {
		return &errs.DeleteNotAllowedError{Status: string(rec.Status)}
	}
	return nil
}

// CanRefreshAssets checks that asset refresh previews are only available
// while the record is still a draft.
func CanRefreshAssets(rec *model.NisabYearRecord) error {
	if rec.Status != model.StatusDraft {
		return &errs.StateConflictError{Status: string(rec.Status), Operation: "refresh assets for"}
	}
	return nil
}
