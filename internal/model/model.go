// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// RecordStatus describes the lifecycle state of a nisab year record.
type RecordStatus string

const (
	StatusDraft     RecordStatus = "DRAFT"
	StatusFinalized RecordStatus = "FINALIZED"
	StatusUnlocked  RecordStatus = "UNLOCKED"
)

// NisabBasis is the metal the nisab threshold was valued against at creation.
type NisabBasis string

const (
	BasisGold   NisabBasis = "GOLD"
	BasisSilver NisabBasis = "SILVER"
)

// ZakatRate is the fraction of zakatable wealth owed when a record is finalized.
const ZakatRate = 0.025

// AssetSnapshot is one asset frozen into a record's breakdown. Values are
// minor currency units; ZakatableValue = round(Value * CalculationModifier).
type AssetSnapshot struct {
	Name                string  `json:"name"`
	Category            string  `json:"category"`
	Value               int64   `json:"value"`
	CalculationModifier float64 `json:"calculationModifier"`
	ZakatableValue      int64   `json:"zakatableValue"`
}

// NisabYearRecord is one Hawl observation cycle for one user.
// The Hawl dates, basis and threshold are fixed at creation and never change.
type NisabYearRecord struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Status                RecordStatus
	HawlStartDate         time.Time
	HawlCompletionDate    time.Time
	NisabBasis            NisabBasis
	NisabThresholdAtStart int64
	TotalWealth           int64
	TotalLiabilities      int64
	ZakatableWealth       int64
	ZakatAmount           int64
	AssetBreakdown        []AssetSnapshot
	IsPrimary             bool
	FinalizedAt           *time.Time // nil unless the record has ever been finalized
	UserNotes             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RecordRow is the at-rest layout of a record. Sensitive fields are stored as
// field-codec ciphertext; only the columns needed for querying stay plaintext.
type RecordRow struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	Status              RecordStatus
	HawlStartDate       time.Time
	HawlCompletionDate  time.Time
	NisabBasis          NisabBasis
	NisabThresholdEnc   []byte
	TotalWealthEnc      []byte
	TotalLiabilitiesEnc []byte
	ZakatableWealthEnc  []byte
	ZakatAmountEnc      []byte
	AssetBreakdownEnc   []byte
	UserNotesEnc        []byte
	IsPrimary           bool
	FinalizedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LiveTracking carries Hawl progress derived fresh from the clock on every
// read. It is never persisted.
type LiveTracking struct {
	DaysElapsed        int   `json:"daysElapsed"`
	DaysRemaining      int   `json:"daysRemaining"`
	IsHawlComplete     bool  `json:"isHawlComplete"`
	CanFinalize        bool  `json:"canFinalize"`
	CurrentTotalWealth int64 `json:"currentTotalWealth"`
}

// AuditEventType tags a lifecycle event in the audit trail.
type AuditEventType string

const (
	EventCreated   AuditEventType = "CREATED"
	EventEdited    AuditEventType = "EDITED"
	EventFinalized AuditEventType = "FINALIZED"
	EventUnlocked  AuditEventType = "UNLOCKED"
)

// FieldChange names one field delta in an EDITED entry. Old/New are only
// populated for non-sensitive fields; encrypted values never appear in the
// trail as plaintext.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// AuditEntry is one immutable record of a lifecycle event, owned exclusively
// by the record it describes. UnlockReasonEnc is codec ciphertext and is what
// the integrity hash covers; UnlockReason is decrypted on authorized reads
// only and never persisted.
type AuditEntry struct {
	RecordID        uuid.UUID
	Sequence        int64
	EventType       AuditEventType
	BeforeStatus    RecordStatus // empty on CREATED
	AfterStatus     RecordStatus
	Changes         []FieldChange
	UnlockReasonEnc []byte
	UnlockReason    string
	Timestamp       time.Time
	IntegrityHash   string
}

// Asset is a current zakatable holding as reported by the asset source.
type Asset struct {
	ID                  uuid.UUID
	Name                string
	Category            string
	Value               int64
	CalculationModifier float64
}

// AssetPreview is the non-persisted result of an asset refresh.
type AssetPreview struct {
	Assets          []AssetSnapshot `json:"assets"`
	TotalWealth     int64           `json:"totalWealth"`
	ZakatableWealth int64           `json:"zakatableWealth"`
}

// IntegrityReport is the result of walking a record's hash chain.
type IntegrityReport struct {
	IsValid        bool    `json:"isValid"`
	Issues         []int64 `json:"issues,omitempty"` // sequences with hash mismatches
	EntriesChecked int     `json:"entriesChecked"`
}

// AuditTrail bundles a record's entries with their integrity verification.
type AuditTrail struct {
	Entries   []AuditEntry
	Integrity IntegrityReport
}
