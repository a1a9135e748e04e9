// Package audit implements the tamper-evident audit trail for nisab year
// records. Entries form an append-only, per-record hash chain: each entry's
// integrity hash covers the previous entry's hash plus a canonical
// serialization of the entry itself, with the first entry chained to a fixed
// seed. The hash covers the unlock reason ciphertext, so verification never
// requires decryption keys.
package audit

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amqadri/nisab-keeper/internal/model"
)

// genesisSeed anchors the first entry of every record's chain. Changing it
// invalidates all existing trails.
const genesisSeed = "nisab-keeper/audit-chain/v1"

// hashPayload is the canonical serialization covered by the integrity hash.
// Field order and formats are part of the on-disk contract.
type hashPayload struct {
	RecordID        string              `json:"recordId"`
	Sequence        int64               `json:"sequence"`
	EventType       string              `json:"eventType"`
	BeforeStatus    string              `json:"beforeStatus"`
	AfterStatus     string              `json:"afterStatus"`
	Changes         []model.FieldChange `json:"changes,omitempty"`
	UnlockReasonEnc string              `json:"unlockReasonEnc,omitempty"`
	Timestamp       string              `json:"timestamp"`
}

// ComputeHash returns the integrity hash for an entry chained after prevHash.
func ComputeHash(prevHash string, e *model.AuditEntry) (string, error) {
	payload, err := json.Marshal(hashPayload{
		RecordID:        e.RecordID.String(),
		Sequence:        e.Sequence,
		EventType:       string(e.EventType),
		BeforeStatus:    string(e.BeforeStatus),
		AfterStatus:     string(e.AfterStatus),
		Changes:         e.Changes,
		UnlockReasonEnc: base64.StdEncoding.EncodeToString(e.UnlockReasonEnc),
		Timestamp:       e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("serialize audit entry: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NextEntry assigns the sequence number and integrity hash that chain e
// after prev. prev is nil for a record's first entry.
func NextEntry(prev *model.AuditEntry, e model.AuditEntry) (model.AuditEntry, error) {
	prevHash := genesisSeed
	e.Sequence = 1
	if prev != nil {
		prevHash = prev.IntegrityHash
		e.Sequence = prev.Sequence + 1
	}
	hash, err := ComputeHash(prevHash, &e)
	if err != nil {
		return model.AuditEntry{}, err
	}
	e.IntegrityHash = hash
	return e, nil
}

// Verify walks entries in sequence order, recomputes each hash against the
// stored chain, and reports the sequences where the recomputed hash differs
// from the stored one. Entries must be sorted by sequence ascending.
func Verify(entries []model.AuditEntry) model.IntegrityReport {
	report := model.IntegrityReport{IsValid: true, EntriesChecked: len(entries)}
	prevHash := genesisSeed
	for i := range entries {
		e := &entries[i]
		want, err := ComputeHash(prevHash, e)
		if err != nil || want != e.IntegrityHash {
			report.Issues = append(report.Issues, e.Sequence)
		}
		// Chain on the stored hash so a single tampered entry flags only
		// its own sequence, while a rewritten hash also breaks its successor.
		prevHash = e.IntegrityHash
	}
	report.IsValid = len(report.Issues) == 0
	return report
}
