package service

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/amqadri/nisab-keeper/internal/crypto"
	"github.com/amqadri/nisab-keeper/internal/model"
)

// encodeRecord produces the at-rest row: every sensitive scalar and the asset
// breakdown JSON pass through the field codec; querying columns stay plain.
func encodeRecord(codec crypto.FieldCodec, rec *model.NisabYearRecord) (*model.RecordRow, error) {
	row := &model.RecordRow{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		Status:             rec.Status,
		HawlStartDate:      rec.HawlStartDate,
		HawlCompletionDate: rec.HawlCompletionDate,
		NisabBasis:         rec.NisabBasis,
		IsPrimary:          rec.IsPrimary,
		FinalizedAt:        rec.FinalizedAt,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}

	var err error
	if row.NisabThresholdEnc, err = encryptInt(codec, rec.NisabThresholdAtStart); err != nil {
		return nil, fmt.Errorf("encrypt nisab threshold: %w", err)
	}
	if row.TotalWealthEnc, err = encryptInt(codec, rec.TotalWealth); err != nil {
		return nil, fmt.Errorf("encrypt total wealth: %w", err)
	}
	if row.TotalLiabilitiesEnc, err = encryptInt(codec, rec.TotalLiabilities); err != nil {
		return nil, fmt.Errorf("encrypt total liabilities: %w", err)
	}
	if row.ZakatableWealthEnc, err = encryptInt(codec, rec.ZakatableWealth); err != nil {
		return nil, fmt.Errorf("encrypt zakatable wealth: %w", err)
	}
	if row.ZakatAmountEnc, err = encryptInt(codec, rec.ZakatAmount); err != nil {
		return nil, fmt.Errorf("encrypt zakat amount: %w", err)
	}
	if len(rec.AssetBreakdown) > 0 {
		blob, err := json.Marshal(rec.AssetBreakdown)
		if err != nil {
			return nil, fmt.Errorf("marshal asset breakdown: %w", err)
		}
		if row.AssetBreakdownEnc, err = codec.Encrypt(blob); err != nil {
			return nil, fmt.Errorf("encrypt asset breakdown: %w", err)
		}
	}
	if rec.UserNotes != "" {
		if row.UserNotesEnc, err = codec.Encrypt([]byte(rec.UserNotes)); err != nil {
			return nil, fmt.Errorf("encrypt user notes: %w", err)
		}
	}
	return row, nil
}

// decodeRecord reverses encodeRecord. Codec failures propagate as fatal read
// errors for the record; no repair is attempted.
func decodeRecord(codec crypto.FieldCodec, row *model.RecordRow) (*model.NisabYearRecord, error) {
	rec := &model.NisabYearRecord{
		ID:                 row.ID,
		UserID:             row.UserID,
		Status:             row.Status,
		HawlStartDate:      row.HawlStartDate,
		HawlCompletionDate: row.HawlCompletionDate,
		NisabBasis:         row.NisabBasis,
		IsPrimary:          row.IsPrimary,
		FinalizedAt:        row.FinalizedAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}

	var err error
	if rec.NisabThresholdAtStart, err = decryptInt(codec, row.NisabThresholdEnc); err != nil {
		return nil, fmt.Errorf("decrypt nisab threshold: %w", err)
	}
	if rec.TotalWealth, err = decryptInt(codec, row.TotalWealthEnc); err != nil {
		return nil, fmt.Errorf("decrypt total wealth: %w", err)
	}
	if rec.TotalLiabilities, err = decryptInt(codec, row.TotalLiabilitiesEnc); err != nil {
		return nil, fmt.Errorf("decrypt total liabilities: %w", err)
	}
	if rec.ZakatableWealth, err = decryptInt(codec, row.ZakatableWealthEnc); err != nil {
		return nil, fmt.Errorf("decrypt zakatable wealth: %w", err)
	}
	if rec.ZakatAmount, err = decryptInt(codec, row.ZakatAmountEnc); err != nil {
		return nil, fmt.Errorf("decrypt zakat amount: %w", err)
	}
	if len(row.AssetBreakdownEnc) > 0 {
		blob, err := codec.Decrypt(row.AssetBreakdownEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt asset breakdown: %w", err)
		}
		if err := json.Unmarshal(blob, &rec.AssetBreakdown); err != nil {
			return nil, fmt.Errorf("unmarshal asset breakdown: %w", err)
		}
	}
	if len(row.UserNotesEnc) > 0 {
		notes, err := codec.Decrypt(row.UserNotesEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt user notes: %w", err)
		}
		rec.UserNotes = string(notes)
	}
	return rec, nil
}

func encryptInt(codec crypto.FieldCodec, v int64) ([]byte, error) {
	return codec.Encrypt([]byte(strconv.FormatInt(v, 10)))
}

func decryptInt(codec crypto.FieldCodec, ciphertext []byte) (int64, error) {
	plaintext, err := codec.Decrypt(ciphertext)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(plaintext), 10, 64)
}
