package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/model"
)

type recordResponse struct {
	ID                    string                `json:"id"`
	UserID                string                `json:"userId"`
	Status                string                `json:"status"`
	HawlStartDate         string                `json:"hawlStartDate"`
	HawlCompletionDate    string                `json:"hawlCompletionDate"`
	NisabBasis            string                `json:"nisabBasis"`
	NisabThresholdAtStart int64                 `json:"nisabThresholdAtStart"`
	TotalWealth           int64                 `json:"totalWealth"`
	TotalLiabilities      int64                 `json:"totalLiabilities"`
	ZakatableWealth       int64                 `json:"zakatableWealth"`
	ZakatAmount           int64                 `json:"zakatAmount"`
	AssetBreakdown        []model.AssetSnapshot `json:"assetBreakdown,omitempty"`
	IsPrimary             bool                  `json:"isPrimary"`
	FinalizedAt           *time.Time            `json:"finalizedAt,omitempty"`
	UserNotes             string                `json:"userNotes,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
	LiveTracking          *model.LiveTracking   `json:"liveTracking,omitempty"`
}

func toRecordResponse(rec *model.NisabYearRecord, live *model.LiveTracking) recordResponse {
	return recordResponse{
		ID:                    rec.ID.String(),
		UserID:                rec.UserID.String(),
		Status:                string(rec.Status),
		HawlStartDate:         rec.HawlStartDate.Format(time.DateOnly),
		HawlCompletionDate:    rec.HawlCompletionDate.Format(time.DateOnly),
		NisabBasis:            string(rec.NisabBasis),
		NisabThresholdAtStart: rec.NisabThresholdAtStart,
		TotalWealth:           rec.TotalWealth,
		TotalLiabilities:      rec.TotalLiabilities,
		ZakatableWealth:       rec.ZakatableWealth,
		ZakatAmount:           rec.ZakatAmount,
		AssetBreakdown:        rec.AssetBreakdown,
		IsPrimary:             rec.IsPrimary,
		FinalizedAt:           rec.FinalizedAt,
		UserNotes:             rec.UserNotes,
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
		LiveTracking:          live,
	}
}

type auditEntryResponse struct {
	Sequence      int64               `json:"sequence"`
	EventType     string              `json:"eventType"`
	BeforeStatus  string              `json:"beforeStatus,omitempty"`
	AfterStatus   string              `json:"afterStatus"`
	Changes       []model.FieldChange `json:"changes,omitempty"`
	UnlockReason  string              `json:"unlockReason,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	IntegrityHash string              `json:"integrityHash"`
}

type auditTrailResponse struct {
	Entries   []auditEntryResponse  `json:"entries"`
	Integrity model.IntegrityReport `json:"integrity"`
}

func toAuditTrailResponse(trail *model.AuditTrail) auditTrailResponse {
	out := auditTrailResponse{
		Entries:   make([]auditEntryResponse, 0, len(trail.Entries)),
		Integrity: trail.Integrity,
	}
	for _, e := range trail.Entries {
		out.Entries = append(out.Entries, auditEntryResponse{
			Sequence:      e.Sequence,
			EventType:     string(e.EventType),
			BeforeStatus:  string(e.BeforeStatus),
			AfterStatus:   string(e.AfterStatus),
			Changes:       e.Changes,
			UnlockReason:  e.UnlockReason,
			Timestamp:     e.Timestamp,
			IntegrityHash: e.IntegrityHash,
		})
	}
	return out
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	Status        string `json:"status,omitempty"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode response", zap.Error(err))
	}
}

func writeErrorBody(w http.ResponseWriter, log *zap.Logger, status int, body errorBody) {
	writeJSON(w, log, status, errorResponse{Error: body})
}

// writeError maps service errors onto the HTTP error contract. NotFound and
// foreign-owner access share one response so record existence never leaks.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var validation *errs.ValidationError
	var conflict *errs.StateConflictError
	var incomplete *errs.HawlIncompleteError
	var notAllowed *errs.DeleteNotAllowedError

	switch {
	case errors.Is(err, errs.ErrRateLimited):
		writeErrorBody(w, log, http.StatusTooManyRequests, errorBody{
			Code: "RATE_LIMITED", Message: "too many unlock attempts, try again later",
		})
	case errors.Is(err, errs.ErrNotFound):
		writeErrorBody(w, log, http.StatusNotFound, errorBody{
			Code: "NOT_FOUND", Message: "record not found",
		})
	case errors.As(err, &incomplete):
		days := incomplete.DaysRemaining
		writeErrorBody(w, log, http.StatusBadRequest, errorBody{
			Code: "HAWL_INCOMPLETE", Message: err.Error(), DaysRemaining: &days,
		})
	case errors.As(err, &validation):
		writeErrorBody(w, log, http.StatusBadRequest, errorBody{
			Code: "VALIDATION_ERROR", Message: err.Error(), Field: validation.Field,
		})
	case errors.Is(err, errs.ErrValidation):
		writeErrorBody(w, log, http.StatusBadRequest, errorBody{
			Code: "VALIDATION_ERROR", Message: err.Error(),
		})
	case errors.As(err, &notAllowed):
		writeErrorBody(w, log, http.StatusConflict, errorBody{
			Code: "DELETE_NOT_ALLOWED", Message: err.Error(), Status: notAllowed.Status,
		})
	case errors.As(err, &conflict):
		writeErrorBody(w, log, http.StatusConflict, errorBody{
			Code: "INVALID_STATE", Message: err.Error(), Status: conflict.Status,
		})
	case errors.Is(err, errs.ErrStateConflict):
		writeErrorBody(w, log, http.StatusConflict, errorBody{
			Code: "INVALID_STATE", Message: err.Error(),
		})
	default:
		log.Error("internal error", zap.Error(err))
		writeErrorBody(w, log, http.StatusInternalServerError, errorBody{
			Code: "INTERNAL", Message: "internal server error",
		})
	}
}
