// Package httpserver exposes the record lifecycle over a JSON REST API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/amqadri/nisab-keeper/internal/errs"
	"github.com/amqadri/nisab-keeper/internal/model"
	"github.com/amqadri/nisab-keeper/internal/repository"
	"github.com/amqadri/nisab-keeper/internal/service"
	"github.com/amqadri/nisab-keeper/internal/statemachine"
)

// Handler implements the HTTP handlers of the record API.
type Handler struct {
	svc    service.LifecycleService
	logger *zap.Logger
	auth   *Auth
}

// NewHandler constructs the HTTP handler set.
func NewHandler(svc service.LifecycleService, logger *zap.Logger, auth *Auth) *Handler {
	return &Handler{svc: svc, logger: logger, auth: auth}
}

type createRequest struct {
	HawlStartDate         string `json:"hawlStartDate"`
	NisabBasis            string `json:"nisabBasis"`
	NisabThresholdAtStart int64  `json:"nisabThresholdAtStart"`
	UserNotes             string `json:"userNotes"`
	IsPrimary             bool   `json:"isPrimary"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &errs.ValidationError{Field: "body", Constraint: "invalid JSON"})
		return
	}
	start, err := time.Parse(time.DateOnly, req.HawlStartDate)
	if err != nil {
		writeError(w, h.logger, &errs.ValidationError{Field: "hawlStartDate", Constraint: "must be a YYYY-MM-DD date"})
		return
	}

	rec, err := h.svc.Create(r.Context(), userID, service.CreateParams{
		HawlStartDate:         start,
		NisabBasis:            model.NisabBasis(req.NisabBasis),
		NisabThresholdAtStart: req.NisabThresholdAtStart,
		UserNotes:             req.UserNotes,
		IsPrimary:             req.IsPrimary,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, toRecordResponse(rec, nil))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var filter repository.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.RecordStatus(s)
		switch status {
		case model.StatusDraft, model.StatusFinalized, model.StatusUnlocked:
			filter.Status = &status
		default:
			writeError(w, h.logger, &errs.ValidationError{Field: "status", Constraint: "must be DRAFT, FINALIZED or UNLOCKED"})
			return
		}
	}
	if s := r.URL.Query().Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, h.logger, &errs.ValidationError{Field: "year", Constraint: "must be a number"})
			return
		}
		filter.Year = &year
	}

	recs, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toRecordResponse(&recs[i], nil))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	rec, live, err := h.svc.GetWithLiveData(r.Context(), userID, recordID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toRecordResponse(rec, live))
}

type updateRequest struct {
	TotalWealth      *int64                `json:"totalWealth"`
	TotalLiabilities *int64                `json:"totalLiabilities"`
	UserNotes        *string               `json:"userNotes"`
	IsPrimary        *bool                 `json:"isPrimary"`
	AssetBreakdown   []model.AssetSnapshot `json:"assetBreakdown"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &errs.ValidationError{Field: "body", Constraint: "invalid JSON"})
		return
	}

	rec, err := h.svc.Update(r.Context(), userID, recordID, service.UpdateParams{
		TotalWealth:      req.TotalWealth,
		TotalLiabilities: req.TotalLiabilities,
		UserNotes:        req.UserNotes,
		IsPrimary:        req.IsPrimary,
		AssetBreakdown:   req.AssetBreakdown,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toRecordResponse(rec, nil))
}

type finalizeRequest struct {
	Override             bool `json:"override"`
	AcknowledgePremature bool `json:"acknowledgePremature"`
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, &errs.ValidationError{Field: "body", Constraint: "invalid JSON"})
			return
		}
	}

	rec, err := h.svc.Finalize(r.Context(), userID, recordID, statemachine.FinalizeParams{
		Override:             req.Override,
		AcknowledgePremature: req.AcknowledgePremature,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toRecordResponse(rec, nil))
}

type unlockRequest struct {
	UnlockReason string `json:"unlockReason"`
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, &errs.ValidationError{Field: "body", Constraint: "invalid JSON"})
		return
	}

	rec, err := h.svc.Unlock(r.Context(), userID, recordID, req.UnlockReason, r.RemoteAddr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toRecordResponse(rec, nil))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, recordID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refreshAssets(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	preview, err := h.svc.RefreshAssets(r.Context(), userID, recordID)
	if err != nil {
		// The refresh guard surfaces as a 400 INVALID_STATUS, not a 409.
		var conflict *errs.StateConflictError
		if errors.As(err, &conflict) {
			writeErrorBody(w, h.logger, http.StatusBadRequest, errorBody{
				Code: "INVALID_STATUS", Message: "asset refresh is only valid for DRAFT records", Status: conflict.Status,
			})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, preview)
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	userID, recordID, ok := h.requestIDs(w, r)
	if !ok {
		return
	}
	trail, err := h.svc.GetAuditTrail(r.Context(), userID, recordID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !trail.Integrity.IsValid {
		// Tampering alert: surfaced in the payload and loudly in the logs.
		h.logger.Error("audit chain verification failed",
			zap.String("recordID", recordID.String()),
			zap.Int64s("sequences", trail.Integrity.Issues),
		)
	}
	writeJSON(w, h.logger, http.StatusOK, toAuditTrailResponse(trail))
}

// requestIDs extracts the authenticated user and the record path parameter.
func (h *Handler) requestIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	recordID, err := uuid.FromString(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, h.logger, &errs.ValidationError{Field: "recordId", Constraint: "must be a UUID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, recordID, true
}
