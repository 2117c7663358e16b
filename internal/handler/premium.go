package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/export"
	"github.com/segyhp/premium-engine/internal/logging"
	"github.com/segyhp/premium-engine/internal/tariff"
	"github.com/segyhp/premium-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PremiumService is the part of the service layer the HTTP surface needs.
type PremiumService interface {
	Calculate(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error)
	Recalculate(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.CalculationResult, error)
	ApplyOverrides(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.Quote, error)
	GenerateSchedule(ctx context.Context, quoteID uuid.UUID, request domain.GenerateScheduleRequest) (*domain.ScheduleResponse, error)
	GetSchedule(ctx context.Context, quoteID uuid.UUID) (*domain.ScheduleResponse, error)
	PatchInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, patch domain.InstallmentPatch) (*domain.PaymentInstallment, error)
	PatchInstallments(ctx context.Context, quoteID uuid.UUID, edits []domain.InstallmentEdit) (*domain.ScheduleResponse, error)
	AddInstallment(ctx context.Context, quoteID uuid.UUID, values domain.NewInstallment) (*domain.ScheduleResponse, error)
	DeleteInstallments(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID) (*domain.ScheduleResponse, error)
	EmitInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error)
	EmitNextInstallment(ctx context.Context, quoteID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error)
	RecordPayment(ctx context.Context, quoteID, installmentID uuid.UUID, request domain.RecordPaymentRequest) (*domain.PaymentInstallment, error)
	CancelInstallment(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PaymentInstallment, error)
	PremiumCall(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PremiumCallResponse, error)
	MarkOverdue(ctx context.Context) (*domain.OverdueResponse, error)
	LookupActivity(code string) (tariff.Activity, error)
	Activities() []tariff.Activity
}

type PremiumHandler struct {
	service   PremiumService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewPremiumHandler(service PremiumService, logger *zap.Logger) *PremiumHandler {
	return &PremiumHandler{
		service:   service,
		validator: newValidator(),
		logger:    logger,
	}
}

// Calculate handles GET /quotes/{quoteId}/premium
func (h *PremiumHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Calculate(r.Context(), quoteID)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, result)
}

// Recalculate handles POST /quotes/{quoteId}/premium/preview
func (h *PremiumHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.RecalculateRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	result, err := h.service.Recalculate(r.Context(), quoteID, request.Overrides)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, result)
}

// ApplyOverrides handles PATCH /quotes/{quoteId}/form-data
func (h *PremiumHandler) ApplyOverrides(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.RecalculateRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	quote, err := h.service.ApplyOverrides(r.Context(), quoteID, request.Overrides)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, quote)
}

// GenerateSchedule handles POST /quotes/{quoteId}/schedule
func (h *PremiumHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.GenerateScheduleRequest
	if !h.bind(w, r, &request, true) {
		return
	}

	schedule, err := h.service.GenerateSchedule(r.Context(), quoteID, request)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Created(w, schedule)
}

// GetSchedule handles GET /quotes/{quoteId}/schedule
func (h *PremiumHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), quoteID)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, schedule)
}

// ExportSchedule handles GET /quotes/{quoteId}/schedule.xlsx
func (h *PremiumHandler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), quoteID)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}

	// render fully before writing headers so a failure can still become JSON
	var buf bytes.Buffer
	if err := export.WriteSchedule(&buf, schedule.Installments); err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(quoteID.String())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("writing schedule export", logging.QuoteID(quoteID), zap.Error(err))
	}
}

// PatchInstallments handles PATCH /quotes/{quoteId}/installments
func (h *PremiumHandler) PatchInstallments(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.PatchInstallmentsRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	schedule, err := h.service.PatchInstallments(r.Context(), quoteID, request.Edits)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, schedule)
}

// PatchInstallment handles PATCH /quotes/{quoteId}/installments/{installmentId}
func (h *PremiumHandler) PatchInstallment(w http.ResponseWriter, r *http.Request) {
	quoteID, installmentID, ok := h.installmentIDs(w, r)
	if !ok {
		return
	}

	var patch domain.InstallmentPatch
	if !h.bind(w, r, &patch, false) {
		return
	}

	installment, err := h.service.PatchInstallment(r.Context(), quoteID, installmentID, patch)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID), logging.InstallmentID(installmentID)), err)
		return
	}
	response.Success(w, installment)
}

// AddInstallment handles POST /quotes/{quoteId}/installments
func (h *PremiumHandler) AddInstallment(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var values domain.NewInstallment
	if !h.bind(w, r, &values, false) {
		return
	}

	schedule, err := h.service.AddInstallment(r.Context(), quoteID, values)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Created(w, schedule)
}

// DeleteInstallments handles DELETE /quotes/{quoteId}/installments
func (h *PremiumHandler) DeleteInstallments(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.DeleteInstallmentsRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	schedule, err := h.service.DeleteInstallments(r.Context(), quoteID, request.IDs)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, schedule)
}

// EmitInstallment handles POST /quotes/{quoteId}/installments/{installmentId}/emit
func (h *PremiumHandler) EmitInstallment(w http.ResponseWriter, r *http.Request) {
	quoteID, installmentID, ok := h.installmentIDs(w, r)
	if !ok {
		return
	}

	var request domain.EmitInstallmentRequest
	if !h.bind(w, r, &request, true) {
		return
	}

	installment, err := h.service.EmitInstallment(r.Context(), quoteID, installmentID, request.EmissionDate)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID), logging.InstallmentID(installmentID)), err)
		return
	}
	response.Success(w, installment)
}

// EmitNextInstallment handles POST /quotes/{quoteId}/installments/next/emit
func (h *PremiumHandler) EmitNextInstallment(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return
	}

	var request domain.EmitInstallmentRequest
	if !h.bind(w, r, &request, true) {
		return
	}

	installment, err := h.service.EmitNextInstallment(r.Context(), quoteID, request.EmissionDate)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID)), err)
		return
	}
	response.Success(w, installment)
}

// RecordPayment handles POST /quotes/{quoteId}/installments/{installmentId}/payment
func (h *PremiumHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	quoteID, installmentID, ok := h.installmentIDs(w, r)
	if !ok {
		return
	}

	var request domain.RecordPaymentRequest
	if !h.bind(w, r, &request, false) {
		return
	}

	installment, err := h.service.RecordPayment(r.Context(), quoteID, installmentID, request)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID), logging.InstallmentID(installmentID)), err)
		return
	}
	response.Success(w, installment)
}

// CancelInstallment handles POST /quotes/{quoteId}/installments/{installmentId}/cancel
func (h *PremiumHandler) CancelInstallment(w http.ResponseWriter, r *http.Request) {
	quoteID, installmentID, ok := h.installmentIDs(w, r)
	if !ok {
		return
	}

	installment, err := h.service.CancelInstallment(r.Context(), quoteID, installmentID)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID), logging.InstallmentID(installmentID)), err)
		return
	}
	response.Success(w, installment)
}

// PremiumCall handles GET /quotes/{quoteId}/installments/{installmentId}/premium-call
func (h *PremiumHandler) PremiumCall(w http.ResponseWriter, r *http.Request) {
	quoteID, installmentID, ok := h.installmentIDs(w, r)
	if !ok {
		return
	}

	call, err := h.service.PremiumCall(r.Context(), quoteID, installmentID)
	if err != nil {
		writeError(w, h.logger.With(logging.QuoteID(quoteID), logging.InstallmentID(installmentID)), err)
		return
	}
	response.Success(w, call)
}

// MarkOverdue handles POST /installments/overdue
func (h *PremiumHandler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MarkOverdue(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, result)
}

// Activities handles GET /activities
func (h *PremiumHandler) Activities(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.service.Activities())
}

// LookupActivity handles GET /activities/{code}
func (h *PremiumHandler) LookupActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.LookupActivity(mux.Vars(r)["code"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, activity)
}

func (h *PremiumHandler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["quoteId"])
	if err != nil {
		response.BadRequest(w, "Invalid quote ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PremiumHandler) installmentIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	quoteID, ok := h.quoteID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	installmentID, err := uuid.Parse(mux.Vars(r)["installmentId"])
	if err != nil {
		response.BadRequest(w, "Invalid installment ID", err)
		return uuid.Nil, uuid.Nil, false
	}
	return quoteID, installmentID, true
}

// bind decodes the body into dst and validates it. Numbers inside free-form
// maps stay json.Number so decimals keep their exact text.
func (h *PremiumHandler) bind(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Unable to read request body", err)
		return false
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if !allowEmpty {
			response.BadRequest(w, "Request body is required", nil)
			return false
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(dst); err != nil {
			response.BadRequest(w, "Invalid request body", err)
			return false
		}
	}

	if err := h.validator.Struct(dst); err != nil {
		writeError(w, h.logger, violations(err))
		return false
	}
	return true
}
