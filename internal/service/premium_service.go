package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/premium-engine/internal/cache"
	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/engine"
	"github.com/segyhp/premium-engine/internal/logging"
	"github.com/segyhp/premium-engine/internal/mapping"
	"github.com/segyhp/premium-engine/internal/repository"
	"github.com/segyhp/premium-engine/internal/schedule"
	"github.com/segyhp/premium-engine/internal/tariff"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PremiumService struct {
	ProductRepo     repository.ProductRepository
	QuoteRepo       repository.QuoteRepository
	CalculationRepo repository.CalculationRepository
	InstallmentRepo repository.InstallmentRepository
	engine          *engine.Engine
	cache           cache.ResultCache
	logger          *zap.Logger
	now             func() time.Time
}

func NewPremiumService(
	productRepo repository.ProductRepository,
	quoteRepo repository.QuoteRepository,
	calculationRepo repository.CalculationRepository,
	installmentRepo repository.InstallmentRepository,
	engine *engine.Engine,
	resultCache cache.ResultCache,
	logger *zap.Logger,
) *PremiumService {
	if resultCache == nil {
		resultCache = cache.Noop()
	}
	return &PremiumService{
		ProductRepo:     productRepo,
		QuoteRepo:       quoteRepo,
		CalculationRepo: calculationRepo,
		InstallmentRepo: installmentRepo,
		engine:          engine,
		cache:           resultCache,
		logger:          logger,
		now:             time.Now,
	}
}

// Calculate prices a quote as stored. Nothing is persisted.
func (s *PremiumService) Calculate(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error) {
	quote, product, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	in, err := s.engine.Prepare(quote.FormData, quote.SubmittedBy, product)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, quote.ID, in)
}

// Recalculate previews a quote with overrides keyed by canonical parameter
// name. The stored quote is left untouched.
func (s *PremiumService) Recalculate(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.CalculationResult, error) {
	quote, product, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	in, err := s.engine.PrepareOverrides(quote, overrides, product)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, quote.ID, in)
}

// ApplyOverrides saves overrides into the quote's answers. Only DRAFT and
// INCOMPLETE quotes accept new answers.
func (s *PremiumService) ApplyOverrides(ctx context.Context, quoteID uuid.UUID, overrides map[string]interface{}) (*domain.Quote, error) {
	quote, product, err := s.load(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.Status.IsEditable() {
		return nil, customError.WrapQuoteLocked(quote.ID.String(), string(quote.Status))
	}

	merged, err := mapping.MergeOverrides(quote.FormData, product.MappingFields, overrides)
	if err != nil {
		return nil, err
	}
	if err := s.QuoteRepo.UpdateFormData(ctx, quote.ID, merged); err != nil {
		return nil, wrapStorage(err)
	}

	quote.FormData = merged
	quote.UpdatedAt = s.now()
	s.logger.Info("quote answers updated", logging.QuoteID(quote.ID), zap.Int("overrides", len(overrides)))
	return quote, nil
}

// GenerateSchedule prices the quote, with the requested periodicity and
// effective date when given, and persists one installment per echeance. An
// existing schedule is replaced as long as none of it was emitted or paid.
func (s *PremiumService) GenerateSchedule(ctx context.Context, quoteID uuid.UUID, request domain.GenerateScheduleRequest) (*domain.ScheduleResponse, error) {
	// 1. Price the quote
	result, err := s.Recalculate(ctx, quoteID, request.Overrides())
	if err != nil {
		return nil, err
	}
	if result.Refus {
		return nil, customError.WrapCalculationRefused(result.RefusReason)
	}
	if result.Echeancier == nil {
		return nil, customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
			Field: domain.ParamEffectiveDate, Code: domain.ViolationRequired, Message: "is required to build a schedule",
		}}))
	}

	// 2. Refuse to regenerate a schedule that has started
	existing, err := s.InstallmentRepo.GetByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if !schedule.CanRegenerate(existing) {
		return nil, customError.WrapScheduleLocked(quoteID.String())
	}

	// 3. Save the installments
	installments := schedule.GenerateSchedule(quoteID, result.Echeancier, s.now())
	if len(existing) == 0 {
		err = s.InstallmentRepo.CreateSchedule(ctx, installments)
	} else {
		err = s.InstallmentRepo.ReplaceSchedule(ctx, quoteID, installments)
	}
	if err != nil {
		return nil, wrapStorage(err)
	}

	// 4. Keep the priced result so premium calls can be reproduced. Only a
	// result whose installments were written is recorded.
	if err := s.CalculationRepo.Save(ctx, quoteID, result); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info("schedule generated",
		logging.QuoteID(quoteID),
		logging.Fingerprint(result.Fingerprint),
		zap.String("periodicity", string(result.Echeancier.Periodicite)),
		zap.Int("installments", len(installments)),
		zap.Bool("replaced", len(existing) > 0),
	)
	return scheduleResponse(quoteID, installments), nil
}

// GetSchedule returns a quote's installments with their totals.
func (s *PremiumService) GetSchedule(ctx context.Context, quoteID uuid.UUID) (*domain.ScheduleResponse, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return scheduleResponse(quoteID, installments), nil
}

// PatchInstallment edits one installment. Amounts are not rebalanced.
func (s *PremiumService) PatchInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, patch domain.InstallmentPatch) (*domain.PaymentInstallment, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	installment, err := schedule.Find(installments, installmentID)
	if err != nil {
		return nil, err
	}
	if err := schedule.ApplyPatch(installment, patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.InstallmentRepo.Update(ctx, installment); err != nil {
		return nil, wrapStorage(err)
	}

	s.logger.Info("installment updated", logging.QuoteID(quoteID), logging.InstallmentID(installmentID))
	return installment, nil
}

// PatchInstallments applies several edits; either all of them are saved or none.
func (s *PremiumService) PatchInstallments(ctx context.Context, quoteID uuid.UUID, edits []domain.InstallmentEdit) (*domain.ScheduleResponse, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	changed, err := schedule.ApplyBulkPatch(installments, edits, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.InstallmentRepo.UpdateMany(ctx, changed); err != nil {
		return nil, wrapStorage(err)
	}

	s.logger.Info("installments updated", logging.QuoteID(quoteID), zap.Int("count", len(changed)))
	return scheduleResponse(quoteID, installments), nil
}

// AddInstallment inserts a manual installment and renumbers the schedule.
func (s *PremiumService) AddInstallment(ctx context.Context, quoteID uuid.UUID, values domain.NewInstallment) (*domain.ScheduleResponse, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	all, added, err := schedule.AddInstallment(installments, quoteID, values, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.InstallmentRepo.Insert(ctx, added, all); err != nil {
		return nil, wrapStorage(err)
	}

	s.logger.Info("installment added",
		logging.QuoteID(quoteID),
		logging.InstallmentID(added.ID),
		zap.Int("number", added.InstallmentNumber),
	)
	return scheduleResponse(quoteID, all), nil
}

// DeleteInstallments removes unemitted installments. At least one must remain.
func (s *PremiumService) DeleteInstallments(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID) (*domain.ScheduleResponse, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	remaining, removed, err := schedule.RemoveInstallments(installments, ids, s.now())
	if err != nil {
		return nil, err
	}

	removedIDs := make([]uuid.UUID, len(removed))
	for i, r := range removed {
		removedIDs[i] = r.ID
	}
	if err := s.InstallmentRepo.DeleteMany(ctx, quoteID, removedIDs, remaining); err != nil {
		return nil, wrapStorage(err)
	}

	s.logger.Info("installments deleted", logging.QuoteID(quoteID), zap.Int("count", len(removed)))
	return scheduleResponse(quoteID, remaining), nil
}

// EmitInstallment records the premium call of an installment. Only the next
// unvalidated installment of the quote can be emitted.
func (s *PremiumService) EmitInstallment(ctx context.Context, quoteID, installmentID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, quoteID, installments, installmentID, emissionDate)
}

// EmitNextInstallment emits whichever installment is next in line.
func (s *PremiumService) EmitNextInstallment(ctx context.Context, quoteID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	next := schedule.NextUnvalidated(installments)
	if next == nil {
		return nil, customError.WrapInstallmentNotFound(fmt.Sprintf("next of quote %s", quoteID))
	}
	return s.emit(ctx, quoteID, installments, next.ID, emissionDate)
}

func (s *PremiumService) emit(ctx context.Context, quoteID uuid.UUID, installments []*domain.PaymentInstallment, installmentID uuid.UUID, emissionDate *time.Time) (*domain.PaymentInstallment, error) {
	at := s.now()
	if emissionDate != nil {
		at = *emissionDate
	}

	// 1. Check the transition on the loaded schedule for a precise error
	installment, err := schedule.Emit(installments, installmentID, at)
	if err != nil {
		return nil, err
	}

	// 2. Apply it as a compare-and-set so concurrent emissions cannot both win
	if err := s.InstallmentRepo.MarkEmitted(ctx, installmentID, at); err != nil {
		return nil, wrapStorage(err)
	}

	// 3. Move the quote along. The emission is already committed, so a
	// failure here is logged rather than reported.
	s.advanceQuote(ctx, quoteID, domain.QuoteStatusPremiumCallEmitted)

	s.logger.Info("installment emitted",
		logging.QuoteID(quoteID),
		logging.InstallmentID(installmentID),
		zap.Int("number", installment.InstallmentNumber),
	)
	return installment, nil
}

// RecordPayment marks an emitted installment as paid.
func (s *PremiumService) RecordPayment(ctx context.Context, quoteID, installmentID uuid.UUID, request domain.RecordPaymentRequest) (*domain.PaymentInstallment, error) {
	installment, err := s.installment(ctx, quoteID, installmentID)
	if err != nil {
		return nil, err
	}

	paidAt := s.now()
	if request.PaidAt != nil {
		paidAt = *request.PaidAt
	}
	if err := schedule.Pay(installment, request.PaymentMethod, paidAt); err != nil {
		return nil, err
	}
	if err := s.InstallmentRepo.MarkPaid(ctx, installmentID, *installment.PaymentMethod, paidAt); err != nil {
		return nil, wrapStorage(err)
	}
	s.advanceQuote(ctx, quoteID, domain.QuoteStatusInstallmentInProgress)

	s.logger.Info("payment recorded",
		logging.QuoteID(quoteID),
		logging.InstallmentID(installmentID),
		zap.String("method", *installment.PaymentMethod),
	)
	return installment, nil
}

// CancelInstallment cancels an installment that is neither paid nor cancelled.
func (s *PremiumService) CancelInstallment(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PaymentInstallment, error) {
	installment, err := s.installment(ctx, quoteID, installmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := schedule.Cancel(installment, now); err != nil {
		return nil, err
	}
	if err := s.InstallmentRepo.MarkCancelled(ctx, installmentID, now); err != nil {
		return nil, wrapStorage(err)
	}

	s.logger.Info("installment cancelled", logging.QuoteID(quoteID), logging.InstallmentID(installmentID))
	return installment, nil
}

// PremiumCall returns the saved result of the quote narrowed to one
// installment, as printed on its premium call.
func (s *PremiumService) PremiumCall(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PremiumCallResponse, error) {
	installments, err := s.schedule(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	installment, err := schedule.Find(installments, installmentID)
	if err != nil {
		return nil, err
	}

	result, err := s.CalculationRepo.Latest(ctx, quoteID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	narrowed, err := schedule.NarrowToInstallment(result, installment)
	if err != nil {
		return nil, err
	}

	return &domain.PremiumCallResponse{
		QuoteID:     quoteID,
		Installment: installment,
		Result:      narrowed,
	}, nil
}

// MarkOverdue flags emitted installments left unpaid past their due date.
func (s *PremiumService) MarkOverdue(ctx context.Context) (*domain.OverdueResponse, error) {
	now := s.now()
	marked, err := s.InstallmentRepo.MarkOverdue(ctx, now)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info("overdue installments marked", zap.Int64("marked", marked))
	return &domain.OverdueResponse{Marked: marked, AsOf: now}, nil
}

// LookupActivity returns the nomenclature entry of an activity code.
func (s *PremiumService) LookupActivity(code string) (tariff.Activity, error) {
	activity, ok := s.engine.Calculator().Table().Lookup(code)
	if !ok {
		return tariff.Activity{}, customError.WrapActivityNotFound(code)
	}
	return activity, nil
}

// Activities returns the whole nomenclature.
func (s *PremiumService) Activities() []tariff.Activity {
	return s.engine.Calculator().Table().Activities()
}

// advanceQuote moves the quote to status after an installment write has
// committed. The two writes are not atomic: the installment row is the
// source of truth and the quote status is only a summary of it.
func (s *PremiumService) advanceQuote(ctx context.Context, quoteID uuid.UUID, status domain.QuoteStatus) {
	if err := s.QuoteRepo.UpdateStatus(ctx, quoteID, status); err != nil {
		s.logger.Error("quote status update failed",
			logging.QuoteID(quoteID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// run serves a prepared input from the cache when possible.
func (s *PremiumService) run(ctx context.Context, quoteID uuid.UUID, in *engine.Input) (*domain.CalculationResult, error) {
	cached, ok, err := s.cache.Get(ctx, in.Key)
	if err != nil {
		s.logger.Warn("result cache read failed", logging.QuoteID(quoteID), zap.Error(err))
	} else if ok {
		s.logger.Debug("result cache hit", logging.QuoteID(quoteID), logging.Fingerprint(cached.Fingerprint))
		return cached, nil
	}

	result, err := s.engine.Run(in)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, in.Key, result); err != nil {
		s.logger.Warn("result cache write failed", logging.QuoteID(quoteID), zap.Error(err))
	}

	s.logger.Info("premium calculated",
		logging.QuoteID(quoteID),
		logging.Fingerprint(result.Fingerprint),
		logging.TariffVersion(result.TariffVersion),
		zap.Bool("refus", result.Refus),
	)
	return result, nil
}

func (s *PremiumService) load(ctx context.Context, quoteID uuid.UUID) (*domain.Quote, *domain.Product, error) {
	quote, err := s.QuoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, nil, wrapStorage(err)
	}
	product, err := s.ProductRepo.GetByID(ctx, quote.ProductID)
	if err != nil {
		return nil, nil, wrapStorage(err)
	}
	return quote, product, nil
}

// schedule loads a quote's installments; a quote without any is reported as not found.
func (s *PremiumService) schedule(ctx context.Context, quoteID uuid.UUID) ([]*domain.PaymentInstallment, error) {
	installments, err := s.InstallmentRepo.GetByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if len(installments) == 0 {
		if _, err := s.QuoteRepo.GetByID(ctx, quoteID); err != nil {
			return nil, wrapStorage(err)
		}
		return nil, customError.WrapInstallmentNotFound(fmt.Sprintf("any of quote %s", quoteID))
	}
	return installments, nil
}

// installment loads one installment and checks it belongs to the quote.
func (s *PremiumService) installment(ctx context.Context, quoteID, installmentID uuid.UUID) (*domain.PaymentInstallment, error) {
	installment, err := s.InstallmentRepo.GetByID(ctx, installmentID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if installment.QuoteID != quoteID {
		return nil, customError.WrapInstallmentNotFound(installmentID.String())
	}
	return installment, nil
}

func scheduleResponse(quoteID uuid.UUID, installments []*domain.PaymentInstallment) *domain.ScheduleResponse {
	return &domain.ScheduleResponse{
		QuoteID:      quoteID,
		Installments: installments,
		Totals:       domain.TotalsOf(installments),
	}
}

// wrapStorage keeps business errors raised by repositories and wraps anything else as a database error.
func wrapStorage(err error) error {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	return customError.WrapDatabaseError(err)
}
