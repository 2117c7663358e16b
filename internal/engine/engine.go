// Package engine ties parameter mapping, pricing and installment splitting
// into the two operations callers use: calculating a quote as stored, and
// recalculating it with overrides as a what-if preview.
package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/mapping"
	"github.com/segyhp/premium-engine/internal/premium"
	"github.com/segyhp/premium-engine/internal/rules"
	"github.com/segyhp/premium-engine/internal/schedule"
	"github.com/segyhp/premium-engine/internal/tariff"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"
)

// Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	resolver   *mapping.Resolver
	calculator *premium.Calculator
}

func New(resolver *mapping.Resolver, calculator *premium.Calculator) *Engine {
	return &Engine{resolver: resolver, calculator: calculator}
}

// Calculator returns the calculator the engine prices with.
func (e *Engine) Calculator() *premium.Calculator {
	return e.calculator
}

// Input is a quote resolved and ready to price. Key identifies the result
// Run will produce, so it can serve as a cache key.
type Input struct {
	Params   domain.Parameters
	Rules    []*rules.Rule
	Schedule domain.ScheduleOptions
	Key      string

	territoryOnly bool
}

// Prepare resolves form data against a product. A requester barred from the
// answered territory short-circuits resolution: that refusal holds whatever
// the other answers are, valid or not.
func (e *Engine) Prepare(formData domain.FormData, requester string, product *domain.Product) (*Input, error) {
	productRules, err := compileRules(product)
	if err != nil {
		return nil, err
	}

	if territory, ok := rawTerritory(formData, product); ok && e.calculator.Restricts(territory, requester) {
		params := domain.Parameters{Territory: territory, Requester: requester}
		return &Input{
			Params:        params,
			Key:           e.calculator.Fingerprint(params),
			territoryOnly: true,
		}, nil
	}

	params, err := e.resolver.Resolve(formData, product.MappingFields, product.FormFields)
	if err != nil {
		var configErr *customError.ConfigurationError
		if errors.As(err, &configErr) {
			configErr.ProductID = product.ID.String()
		}
		return nil, err
	}
	params.Requester = requester

	return &Input{
		Params:   *params,
		Rules:    productRules,
		Schedule: product.Schedule,
		Key:      e.calculator.Fingerprint(*params, productRules...) + ":" + strconv.Itoa(product.Schedule.DueOffsetDays),
	}, nil
}

// Run prices a prepared input and attaches the echeancier when the
// effective date is known.
func (e *Engine) Run(in *Input) (*domain.CalculationResult, error) {
	if in.territoryOnly {
		return e.calculator.Calculate(in.Params)
	}

	result, err := e.calculator.Calculate(in.Params, in.Rules...)
	if err != nil {
		return nil, err
	}
	if result.Refus || in.Params.EffectiveDate == nil {
		return result, nil
	}

	echeancier, err := schedule.BuildEcheancier(result, in.Params.Periodicity, *in.Params.EffectiveDate, in.Schedule)
	if err != nil {
		return nil, err
	}
	result.Echeancier = echeancier
	return result, nil
}

// Calculate prices a quote's stored answers.
func (e *Engine) Calculate(quote *domain.Quote, product *domain.Product) (*domain.CalculationResult, error) {
	in, err := e.Prepare(quote.FormData, quote.SubmittedBy, product)
	if err != nil {
		return nil, err
	}
	return e.Run(in)
}

// Recalculate prices a quote with overrides keyed by canonical parameter
// name. The quote is left untouched; saving the outcome is up to the caller.
func (e *Engine) Recalculate(quote *domain.Quote, overrides map[string]interface{}, product *domain.Product) (*domain.CalculationResult, error) {
	in, err := e.PrepareOverrides(quote, overrides, product)
	if err != nil {
		return nil, err
	}
	return e.Run(in)
}

// PrepareOverrides is Prepare on a copy of the quote's answers with overrides applied.
func (e *Engine) PrepareOverrides(quote *domain.Quote, overrides map[string]interface{}, product *domain.Product) (*Input, error) {
	merged, err := mapping.MergeOverrides(quote.FormData, product.MappingFields, overrides)
	if err != nil {
		return nil, err
	}
	return e.Prepare(merged, quote.SubmittedBy, product)
}

func compileRules(product *domain.Product) ([]*rules.Rule, error) {
	if len(product.UnderwritingRules) == 0 {
		return nil, nil
	}
	known := tariff.KnownVariables()
	compiled := make([]*rules.Rule, 0, len(product.UnderwritingRules))
	for _, r := range product.UnderwritingRules {
		rule, err := rules.CompileRule(r.Name, r.When, r.Reason, known)
		if err != nil {
			return nil, customError.WrapConfiguration(fmt.Errorf("%w: product %s: %v", customError.ErrConfiguration, product.Code, err))
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

func rawTerritory(formData domain.FormData, product *domain.Product) (string, bool) {
	key, _ := product.MappingFields.FieldFor(domain.ParamTerritory)
	value, ok := formData[key]
	if !ok || domain.IsEmpty(value) {
		return "", false
	}
	territory, err := utils.ParseString(value)
	if err != nil {
		return "", false
	}
	return territory, true
}
