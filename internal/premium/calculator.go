// Package premium prices a set of canonical parameters against a tariff table.
//
// Calculate is a pure function of its inputs: it reads no clock, no
// randomness and no shared mutable state, so a stored result can always be
// reproduced from the parameters and the tariff hash it records.
//
// Evaluation order:
//
//  1. territory restriction (a refusal that does not depend on other inputs)
//  2. parameter validation, all violations collected
//  3. hard-stop refusals: uninsurable activity, turnover, claims and reprise
//     ceilings, tariff refusal rules, product rules
//  4. arithmetic, every component rounded to the cent before it is summed
package premium

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/rules"
	"github.com/segyhp/premium-engine/internal/tariff"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Calculator is safe for concurrent use.
type Calculator struct {
	table     *tariff.Table
	whitelist map[string]struct{}
	// whitelistDigest enters every fingerprint so that a whitelist change
	// never serves a result cached under the previous one.
	whitelistDigest string
}

// NewCalculator binds a tariff table. Requesters in territoryWhitelist may
// quote in the table's restricted territories.
func NewCalculator(table *tariff.Table, territoryWhitelist []string) *Calculator {
	whitelist := make(map[string]struct{}, len(territoryWhitelist))
	for _, requester := range territoryWhitelist {
		whitelist[strings.ToLower(strings.TrimSpace(requester))] = struct{}{}
	}
	return &Calculator{table: table, whitelist: whitelist, whitelistDigest: digestWhitelist(whitelist)}
}

func digestWhitelist(whitelist map[string]struct{}) string {
	if len(whitelist) == 0 {
		return ""
	}
	requesters := make([]string, 0, len(whitelist))
	for requester := range whitelist {
		requesters = append(requesters, requester)
	}
	sort.Strings(requesters)
	sum := sha256.Sum256([]byte(strings.Join(requesters, "\n")))
	return hex.EncodeToString(sum[:])
}

// Table returns the tariff the calculator prices against.
func (c *Calculator) Table() *tariff.Table {
	return c.table
}

// Calculate prices params. Refusals are returned as results with Refus set;
// the error is either a *customError.ValidationError or a rule evaluation failure.
func (c *Calculator) Calculate(params domain.Parameters, productRules ...*rules.Rule) (*domain.CalculationResult, error) {
	result, err := c.calculate(params, productRules)
	if err != nil {
		return nil, err
	}
	result.TariffVersion = c.table.Version()
	result.TariffHash = c.table.Hash()
	result.Fingerprint = c.Fingerprint(params, productRules...)
	return result, nil
}

func (c *Calculator) calculate(params domain.Parameters, productRules []*rules.Rule) (*domain.CalculationResult, error) {
	// 1. Territory restriction
	if c.Restricts(params.Territory, params.Requester) {
		return domain.Refused(fmt.Sprintf("Territoire non couvert pour cet apporteur : %s", params.Territory)), nil
	}

	// 2. Validation
	if err := c.validate(params); err != nil {
		return nil, err
	}

	// 3. Hard stops
	basis := c.turnoverBasis(params)
	vars := c.variables(params, basis)
	if reason, err := c.refusal(params, basis, vars, productRules); err != nil {
		return nil, err
	} else if reason != "" {
		return domain.Refused(reason), nil
	}

	// 4. Arithmetic
	premium, err := c.price(params, basis, vars)
	if err != nil {
		return nil, err
	}
	return &domain.CalculationResult{Premium: premium}, nil
}

// Restricts reports whether requester may not quote in territory.
func (c *Calculator) Restricts(territory, requester string) bool {
	return c.table.IsRestrictedTerritory(territory) && !c.isWhitelisted(requester)
}

func (c *Calculator) isWhitelisted(requester string) bool {
	_, ok := c.whitelist[strings.ToLower(strings.TrimSpace(requester))]
	return ok
}

func (c *Calculator) validate(params domain.Parameters) error {
	var violations []customError.FieldViolation
	add := func(field, code, format string, args ...interface{}) {
		violations = append(violations, customError.FieldViolation{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if params.CADeclared.IsNegative() {
		add(domain.ParamCADeclared, domain.ViolationMin, "turnover cannot be negative")
	}
	if params.Headcount < 0 {
		add(domain.ParamHeadcount, domain.ViolationMin, "headcount cannot be negative")
	}

	if len(params.Activities) == 0 {
		add(domain.ParamActivities, domain.ViolationRequired, "at least one activity must be declared")
	}
	total := decimal.Zero
	seen := make(map[string]struct{}, len(params.Activities))
	for _, a := range params.Activities {
		if _, ok := c.table.Lookup(a.Code); !ok {
			add(domain.ParamActivities, domain.ViolationUnknownCode, "activity %s is not in tariff %s", a.Code, c.table.Version())
		}
		if _, dup := seen[a.Code]; dup {
			add(domain.ParamActivities, domain.ViolationDuplicate, "activity %s is declared twice", a.Code)
		}
		seen[a.Code] = struct{}{}
		if !a.CASharePercent.IsPositive() {
			add(domain.ParamActivities, domain.ViolationMin, "share of activity %s must be positive", a.Code)
		}
		total = total.Add(a.CASharePercent)
	}
	if len(params.Activities) > 0 && !total.Equal(hundred) {
		add(domain.ParamActivities, domain.ViolationShareSum, "activity shares must sum to 100, got %s", total.String())
	}

	for name, rate := range map[string]decimal.Decimal{
		domain.ParamManagementFeeRate:     params.ManagementFeeRate,
		domain.ParamLegalProtectionAmount: params.LegalProtectionAmount,
		domain.ParamInsuranceTaxRate:      params.InsuranceTaxRate,
		domain.ParamInstallmentFee:        params.InstallmentFee,
	} {
		if rate.IsNegative() {
			add(name, domain.ViolationMin, "cannot be negative")
		}
	}
	if !params.Periodicity.IsValid() {
		add(domain.ParamPeriodicity, domain.ViolationOption, "unknown periodicity %q", params.Periodicity)
	}
	if params.RepriseYears < 0 {
		add(domain.ParamRepriseYears, domain.ViolationMin, "cannot be negative")
	}
	if params.ExperienceYears < 0 {
		add(domain.ParamExperienceYears, domain.ViolationMin, "cannot be negative")
	}
	if params.ContinuousInsuranceYears < 0 {
		add(domain.ParamContinuousInsuranceYears, domain.ViolationMin, "cannot be negative")
	}

	sortViolations(violations)
	return customError.NewValidationError(violations)
}

// turnoverBasis is the declared turnover, floored at the minimum turnover per head.
func (c *Calculator) turnoverBasis(params domain.Parameters) decimal.Decimal {
	floor := c.table.MinTurnoverPerHead().Mul(decimal.NewFromInt(int64(params.Headcount)))
	return utils.RoundMoney(decimal.Max(params.CADeclared, floor))
}

func (c *Calculator) variables(params domain.Parameters, basis decimal.Decimal) map[string]interface{} {
	vars := params.Variables()

	claims, amount := params.ClaimsWithin(c.table.ClaimsLookbackYears())
	vars["nombreSinistres"] = float64(claims)
	vars["montantSinistres"] = amount.InexactFloat64()

	mainShare := decimal.Zero
	for _, a := range params.Activities {
		if c.table.IsMainCode(a.Code) {
			mainShare = mainShare.Add(a.CASharePercent)
		}
	}
	vars[tariff.VarMainActivityShare] = mainShare.InexactFloat64()
	vars[tariff.VarTurnoverBasis] = basis.InexactFloat64()
	return vars
}

func (c *Calculator) refusal(params domain.Parameters, basis decimal.Decimal, vars map[string]interface{}, productRules []*rules.Rule) (string, error) {
	for _, a := range params.SortedActivities() {
		activity, _ := c.table.Lookup(a.Code)
		if !activity.Insurable {
			return fmt.Sprintf("Activité non assurable : %s - %s", activity.Code, activity.Label), nil
		}
	}

	if ceiling := c.table.MaxTurnover(); ceiling.IsPositive() && basis.GreaterThan(ceiling) {
		return fmt.Sprintf("Chiffre d'affaires supérieur au plafond assurable de %s %s", ceiling.StringFixed(0), c.table.Currency()), nil
	}

	if ceiling := c.table.MaxClaims(); ceiling > 0 {
		if claims, _ := params.ClaimsWithin(c.table.ClaimsLookbackYears()); claims > ceiling {
			return fmt.Sprintf("Nombre de sinistres supérieur à %d sur les %d dernières années", ceiling, c.table.ClaimsLookbackYears()), nil
		}
	}

	if ceiling := c.table.MaxRepriseYears(); ceiling > 0 && params.RepriseYears > ceiling {
		return fmt.Sprintf("Reprise du passé limitée à %d ans", ceiling), nil
	}

	for _, set := range [][]*rules.Rule{c.table.Refusals(), productRules} {
		for _, rule := range set {
			matched, err := rule.Matches(vars)
			if err != nil {
				return "", err
			}
			if matched {
				return rule.Reason, nil
			}
		}
	}
	return "", nil
}

func (c *Calculator) price(params domain.Parameters, basis decimal.Decimal, vars map[string]interface{}) (*domain.Premium, error) {
	p := &domain.Premium{
		CACalculee:  basis,
		Activites:   make([]domain.ActivityPremium, 0, len(params.Activities)),
		Majorations: make([]domain.AppliedAdjustment, 0),
	}

	// Per activity premium
	base := decimal.Zero
	for _, a := range params.SortedActivities() {
		activity, _ := c.table.Lookup(a.Code)
		activityBasis := utils.RoundMoney(basis.Mul(utils.Percent(a.CASharePercent)))
		amount := utils.RoundMoney(activityBasis.Mul(activity.Rate))
		p.Activites = append(p.Activites, domain.ActivityPremium{
			Code:           a.Code,
			Label:          activity.Label,
			Category:       activity.Category,
			CASharePercent: a.CASharePercent,
			Basis:          activityBasis,
			Rate:           activity.Rate,
			Premium:        amount,
		})
		base = base.Add(amount)
	}

	// Turnover band
	current := base
	if coefficient := c.table.BandCoefficient(basis); !coefficient.Equal(one) {
		banded := utils.RoundMoney(base.Mul(coefficient))
		p.Majorations = append(p.Majorations, domain.AppliedAdjustment{
			Name:   "tranche_ca",
			Label:  "Coefficient de tranche de chiffre d'affaires",
			Mode:   domain.AdjustmentMultiplicative,
			Rate:   coefficient.Sub(one),
			Amount: banded.Sub(base),
		})
		current = banded
	}

	// Majorations and reductions: additive ones on the banded premium, then
	// multiplicative ones compounded in declaration order
	var additive, multiplicative []tariff.Adjustment
	for _, adj := range c.table.Adjustments() {
		applies, err := adj.When.Bool(vars)
		if err != nil {
			return nil, err
		}
		if !applies {
			continue
		}
		if adj.Mode == domain.AdjustmentAdditive {
			additive = append(additive, adj)
		} else {
			multiplicative = append(multiplicative, adj)
		}
	}

	banded := current
	for _, adj := range additive {
		amount := utils.RoundMoney(banded.Mul(adj.Rate))
		p.Majorations = append(p.Majorations, applied(adj, amount))
		current = current.Add(amount)
	}
	for _, adj := range multiplicative {
		amount := utils.RoundMoney(current.Mul(adj.Rate))
		p.Majorations = append(p.Majorations, applied(adj, amount))
		current = current.Add(amount)
	}

	// Minimum premium
	if current.LessThan(c.table.MinimumPremium()) {
		p.Majorations = append(p.Majorations, domain.AppliedAdjustment{
			Name:   "prime_minimum",
			Label:  "Prime minimale",
			Mode:   domain.AdjustmentAdditive,
			Rate:   decimal.Zero,
			Amount: c.table.MinimumPremium().Sub(current),
		})
		current = c.table.MinimumPremium()
	}
	if current.IsNegative() {
		current = decimal.Zero
	}
	p.PrimeRCD = utils.RoundMoney(current)

	// Components
	autres := domain.Autres{RCD: p.PrimeRCD}
	if params.RepriseYears > 0 {
		years := decimal.NewFromInt(int64(params.RepriseYears))
		autres.Reprise = utils.RoundMoney(p.PrimeRCD.Mul(c.table.RepriseRatePerYear()).Mul(years))
	}
	autres.PJ = utils.RoundMoney(params.LegalProtectionAmount)
	autres.FraisGestion = utils.RoundMoney(p.PrimeRCD.Mul(params.ManagementFeeRate))
	if n := params.Periodicity.Installments(); n > 1 {
		autres.FraisFractionnement = utils.RoundMoney(params.InstallmentFee.Mul(decimal.NewFromInt(int64(n))))
	}
	autres.Frais = autres.FraisGestion.Add(autres.FraisFractionnement)

	// Taxes, rounded per component
	rate := params.InsuranceTaxRate
	autres.TaxeRCD = utils.RoundMoney(autres.RCD.Mul(c.table.TaxRate(tariff.ComponentRCD, rate)))
	autres.TaxePJ = utils.RoundMoney(autres.PJ.Mul(c.table.TaxRate(tariff.ComponentPJ, rate)))
	autres.TaxeFrais = utils.RoundMoney(autres.Frais.Mul(c.table.TaxRate(tariff.ComponentFrais, rate)))
	autres.TaxeReprise = utils.RoundMoney(autres.Reprise.Mul(c.table.TaxRate(tariff.ComponentReprise, rate)))
	autres.TaxeAssurance = utils.SumDecimals(autres.TaxeRCD, autres.TaxePJ, autres.TaxeFrais, autres.TaxeReprise)

	p.Autres = autres
	p.PrimeTotal = utils.SumDecimals(autres.RCD, autres.PJ, autres.Frais, autres.Reprise)
	p.TotalTTC = p.PrimeTotal.Add(autres.TaxeAssurance)
	return p, nil
}

func sortViolations(violations []customError.FieldViolation) {
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Field < violations[j].Field
	})
}

func applied(adj tariff.Adjustment, amount decimal.Decimal) domain.AppliedAdjustment {
	return domain.AppliedAdjustment{Name: adj.Name, Label: adj.Label, Mode: adj.Mode, Rate: adj.Rate, Amount: amount}
}

type fingerprintInput struct {
	TariffHash string            `json:"tariffHash"`
	Whitelist  string            `json:"whitelist,omitempty"`
	Parameters domain.Parameters `json:"parameters"`
	Rules      []string          `json:"rules,omitempty"`
}

// Fingerprint identifies a calculation: the same parameters priced against
// the same tariff, territory whitelist and product rules always yield the
// same fingerprint.
func (c *Calculator) Fingerprint(params domain.Parameters, productRules ...*rules.Rule) string {
	input := fingerprintInput{TariffHash: c.table.Hash(), Whitelist: c.whitelistDigest, Parameters: params}
	for _, r := range productRules {
		input.Rules = append(input.Rules, r.Name+"="+r.When.String())
	}
	input.Parameters.Activities = params.SortedActivities()

	data, _ := json.Marshal(input)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
