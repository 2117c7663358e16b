// Package tariff holds the versioned reference data used to price a quote:
// activity codes with their labels, risk categories and rates, turnover bands,
// majorations, refusal rules and tax overrides.
//
// A Table is read-only once loaded. Every calculation records the table's
// version and content hash, so a persisted result can always be traced back
// to the exact table that produced it. Loading a new table never changes a
// schedule that was already generated.
package tariff

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/rules"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
)

//go:embed default.hcl
var defaultTable []byte

// Tax components that a tax_override block may target.
const (
	ComponentRCD     = "rcd"
	ComponentPJ      = "pj"
	ComponentFrais   = "frais"
	ComponentReprise = "reprise"
)

// Extra rule variables computed by the calculator on top of the parameters.
const (
	VarMainActivityShare = "partActivitesPrincipales"
	VarTurnoverBasis     = "caCalculee"
)

// Activity is one entry of the activity nomenclature.
type Activity struct {
	Code      string          `json:"code"`
	Label     string          `json:"label"`
	Category  string          `json:"category"`
	Rate      decimal.Decimal `json:"rate"`
	Insurable bool            `json:"insurable"`
}

// Band applies Coefficient to turnovers up to UpTo. A nil UpTo is open ended.
type Band struct {
	UpTo        *decimal.Decimal
	Coefficient decimal.Decimal
}

// Adjustment is a majoration (positive rate) or reduction (negative rate)
// applied when its condition holds.
type Adjustment struct {
	Name  string
	Label string
	Mode  domain.AdjustmentMode
	Rate  decimal.Decimal
	When  *rules.Expression
}

// Table is an immutable tariff snapshot.
type Table struct {
	version  string
	currency string
	hash     string

	minimumPremium     decimal.Decimal
	minTurnoverPerHead decimal.Decimal
	maxTurnover        decimal.Decimal
	mainCodeMax        int

	repriseRatePerYear decimal.Decimal
	maxRepriseYears    int

	maxClaims           int
	claimsLookbackYears int

	restrictedTerritories map[string]struct{}

	activities   map[string]Activity
	codes        []string
	bands        []Band
	adjustments  []Adjustment
	refusals     []*rules.Rule
	taxOverrides map[string]decimal.Decimal
}

type fileSpec struct {
	Version               string            `hcl:"version"`
	Currency              string            `hcl:"currency,optional"`
	MinimumPremium        string            `hcl:"minimum_premium,optional"`
	MinTurnoverPerHead    string            `hcl:"min_turnover_per_head,optional"`
	MaxTurnover           string            `hcl:"max_turnover,optional"`
	MainCodeMax           int               `hcl:"main_code_max,optional"`
	RepriseRatePerYear    string            `hcl:"reprise_rate_per_year,optional"`
	MaxRepriseYears       int               `hcl:"max_reprise_years,optional"`
	MaxClaims             int               `hcl:"max_claims,optional"`
	ClaimsLookbackYears   int               `hcl:"claims_lookback_years,optional"`
	RestrictedTerritories []string          `hcl:"restricted_territories,optional"`
	Activities            []activitySpec    `hcl:"activity,block"`
	Bands                 []bandSpec        `hcl:"turnover_band,block"`
	Adjustments           []adjustmentSpec  `hcl:"adjustment,block"`
	Refusals              []refusalSpec     `hcl:"refusal,block"`
	TaxOverrides          []taxOverrideSpec `hcl:"tax_override,block"`
}

type activitySpec struct {
	Code      string `hcl:"code,label"`
	Label     string `hcl:"label"`
	Category  string `hcl:"category,optional"`
	Rate      string `hcl:"rate"`
	Insurable *bool  `hcl:"insurable,optional"`
}

type bandSpec struct {
	UpTo        *string `hcl:"up_to,optional"`
	Coefficient string  `hcl:"coefficient"`
}

type adjustmentSpec struct {
	Name  string `hcl:"name,label"`
	Label string `hcl:"label,optional"`
	When  string `hcl:"when"`
	Mode  string `hcl:"mode,optional"`
	Rate  string `hcl:"rate"`
}

type refusalSpec struct {
	Name   string `hcl:"name,label"`
	When   string `hcl:"when"`
	Reason string `hcl:"reason"`
}

type taxOverrideSpec struct {
	Component string `hcl:"component,label"`
	Rate      string `hcl:"rate"`
}

// LoadDefault parses the table shipped with the binary.
func LoadDefault() (*Table, error) {
	return Parse(defaultTable, "default.hcl")
}

// LoadFile parses a table from disk.
func LoadFile(path string) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tariff file: %w", err)
	}
	return Parse(src, path)
}

// Load reads path, or the embedded default table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return LoadDefault()
	}
	return LoadFile(path)
}

// Parse decodes an HCL tariff table and compiles its rule expressions.
func Parse(src []byte, filename string) (*Table, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	var spec fileSpec
	if diags := gohcl.DecodeBody(file.Body, nil, &spec); diags.HasErrors() {
		return nil, diagError(diags)
	}

	sum := sha256.Sum256(src)
	t := &Table{
		version:               spec.Version,
		currency:              spec.Currency,
		hash:                  hex.EncodeToString(sum[:]),
		mainCodeMax:           spec.MainCodeMax,
		maxRepriseYears:       spec.MaxRepriseYears,
		maxClaims:             spec.MaxClaims,
		claimsLookbackYears:   spec.ClaimsLookbackYears,
		restrictedTerritories: make(map[string]struct{}, len(spec.RestrictedTerritories)),
		activities:            make(map[string]Activity, len(spec.Activities)),
		taxOverrides:          make(map[string]decimal.Decimal, len(spec.TaxOverrides)),
	}
	if t.version == "" {
		return nil, fmt.Errorf("%s: version is required", filename)
	}
	if t.currency == "" {
		t.currency = "EUR"
	}

	var err error
	if t.minimumPremium, err = optionalDecimal("minimum_premium", spec.MinimumPremium); err != nil {
		return nil, err
	}
	if t.minTurnoverPerHead, err = optionalDecimal("min_turnover_per_head", spec.MinTurnoverPerHead); err != nil {
		return nil, err
	}
	if t.maxTurnover, err = optionalDecimal("max_turnover", spec.MaxTurnover); err != nil {
		return nil, err
	}
	if t.repriseRatePerYear, err = optionalDecimal("reprise_rate_per_year", spec.RepriseRatePerYear); err != nil {
		return nil, err
	}

	for _, territory := range spec.RestrictedTerritories {
		t.restrictedTerritories[territory] = struct{}{}
	}

	for _, a := range spec.Activities {
		if _, dup := t.activities[a.Code]; dup {
			return nil, fmt.Errorf("activity %s is declared twice", a.Code)
		}
		rate, err := requiredDecimal("activity "+a.Code+" rate", a.Rate)
		if err != nil {
			return nil, err
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("activity %s: rate cannot be negative", a.Code)
		}
		insurable := true
		if a.Insurable != nil {
			insurable = *a.Insurable
		}
		t.activities[a.Code] = Activity{Code: a.Code, Label: a.Label, Category: a.Category, Rate: rate, Insurable: insurable}
		t.codes = append(t.codes, a.Code)
	}
	sort.Slice(t.codes, func(i, j int) bool { return codeLess(t.codes[i], t.codes[j]) })

	if t.bands, err = buildBands(spec.Bands); err != nil {
		return nil, err
	}

	known := KnownVariables()
	for _, a := range spec.Adjustments {
		adj, err := buildAdjustment(a, known)
		if err != nil {
			return nil, err
		}
		t.adjustments = append(t.adjustments, adj)
	}

	for _, r := range spec.Refusals {
		rule, err := rules.CompileRule(r.Name, r.When, r.Reason, known)
		if err != nil {
			return nil, err
		}
		t.refusals = append(t.refusals, rule)
	}

	for _, o := range spec.TaxOverrides {
		switch o.Component {
		case ComponentRCD, ComponentPJ, ComponentFrais, ComponentReprise:
		default:
			return nil, fmt.Errorf("tax_override: unknown component %q", o.Component)
		}
		rate, err := requiredDecimal("tax_override "+o.Component, o.Rate)
		if err != nil {
			return nil, err
		}
		t.taxOverrides[o.Component] = rate
	}

	return t, nil
}

func buildBands(specs []bandSpec) ([]Band, error) {
	bands := make([]Band, 0, len(specs))
	openEnded := 0
	for i, b := range specs {
		coefficient, err := requiredDecimal(fmt.Sprintf("turnover_band #%d coefficient", i+1), b.Coefficient)
		if err != nil {
			return nil, err
		}
		band := Band{Coefficient: coefficient}
		if b.UpTo != nil {
			upTo, err := requiredDecimal(fmt.Sprintf("turnover_band #%d up_to", i+1), *b.UpTo)
			if err != nil {
				return nil, err
			}
			band.UpTo = &upTo
		} else {
			openEnded++
		}
		bands = append(bands, band)
	}
	if openEnded > 1 {
		return nil, fmt.Errorf("only one turnover_band may omit up_to")
	}
	sort.SliceStable(bands, func(i, j int) bool {
		if bands[i].UpTo == nil {
			return false
		}
		if bands[j].UpTo == nil {
			return true
		}
		return bands[i].UpTo.LessThan(*bands[j].UpTo)
	})
	return bands, nil
}

func buildAdjustment(a adjustmentSpec, known map[string]interface{}) (Adjustment, error) {
	mode := domain.AdjustmentMode(a.Mode)
	switch mode {
	case "":
		mode = domain.AdjustmentMultiplicative
	case domain.AdjustmentAdditive, domain.AdjustmentMultiplicative:
	default:
		return Adjustment{}, fmt.Errorf("adjustment %s: unknown mode %q", a.Name, a.Mode)
	}
	rate, err := requiredDecimal("adjustment "+a.Name+" rate", a.Rate)
	if err != nil {
		return Adjustment{}, err
	}
	when, err := rules.CompileKnown(a.Name, a.When, known)
	if err != nil {
		return Adjustment{}, err
	}
	label := a.Label
	if label == "" {
		label = a.Name
	}
	return Adjustment{Name: a.Name, Label: label, Mode: mode, Rate: rate, When: when}, nil
}

func requiredDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%s is required", name)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func optionalDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return requiredDecimal(name, value)
}

func diagError(diags hcl.Diagnostics) error {
	return fmt.Errorf("invalid tariff table: %s", diags.Error())
}

// codeLess orders numeric codes numerically and the rest lexically after them.
func codeLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// KnownVariables lists every variable a tariff or product rule may reference.
func KnownVariables() map[string]interface{} {
	vars := domain.Parameters{}.Variables()
	vars[VarMainActivityShare] = 0.0
	vars[VarTurnoverBasis] = 0.0
	return vars
}

func (t *Table) Version() string  { return t.version }
func (t *Table) Currency() string { return t.currency }

// Hash is the hex SHA-256 of the table source.
func (t *Table) Hash() string { return t.hash }

func (t *Table) MinimumPremium() decimal.Decimal     { return t.minimumPremium }
func (t *Table) MinTurnoverPerHead() decimal.Decimal { return t.minTurnoverPerHead }
func (t *Table) RepriseRatePerYear() decimal.Decimal { return t.repriseRatePerYear }
func (t *Table) MaxRepriseYears() int                { return t.maxRepriseYears }
func (t *Table) MaxClaims() int                      { return t.maxClaims }
func (t *Table) ClaimsLookbackYears() int            { return t.claimsLookbackYears }

// MaxTurnover is the insurable turnover ceiling, zero when unlimited.
func (t *Table) MaxTurnover() decimal.Decimal { return t.maxTurnover }

// Lookup returns the nomenclature entry for an activity code.
func (t *Table) Lookup(code string) (Activity, bool) {
	a, ok := t.activities[code]
	return a, ok
}

// Activities returns the nomenclature ordered by code.
func (t *Table) Activities() []Activity {
	out := make([]Activity, 0, len(t.codes))
	for _, code := range t.codes {
		out = append(out, t.activities[code])
	}
	return out
}

// IsMainCode reports whether code belongs to the main activities.
func (t *Table) IsMainCode(code string) bool {
	n, err := strconv.Atoi(code)
	return err == nil && t.mainCodeMax > 0 && n <= t.mainCodeMax
}

// IsRestrictedTerritory reports a territory covered only for whitelisted requesters.
func (t *Table) IsRestrictedTerritory(territory string) bool {
	_, ok := t.restrictedTerritories[territory]
	return ok
}

// BandCoefficient returns the coefficient of the first band containing turnover, 1 when none does.
func (t *Table) BandCoefficient(turnover decimal.Decimal) decimal.Decimal {
	for _, b := range t.bands {
		if b.UpTo == nil || turnover.LessThanOrEqual(*b.UpTo) {
			return b.Coefficient
		}
	}
	return decimal.NewFromInt(1)
}

// Adjustments returns majorations and reductions in declaration order.
func (t *Table) Adjustments() []Adjustment {
	out := make([]Adjustment, len(t.adjustments))
	copy(out, t.adjustments)
	return out
}

// Refusals returns the table's hard-stop rules in declaration order.
func (t *Table) Refusals() []*rules.Rule {
	out := make([]*rules.Rule, len(t.refusals))
	copy(out, t.refusals)
	return out
}

// TaxRate returns the override for component, or fallback when the table has none.
func (t *Table) TaxRate(component string, fallback decimal.Decimal) decimal.Decimal {
	if rate, ok := t.taxOverrides[component]; ok {
		return rate
	}
	return fallback
}
