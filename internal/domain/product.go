package domain

import (
	"time"

	"github.com/google/uuid"
)

// MappingFields maps a canonical calculation parameter name to the form field
// key a product uses for it.
type MappingFields map[string]string

// FieldFor returns the form key holding the canonical parameter, and whether
// the product maps it explicitly.
func (m MappingFields) FieldFor(canonical string) (string, bool) {
	key, ok := m[canonical]
	if !ok || key == "" {
		return canonical, false
	}
	return key, true
}

// UnderwritingRule refuses a quote when its expression holds.
type UnderwritingRule struct {
	Name   string `json:"name"`
	When   string `json:"when"`
	Reason string `json:"reason"`
}

// ScheduleOptions tunes installment generation per product.
type ScheduleOptions struct {
	// DueOffsetDays shifts each due date from its period start.
	DueOffsetDays int `json:"dueOffsetDays,omitempty"`
}

// Product is an insurance product configuration. New products are added as
// data: their form schema, the parameter mapping and extra underwriting rules.
type Product struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	Code              string             `json:"code" db:"code"`
	Name              string             `json:"name" db:"name"`
	Version           int                `json:"version" db:"version"`
	FormFields        FormFields         `json:"formFields"`
	MappingFields     MappingFields      `json:"mappingFields"`
	UnderwritingRules []UnderwritingRule `json:"underwritingRules,omitempty"`
	Schedule          ScheduleOptions    `json:"schedule"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" db:"updated_at"`
}

// FieldSpecFor returns the declared form field behind a canonical parameter.
func (p *Product) FieldSpecFor(canonical string) (string, FieldSpec, bool) {
	key, _ := p.MappingFields.FieldFor(canonical)
	spec, ok := p.FormFields[key]
	return key, spec, ok
}
