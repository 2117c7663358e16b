package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type productRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepository{db: db}
}

type productRow struct {
	ID                uuid.UUID `db:"id"`
	Code              string    `db:"code"`
	Name              string    `db:"name"`
	Version           int       `db:"version"`
	FormFields        []byte    `db:"form_fields"`
	MappingFields     []byte    `db:"mapping_fields"`
	UnderwritingRules []byte    `db:"underwriting_rules"`
	ScheduleOptions   []byte    `db:"schedule_options"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (row *productRow) toDomain() (*domain.Product, error) {
	p := &domain.Product{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal(row.FormFields, &p.FormFields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.MappingFields, &p.MappingFields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.UnderwritingRules, &p.UnderwritingRules); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.ScheduleOptions, &p.Schedule); err != nil {
		return nil, err
	}
	return p, nil
}

const productColumns = `id, code, name, version, form_fields, mapping_fields, underwriting_rules, schedule_options, created_at, updated_at`

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	formFields, err := json.Marshal(product.FormFields)
	if err != nil {
		return err
	}
	mappingFields, err := json.Marshal(product.MappingFields)
	if err != nil {
		return err
	}
	underwritingRules, err := json.Marshal(nonNil(product.UnderwritingRules))
	if err != nil {
		return err
	}
	scheduleOptions, err := json.Marshal(product.Schedule)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		product.ID,
		product.Code,
		product.Name,
		product.Version,
		string(formFields),
		string(mappingFields),
		string(underwritingRules),
		string(scheduleOptions),
		product.CreatedAt.UTC(),
		product.UpdatedAt.UTC(),
	)
	return err
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.get(ctx, `id = ?`, id.String(), id)
}

func (r *productRepository) GetByCode(ctx context.Context, code string) (*domain.Product, error) {
	return r.get(ctx, `code = ?`, code, code)
}

func (r *productRepository) get(ctx context.Context, where, label string, arg interface{}) (*domain.Product, error) {
	query := r.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE ` + where)

	var row productRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapProductNotFound(label)
		}
		return nil, err
	}
	return row.toDomain()
}

func nonNil(rules []domain.UnderwritingRule) []domain.UnderwritingRule {
	if rules == nil {
		return []domain.UnderwritingRule{}
	}
	return rules
}
