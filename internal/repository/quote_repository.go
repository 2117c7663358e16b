package repository

import (
	"bytes"
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

type quoteRepository struct {
	db *sqlx.DB
}

func NewQuoteRepository(db *sqlx.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

type quoteRow struct {
	ID          uuid.UUID `db:"id"`
	ProductID   uuid.UUID `db:"product_id"`
	Reference   string    `db:"reference"`
	Status      string    `db:"status"`
	FormData    []byte    `db:"form_data"`
	CompanyData []byte    `db:"company_data"`
	SubmittedBy string    `db:"submitted_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row *quoteRow) toDomain() (*domain.Quote, error) {
	q := &domain.Quote{
		ID:          row.ID,
		ProductID:   row.ProductID,
		Reference:   row.Reference,
		Status:      domain.QuoteStatus(row.Status),
		SubmittedBy: row.SubmittedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	// numbers stay json.Number so decimals keep their exact text
	dec := json.NewDecoder(bytes.NewReader(row.FormData))
	dec.UseNumber()
	if err := dec.Decode(&q.FormData); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.CompanyData, &q.CompanyData); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *quoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	formData, err := marshalMap(quote.FormData)
	if err != nil {
		return err
	}
	companyData, err := marshalMap(quote.CompanyData)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO quotes (id, product_id, reference, status, form_data, company_data, submitted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		quote.ID,
		quote.ProductID,
		quote.Reference,
		string(quote.Status),
		formData,
		companyData,
		quote.SubmittedBy,
		quote.CreatedAt.UTC(),
		quote.UpdatedAt.UTC(),
	)
	return err
}

func (r *quoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	query := r.db.Rebind(`
		SELECT id, product_id, reference, status, form_data, company_data, submitted_by, created_at, updated_at
		FROM quotes
		WHERE id = ?
	`)

	var row quoteRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapQuoteNotFound(id.String())
		}
		return nil, err
	}
	return row.toDomain()
}

func (r *quoteRepository) UpdateFormData(ctx context.Context, id uuid.UUID, formData domain.FormData) error {
	data, err := marshalMap(formData)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		UPDATE quotes
		SET form_data = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`)
	res, err := r.db.ExecContext(ctx, query, data, time.Now().UTC(), id,
		string(domain.QuoteStatusDraft), string(domain.QuoteStatusIncomplete))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		quote, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return customError.WrapQuoteLocked(id.String(), string(quote.Status))
	}
	return nil
}

func (r *quoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.QuoteStatus) error {
	query := r.db.Rebind(`UPDATE quotes SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return customError.WrapQuoteNotFound(id.String())
	}
	return nil
}

func marshalMap(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
