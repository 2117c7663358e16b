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

type calculationRepository struct {
	db *sqlx.DB
}

func NewCalculationRepository(db *sqlx.DB) CalculationRepository {
	return &calculationRepository{db: db}
}

func (r *calculationRepository) Save(ctx context.Context, quoteID uuid.UUID, result *domain.CalculationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO calculations (id, quote_id, fingerprint, tariff_version, tariff_hash, refus, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		uuid.New(),
		quoteID,
		result.Fingerprint,
		result.TariffVersion,
		result.TariffHash,
		result.Refus,
		string(data),
		time.Now().UTC(),
	)
	return err
}

func (r *calculationRepository) Latest(ctx context.Context, quoteID uuid.UUID) (*domain.CalculationResult, error) {
	query := r.db.Rebind(`
		SELECT result
		FROM calculations
		WHERE quote_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`)

	var data []byte
	if err := r.db.GetContext(ctx, &data, query, quoteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCalculationNotFound(quoteID.String())
		}
		return nil, err
	}

	var result domain.CalculationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
