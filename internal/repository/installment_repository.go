package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type installmentRepository struct {
	db *sqlx.DB
}

func NewInstallmentRepository(db *sqlx.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

const installmentColumns = `id, quote_id, installment_number, due_date, period_start, period_end,
	amount_ht, tax_amount, amount_ttc, rcd_amount, pj_amount, fees_amount, resume_amount,
	status, paid_at, emission_date, payment_method, created_at, updated_at`

// settled lists the terminal statuses as a SQL literal.
const settled = `('PAID', 'CANCELLED')`

func (r *installmentRepository) CreateSchedule(ctx context.Context, installments []*domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.insert(ctx, tx, installments...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *installmentRepository) ReplaceSchedule(ctx context.Context, quoteID uuid.UUID, installments []*domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var progressed int
	query := tx.Rebind(`
		SELECT COUNT(*) FROM payment_installments
		WHERE quote_id = ? AND (emission_date IS NOT NULL OR status = 'PAID')
	`)
	if err := tx.GetContext(ctx, &progressed, query, quoteID); err != nil {
		return err
	}
	if progressed > 0 {
		return customError.WrapScheduleLocked(quoteID.String())
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM payment_installments WHERE quote_id = ?`), quoteID); err != nil {
		return err
	}
	if err := r.insert(ctx, tx, installments...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *installmentRepository) insert(ctx context.Context, tx *sqlx.Tx, installments ...*domain.PaymentInstallment) error {
	query := tx.Rebind(`
		INSERT INTO payment_installments (` + installmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, i := range installments {
		_, err := tx.ExecContext(ctx, query,
			i.ID,
			i.QuoteID,
			i.InstallmentNumber,
			i.DueDate.UTC(),
			i.PeriodStart.UTC(),
			i.PeriodEnd.UTC(),
			i.AmountHT,
			i.TaxAmount,
			i.AmountTTC,
			i.RCDAmount,
			i.PJAmount,
			i.FeesAmount,
			i.ResumeAmount,
			string(i.Status),
			utcPtr(i.PaidAt),
			utcPtr(i.EmissionDate),
			i.PaymentMethod,
			i.CreatedAt.UTC(),
			i.UpdatedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *installmentRepository) GetByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]*domain.PaymentInstallment, error) {
	query := r.db.Rebind(`
		SELECT ` + installmentColumns + `
		FROM payment_installments
		WHERE quote_id = ?
		ORDER BY installment_number
	`)

	var installments []*domain.PaymentInstallment
	if err := r.db.SelectContext(ctx, &installments, query, quoteID); err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *installmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error) {
	query := r.db.Rebind(`SELECT ` + installmentColumns + ` FROM payment_installments WHERE id = ?`)

	var installment domain.PaymentInstallment
	if err := r.db.GetContext(ctx, &installment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapInstallmentNotFound(id.String())
		}
		return nil, err
	}
	return &installment, nil
}

func (r *installmentRepository) Update(ctx context.Context, installment *domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.update(ctx, tx, installment); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *installmentRepository) UpdateMany(ctx context.Context, installments []*domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.update(ctx, tx, installments...); err != nil {
		return err
	}
	return tx.Commit()
}

// update writes the editable columns of unsettled rows.
func (r *installmentRepository) update(ctx context.Context, tx *sqlx.Tx, installments ...*domain.PaymentInstallment) error {
	query := tx.Rebind(`
		UPDATE payment_installments
		SET installment_number = ?, due_date = ?, period_start = ?, period_end = ?,
			amount_ht = ?, tax_amount = ?, amount_ttc = ?,
			rcd_amount = ?, pj_amount = ?, fees_amount = ?, resume_amount = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ` + settled)

	for _, i := range installments {
		res, err := tx.ExecContext(ctx, query,
			i.InstallmentNumber,
			i.DueDate.UTC(),
			i.PeriodStart.UTC(),
			i.PeriodEnd.UTC(),
			i.AmountHT,
			i.TaxAmount,
			i.AmountTTC,
			i.RCDAmount,
			i.PJAmount,
			i.FeesAmount,
			i.ResumeAmount,
			i.UpdatedAt.UTC(),
			i.ID,
		)
		if err := expectOne(res, err, i.ID); err != nil {
			return err
		}
	}
	return nil
}

// renumber only touches installment numbers, so it also applies to settled rows.
func (r *installmentRepository) renumber(ctx context.Context, tx *sqlx.Tx, installments []*domain.PaymentInstallment) error {
	query := tx.Rebind(`UPDATE payment_installments SET installment_number = ?, updated_at = ? WHERE id = ?`)
	for _, i := range installments {
		res, err := tx.ExecContext(ctx, query, i.InstallmentNumber, i.UpdatedAt.UTC(), i.ID)
		if err := expectOne(res, err, i.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *installmentRepository) Insert(ctx context.Context, added *domain.PaymentInstallment, renumbered []*domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.insert(ctx, tx, added); err != nil {
		return err
	}
	others := make([]*domain.PaymentInstallment, 0, len(renumbered))
	for _, i := range renumbered {
		if i.ID != added.ID {
			others = append(others, i)
		}
	}
	if err := r.renumber(ctx, tx, others); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *installmentRepository) DeleteMany(ctx context.Context, quoteID uuid.UUID, ids []uuid.UUID, renumbered []*domain.PaymentInstallment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		DELETE FROM payment_installments
		WHERE id = ? AND quote_id = ? AND emission_date IS NULL AND status <> 'PAID'
	`)
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, query, id, quoteID)
		if err := expectOne(res, err, id); err != nil {
			return err
		}
	}

	var remaining int
	if err := tx.GetContext(ctx, &remaining, tx.Rebind(`SELECT COUNT(*) FROM payment_installments WHERE quote_id = ?`), quoteID); err != nil {
		return err
	}
	if remaining == 0 {
		return customError.WrapLastInstallment(quoteID.String())
	}

	if err := r.renumber(ctx, tx, renumbered); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkEmitted only succeeds while no lower numbered installment of the same
// quote is still awaiting emission.
func (r *installmentRepository) MarkEmitted(ctx context.Context, id uuid.UUID, emissionDate time.Time) error {
	query := r.db.Rebind(`
		UPDATE payment_installments
		SET emission_date = ?, updated_at = ?
		WHERE id = ?
			AND emission_date IS NULL
			AND status NOT IN ` + settled + `
			AND NOT EXISTS (
				SELECT 1 FROM payment_installments AS earlier
				WHERE earlier.quote_id = payment_installments.quote_id
					AND earlier.installment_number < payment_installments.installment_number
					AND earlier.emission_date IS NULL
					AND earlier.status NOT IN ` + settled + `
			)
	`)
	res, err := r.db.ExecContext(ctx, query, emissionDate.UTC(), emissionDate.UTC(), id)
	return expectOne(res, err, id)
}

func (r *installmentRepository) MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	query := r.db.Rebind(`
		UPDATE payment_installments
		SET status = 'PAID', paid_at = ?, payment_method = ?, updated_at = ?
		WHERE id = ? AND emission_date IS NOT NULL AND status NOT IN ` + settled)
	res, err := r.db.ExecContext(ctx, query, paidAt.UTC(), method, paidAt.UTC(), id)
	return expectOne(res, err, id)
}

func (r *installmentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE payment_installments
		SET status = 'CANCELLED', updated_at = ?
		WHERE id = ? AND status NOT IN ` + settled)
	res, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	return expectOne(res, err, id)
}

func (r *installmentRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := r.db.Rebind(`
		UPDATE payment_installments
		SET status = 'OVERDUE', updated_at = ?
		WHERE status = 'PENDING' AND emission_date IS NOT NULL AND due_date < ?
	`)
	res, err := r.db.ExecContext(ctx, query, now.UTC(), utils.TruncateDay(now).UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// expectOne turns a compare-and-set that matched no row into
// ErrConcurrentModification.
func expectOne(res sql.Result, err error, id uuid.UUID) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return customError.WrapConcurrentModification(id.String())
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
