package contract

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the settlement engine
// can compose contract writes into its own atomic units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed contract store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, c *Contract) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts (id, client_id, freelancer_id, payment_type, status,
			budget, hourly_rate, estimated_weekly_hours, funded, total_funded, balance,
			deliverable_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,'')::NUMERIC(14,2), NULLIF($7,'')::NUMERIC(14,2),
			$8, $9, COALESCE(NULLIF($10,''),'0')::NUMERIC(14,2), COALESCE(NULLIF($11,''),'0')::NUMERIC(14,2),
			$12, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			client_id              = EXCLUDED.client_id,
			freelancer_id          = EXCLUDED.freelancer_id,
			payment_type           = EXCLUDED.payment_type,
			status                 = EXCLUDED.status,
			budget                 = EXCLUDED.budget,
			hourly_rate            = EXCLUDED.hourly_rate,
			estimated_weekly_hours = EXCLUDED.estimated_weekly_hours,
			deliverable_count      = EXCLUDED.deliverable_count,
			updated_at             = NOW()
	`, c.ID, c.ClientID, c.FreelancerID, c.PaymentType, c.Status,
		c.Budget, c.HourlyRate, c.EstimatedWeeklyHours, c.Funded, c.TotalFunded, c.Balance,
		c.DeliverableCount)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}

	for _, ms := range c.Milestones {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contract_milestones (id, contract_id, title, amount, funded_amount, status)
			VALUES ($1, $2, $3, $4::NUMERIC(14,2), COALESCE(NULLIF($5,''),'0')::NUMERIC(14,2), $6)
			ON CONFLICT (id) DO NOTHING
		`, ms.ID, c.ID, ms.Title, ms.Amount, ms.FundedAmount, ms.Status)
		if err != nil {
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
	}

	return tx.Commit()
}

// FindByIDTx loads a contract and its milestones through q.
func FindByIDTx(ctx context.Context, q DBTX, id string) (*Contract, error) {
	c := &Contract{ID: id}
	var budget, hourlyRate sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT client_id, freelancer_id, payment_type, status, budget, hourly_rate,
			estimated_weekly_hours, funded, total_funded, balance, deliverable_count,
			created_at, updated_at
		FROM contracts WHERE id = $1
	`, id).Scan(&c.ClientID, &c.FreelancerID, &c.PaymentType, &c.Status, &budget, &hourlyRate,
		&c.EstimatedWeeklyHours, &c.Funded, &c.TotalFunded, &c.Balance, &c.DeliverableCount,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Budget = budget.String
	c.HourlyRate = hourlyRate.String

	rows, err := q.QueryContext(ctx, `
		SELECT id, title, amount, funded_amount, status
		FROM contract_milestones WHERE contract_id = $1 ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ms := Milestone{ContractID: id}
		if err := rows.Scan(&ms.ID, &ms.Title, &ms.Amount, &ms.FundedAmount, &ms.Status); err != nil {
			return nil, err
		}
		c.Milestones = append(c.Milestones, ms)
	}
	return c, rows.Err()
}

func (p *PostgresStore) FindByID(ctx context.Context, id string) (*Contract, error) {
	return FindByIDTx(ctx, p.db, id)
}

// ApplyFundingTx increments funded/balance totals through q.
func ApplyFundingTx(ctx context.Context, q DBTX, id, amount string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE contracts SET
			total_funded = total_funded + $2::NUMERIC(14,2),
			balance      = balance + $2::NUMERIC(14,2),
			funded       = TRUE,
			updated_at   = NOW()
		WHERE id = $1
	`, id, amount)
	if err != nil {
		return fmt.Errorf("failed to apply funding: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ApplyFunding(ctx context.Context, id, amount string) error {
	return ApplyFundingTx(ctx, p.db, id, amount)
}

// DebitBalanceTx decreases the running balance through q.
func DebitBalanceTx(ctx context.Context, q DBTX, id, amount string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE contracts SET
			balance    = balance - $2::NUMERIC(14,2),
			updated_at = NOW()
		WHERE id = $1
	`, id, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DebitBalance(ctx context.Context, id, amount string) error {
	return DebitBalanceTx(ctx, p.db, id, amount)
}

// UpdateStatusTx sets the contract status through q.
func UpdateStatusTx(ctx context.Context, q DBTX, id string, status Status) error {
	result, err := q.ExecContext(ctx, `
		UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	return UpdateStatusTx(ctx, p.db, id, status)
}

// UpdateMilestoneStatusTx sets a milestone status through q.
func UpdateMilestoneStatusTx(ctx context.Context, q DBTX, contractID, milestoneID string, status MilestoneStatus) error {
	result, err := q.ExecContext(ctx, `
		UPDATE contract_milestones SET status = $3 WHERE contract_id = $1 AND id = $2
	`, contractID, milestoneID, status)
	if err != nil {
		return fmt.Errorf("failed to update milestone status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrMilestoneNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateMilestoneStatus(ctx context.Context, contractID, milestoneID string, status MilestoneStatus) error {
	return UpdateMilestoneStatusTx(ctx, p.db, contractID, milestoneID, status)
}

// UpdateMilestoneFundedAmountTx records milestone funding through q,
// flipping pending milestones to funded.
func UpdateMilestoneFundedAmountTx(ctx context.Context, q DBTX, contractID, milestoneID, amount string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE contract_milestones SET
			funded_amount = funded_amount + $3::NUMERIC(14,2),
			status        = CASE WHEN status = 'pending' THEN 'funded' ELSE status END
		WHERE contract_id = $1 AND id = $2
	`, contractID, milestoneID, amount)
	if err != nil {
		return fmt.Errorf("failed to update milestone funding: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrMilestoneNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateMilestoneFundedAmount(ctx context.Context, contractID, milestoneID, amount string) error {
	return UpdateMilestoneFundedAmountTx(ctx, p.db, contractID, milestoneID, amount)
}
