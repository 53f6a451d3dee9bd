package escrow

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the settlement engine
// can fold escrow writes into its funding and release units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is a Postgres-backed Store. The single transition is a
// conditional update on status = 'held'.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const escrowColumns = `id, contract_id, payment_id, milestone_id, client_id,
	freelancer_id, amount, status, held_at, released_at, refunded_at,
	created_at, updated_at`

func scanEscrow(row interface{ Scan(...any) error }) (*Escrow, error) {
	var e Escrow
	var status string
	var releasedAt, refundedAt sql.NullTime
	err := row.Scan(&e.ID, &e.ContractID, &e.PaymentID, &e.MilestoneID,
		&e.ClientID, &e.FreelancerID, &e.Amount, &status, &e.HeldAt,
		&releasedAt, &refundedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	if releasedAt.Valid {
		e.ReleasedAt = &releasedAt.Time
	}
	if refundedAt.Valid {
		e.RefundedAt = &refundedAt.Time
	}
	return &e, nil
}

// InsertTx writes a new escrow record through q.
func InsertTx(ctx context.Context, q DBTX, esc *Escrow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO escrows (id, contract_id, payment_id, milestone_id,
			client_id, freelancer_id, amount, status, held_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		esc.ID, esc.ContractID, esc.PaymentID, esc.MilestoneID,
		esc.ClientID, esc.FreelancerID, esc.Amount, string(esc.Status),
		esc.HeldAt, esc.CreatedAt, esc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, esc *Escrow) error {
	return InsertTx(ctx, s.db, esc)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Escrow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, ErrEscrowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) FindHeldByMilestone(ctx context.Context, contractID, milestoneID string) (*Escrow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE contract_id = $1 AND milestone_id = $2 AND status = 'held'
		LIMIT 1`, contractID, milestoneID)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, ErrEscrowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find held escrow: %w", err)
	}
	return e, nil
}

// ResolveTx performs the single held -> terminal transition through q.
func ResolveTx(ctx context.Context, q DBTX, id string, to Status, at time.Time) (*Escrow, error) {
	tsCol := "released_at"
	if to == StatusRefunded {
		tsCol = "refunded_at"
	}
	row := q.QueryRowContext(ctx, `
		UPDATE escrows SET status = $2, `+tsCol+` = $3, updated_at = $3
		WHERE id = $1 AND status = 'held'
		RETURNING `+escrowColumns, id, string(to), at)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM escrows WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check escrow: %w", err)
		}
		if !exists {
			return nil, ErrEscrowNotFound
		}
		return nil, ErrAlreadyResolved
	}
	if err != nil {
		return nil, fmt.Errorf("resolve escrow: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, id string, to Status, at time.Time) (*Escrow, error) {
	return ResolveTx(ctx, s.db, id, to, at)
}

func (s *PostgresStore) ListByContract(ctx context.Context, contractID string, limit int) ([]*Escrow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE contract_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, contractID, limit)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var out []*Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
