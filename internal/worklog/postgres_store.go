package worklog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the settlement engine
// can compose worklog writes into its own atomic units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed worklog store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, w *Worklog) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO worklogs (id, contract_id, client_id, freelancer_id, description,
			duration_minutes, status, dispute_window_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, w.ID, w.ContractID, w.ClientID, w.FreelancerID, w.Description,
		w.DurationMinutes, w.Status, w.DisputeWindowEndsAt)
	if err != nil {
		return fmt.Errorf("failed to insert worklog: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*Worklog, error) {
	w := &Worklog{ID: id}
	var windowEnd sql.NullTime
	var description sql.NullString

	err := p.db.QueryRowContext(ctx, `
		SELECT contract_id, client_id, freelancer_id, description, duration_minutes,
			status, dispute_window_ends_at, created_at, updated_at
		FROM worklogs WHERE id = $1
	`, id).Scan(&w.ContractID, &w.ClientID, &w.FreelancerID, &description,
		&w.DurationMinutes, &w.Status, &windowEnd, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Description = description.String
	if windowEnd.Valid {
		w.DisputeWindowEndsAt = &windowEnd.Time
	}
	return w, nil
}

func (p *PostgresStore) ListForAutoPay(ctx context.Context, before time.Time, limit int) ([]*Worklog, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, contract_id, client_id, freelancer_id, description, duration_minutes,
			status, dispute_window_ends_at, created_at, updated_at
		FROM worklogs
		WHERE status = 'approved' AND dispute_window_ends_at <= $1
		ORDER BY created_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Worklog
	for rows.Next() {
		w := &Worklog{}
		var windowEnd sql.NullTime
		var description sql.NullString
		if err := rows.Scan(&w.ID, &w.ContractID, &w.ClientID, &w.FreelancerID, &description,
			&w.DurationMinutes, &w.Status, &windowEnd, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Description = description.String
		if windowEnd.Valid {
			w.DisputeWindowEndsAt = &windowEnd.Time
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// Claim atomically flips approved -> processing. The conditional WHERE is the
// cross-run lock: only one sweep can win the transition.
func (p *PostgresStore) Claim(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE worklogs SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to claim worklog: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Distinguish missing from already-claimed for the caller's log line.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM worklogs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyClaimed
	}
	return nil
}

func (p *PostgresStore) ReleaseClaim(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE worklogs SET status = 'approved', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release worklog claim: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE worklogs SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update worklog status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateDisputeWindowEnd(ctx context.Context, id string, endsAt time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE worklogs SET dispute_window_ends_at = $2, updated_at = NOW() WHERE id = $1
	`, id, endsAt)
	if err != nil {
		return fmt.Errorf("failed to update dispute window: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CountByContract(ctx context.Context, contractID string) (Counts, error) {
	var c Counts
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status IN ('approved', 'processing')),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'disputed')
		FROM worklogs WHERE contract_id = $1
	`, contractID).Scan(&c.Pending, &c.Approved, &c.Paid, &c.Rejected, &c.Disputed)
	return c, err
}

// ApproveTx flips pending -> approved through q, setting the dispute window
// end in the same statement; the settlement engine calls it inside its
// approval unit so the hold and the status change land together. Zero rows
// means the worklog is missing or no longer pending.
func ApproveTx(ctx context.Context, q DBTX, id string, windowEndsAt time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE worklogs SET status = 'approved', dispute_window_ends_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, windowEndsAt)
	if err != nil {
		return fmt.Errorf("failed to approve worklog: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM worklogs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrNotPending
	}
	return nil
}

// MarkPaidTx flips processing -> paid through q; the settlement engine calls
// it inside its atomic unit so the payout and the status change land
// together. Zero rows means the claim was lost, which must abort the unit.
func MarkPaidTx(ctx context.Context, q DBTX, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE worklogs SET status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark worklog paid: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}
