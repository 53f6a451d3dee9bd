package payment

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore is a Postgres-backed Store. Finalize is a conditional
// update so concurrent callback deliveries produce exactly one transition.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, contract_id, milestone_id, client_id,
	freelancer_id, amount, purpose, status, gateway_payload, paid_at,
	failure_reason, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*Payment, error) {
	var p Payment
	var purpose, status string
	var paidAt sql.NullTime
	err := row.Scan(&p.ID, &p.ContractID, &p.MilestoneID, &p.ClientID,
		&p.FreelancerID, &p.Amount, &purpose, &status, &p.GatewayPayload,
		&paidAt, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Purpose = Purpose(purpose)
	p.Status = Status(status)
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, contract_id, milestone_id, client_id,
			freelancer_id, amount, purpose, status, gateway_payload,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.ContractID, p.MilestoneID, p.ClientID, p.FreelancerID,
		p.Amount, string(p.Purpose), string(p.Status), p.GatewayPayload,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// DBTX is satisfied by both *sql.DB and *sql.Tx so the settlement engine
// can finalize a payment inside its own atomic unit.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FinalizeTx performs the conditional pending -> terminal transition
// through q. A payment already terminal is reported, not an error.
func FinalizeTx(ctx context.Context, q DBTX, id string, to Status, payload string) (*FinalizeResult, error) {
	if !to.IsTerminal() {
		return nil, ErrInvalidStatus
	}
	row := q.QueryRowContext(ctx, `
		UPDATE payments SET status = $2, gateway_payload = $3, failure_reason = $4,
			paid_at = CASE WHEN $2 = 'success' THEN NOW() ELSE paid_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+paymentColumns, id, string(to), payload, FailureReason(to, payload))
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		// Either missing or already terminal; a repeated gateway callback
		// is the latter and must be a no-op success.
		existing, getErr := scanPayment(q.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
		if getErr == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		if getErr != nil {
			return nil, fmt.Errorf("get payment: %w", getErr)
		}
		return &FinalizeResult{Payment: existing, AlreadyTerminal: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize payment: %w", err)
	}
	return &FinalizeResult{Payment: p}, nil
}

func (s *PostgresStore) Finalize(ctx context.Context, id string, to Status, payload string) (*FinalizeResult, error) {
	return FinalizeTx(ctx, s.db, id, to, payload)
}

func (s *PostgresStore) ListByContract(ctx context.Context, contractID string, limit int) ([]*Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE contract_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, contractID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
