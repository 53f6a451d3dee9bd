package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/pagination"
)

// PostgresStore is a Postgres-backed Store. Hold and withdrawal transitions
// are conditional updates so the single-transition invariant holds under
// concurrent callers; guarded writes run in serializable transactions.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `id, contract_id, payment_id, milestone_id, worklog_id,
	client_id, freelancer_id, amount, purpose, role, status, description,
	metadata, created_at`

// DBTX is satisfied by both *sql.DB and *sql.Tx so the settlement engine
// can compose ledger writes into its own atomic units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, q execer, e *Entry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = b
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, contract_id, payment_id, milestone_id,
			worklog_id, client_id, freelancer_id, amount, purpose, role,
			status, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.ContractID, e.PaymentID, e.MilestoneID, e.WorklogID,
		e.ClientID, e.FreelancerID, e.Amount, string(e.Purpose), string(e.Role),
		string(e.Status), e.Description, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var purpose, role, status string
	var meta []byte
	err := row.Scan(&e.ID, &e.ContractID, &e.PaymentID, &e.MilestoneID,
		&e.WorklogID, &e.ClientID, &e.FreelancerID, &e.Amount, &purpose,
		&role, &status, &e.Description, &meta, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Purpose = Purpose(purpose)
	e.Role = Role(role)
	e.Status = EntryStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &e, nil
}

func (s *PostgresStore) beginSerializable(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	return insertEntry(ctx, s.db, e)
}

const creditClientWalletSQL = `
	INSERT INTO client_wallets (owner_id, balance, total_funded, total_refunded, updated_at)
	VALUES ($1, $2, $2, 0, NOW())
	ON CONFLICT (owner_id) DO UPDATE SET
		balance = client_wallets.balance + EXCLUDED.balance,
		total_funded = client_wallets.total_funded + EXCLUDED.total_funded,
		updated_at = NOW()`

func (s *PostgresStore) RecordFunding(ctx context.Context, e *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, creditClientWalletSQL, e.ClientID, e.Amount); err != nil {
		return fmt.Errorf("credit client wallet: %w", err)
	}
	return tx.Commit()
}

const contractAggregateSQL = `
	SELECT
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'funding'), 0)::numeric(14,2),
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'hold'
			AND status IN ('active_hold', 'frozen_dispute')), 0)::numeric(14,2),
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'release'), 0)::numeric(14,2),
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'refund'), 0)::numeric(14,2),
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'commission'), 0)::numeric(14,2),
		COALESCE(SUM(amount) FILTER (WHERE purpose = 'hold'
			AND status = 'released_back_to_contract'), 0)::numeric(14,2)
	FROM ledger_entries
	WHERE contract_id = $1`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func contractBalance(ctx context.Context, q queryRower, contractID string) (*ContractBalance, error) {
	b := &ContractBalance{ContractID: contractID}
	err := q.QueryRowContext(ctx, contractAggregateSQL, contractID).Scan(
		&b.Funding, &b.ActiveHolds, &b.Released, &b.Refunded,
		&b.Commission, &b.ReturnedToContract)
	if err != nil {
		return nil, fmt.Errorf("aggregate contract balance: %w", err)
	}
	avail := b.Funding
	for _, sub := range []string{b.ActiveHolds, b.Released, b.Refunded, b.Commission, b.ReturnedToContract} {
		avail = money.Sub(avail, sub)
	}
	b.Available = avail
	return b, nil
}

func (s *PostgresStore) ContractBalance(ctx context.Context, contractID string) (*ContractBalance, error) {
	return contractBalance(ctx, s.db, contractID)
}

func (s *PostgresStore) RecordHold(ctx context.Context, e *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	b, err := contractBalance(ctx, tx, e.ContractID)
	if err != nil {
		return err
	}
	if money.Cmp(e.Amount, b.Available) > 0 {
		return ErrNegativeBalance
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) RecordRefund(ctx context.Context, e *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	b, err := contractBalance(ctx, tx, e.ContractID)
	if err != nil {
		return err
	}
	if money.Cmp(e.Amount, b.Available) > 0 {
		return ErrNegativeBalance
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO client_wallets (owner_id, balance, total_funded, total_refunded, updated_at)
		VALUES ($1, 0, 0, $2, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			total_refunded = client_wallets.total_refunded + EXCLUDED.total_refunded,
			updated_at = NOW()`, e.ClientID, e.Amount); err != nil {
		return fmt.Errorf("update client wallet: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) EntriesByContract(ctx context.Context, contractID string, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE contract_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, contractID, limit)
	if err != nil {
		return nil, fmt.Errorf("list contract entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) OwnerEntries(ctx context.Context, ownerID string, role Role) ([]*Entry, error) {
	ownerCol := "freelancer_id"
	if role == RoleClient {
		ownerCol = "client_id"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE `+ownerCol+` = $1
		  AND (purpose <> 'withdrawal' OR role = $2)
		ORDER BY created_at ASC, id ASC`, ownerID, string(role))
	if err != nil {
		return nil, fmt.Errorf("list owner entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindOpenHold(ctx context.Context, contractID string, ref HoldRef) (*Entry, error) {
	return FindOpenHoldTx(ctx, s.db, contractID, ref)
}

// FindOpenHoldTx locates the unresolved hold for a unit of work through q,
// so the settlement engine can check for one inside its own atomic unit.
func FindOpenHoldTx(ctx context.Context, q DBTX, contractID string, ref HoldRef) (*Entry, error) {
	refCol, refVal := "worklog_id", ref.WorklogID
	if ref.MilestoneID != "" {
		refCol, refVal = "milestone_id", ref.MilestoneID
	}
	if refVal == "" {
		return nil, ErrHoldNotFound
	}
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE contract_id = $1 AND purpose = 'hold'
		  AND status IN ('active_hold', 'frozen_dispute')
		  AND `+refCol+` = $2
		LIMIT 1`, contractID, refVal)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open hold: %w", err)
	}
	return e, nil
}

// transitionHold performs the conditional single transition, classifying a
// zero-row update as not-found vs already-resolved.
func TransitionHoldTx(ctx context.Context, tx DBTX, holdID string, to EntryStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries SET status = $2
		WHERE id = $1 AND purpose = 'hold'
		  AND status IN ('active_hold', 'frozen_dispute')`,
		holdID, string(to))
	if err != nil {
		return fmt.Errorf("transition hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition hold: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_entries
				WHERE id = $1 AND purpose = 'hold')`, holdID).Scan(&exists); err != nil {
			return fmt.Errorf("check hold: %w", err)
		}
		if !exists {
			return ErrHoldNotFound
		}
		return ErrHoldAlreadyResolved
	}
	return nil
}

func (s *PostgresStore) FreezeHold(ctx context.Context, holdID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ledger_entries SET status = 'frozen_dispute'
		WHERE id = $1 AND purpose = 'hold' AND status = 'active_hold'`, holdID)
	if err != nil {
		return fmt.Errorf("freeze hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("freeze hold: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_entries
				WHERE id = $1 AND purpose = 'hold')`, holdID).Scan(&exists); err != nil {
			return fmt.Errorf("check hold: %w", err)
		}
		if !exists {
			return ErrHoldNotFound
		}
		return ErrHoldAlreadyResolved
	}
	return nil
}

const creditFreelancerWalletSQL = `
	INSERT INTO freelancer_wallets (owner_id, balance, total_earned,
		total_withdrawn, total_commission_paid, updated_at)
	VALUES ($1, $2, $3, 0, $4, NOW())
	ON CONFLICT (owner_id) DO UPDATE SET
		balance = freelancer_wallets.balance + EXCLUDED.balance,
		total_earned = freelancer_wallets.total_earned + EXCLUDED.total_earned,
		total_commission_paid = freelancer_wallets.total_commission_paid + EXCLUDED.total_commission_paid,
		updated_at = NOW()`

func (s *PostgresStore) SettleHold(ctx context.Context, holdID string, release, commission *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := TransitionHoldTx(ctx, tx, holdID, StatusReleasedToFreelancer); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, release); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, commission); err != nil {
		return err
	}
	gross := money.Add(release.Amount, commission.Amount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE client_wallets SET balance = balance - $2, updated_at = NOW()
		WHERE owner_id = $1`, release.ClientID, gross); err != nil {
		return fmt.Errorf("debit client wallet: %w", err)
	}
	if _, err := tx.ExecContext(ctx, creditFreelancerWalletSQL,
		release.FreelancerID, release.Amount, gross, commission.Amount); err != nil {
		return fmt.Errorf("credit freelancer wallet: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) RefundHold(ctx context.Context, holdID string, refund *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := TransitionHoldTx(ctx, tx, holdID, StatusRefundedBackToClient); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, refund); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE client_wallets SET total_refunded = total_refunded + $2, updated_at = NOW()
		WHERE owner_id = $1`, refund.ClientID, refund.Amount); err != nil {
		return fmt.Errorf("update client wallet: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) ReturnHoldToContract(ctx context.Context, holdID string) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := TransitionHoldTx(ctx, tx, holdID, StatusReleasedBackToContract); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) SplitHold(ctx context.Context, holdID string, refund, release *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := TransitionHoldTx(ctx, tx, holdID, StatusAmountSplit); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, refund); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, release); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE client_wallets SET balance = balance - $2,
			total_refunded = total_refunded + $3, updated_at = NOW()
		WHERE owner_id = $1`, refund.ClientID, release.Amount, refund.Amount); err != nil {
		return fmt.Errorf("update client wallet: %w", err)
	}
	if _, err := tx.ExecContext(ctx, creditFreelancerWalletSQL,
		release.FreelancerID, release.Amount, release.Amount, "0.00"); err != nil {
		return fmt.Errorf("credit freelancer wallet: %w", err)
	}
	return tx.Commit()
}

func availableForWithdrawal(ctx context.Context, q queryRower, ownerID string, role Role) (string, error) {
	earnedPurpose, ownerCol := "release", "freelancer_id"
	if role == RoleClient {
		earnedPurpose, ownerCol = "refund", "client_id"
	}
	var available string
	err := q.QueryRowContext(ctx, `
		SELECT (
			COALESCE(SUM(amount) FILTER (WHERE purpose = $2), 0) -
			COALESCE(SUM(amount) FILTER (WHERE purpose = 'withdrawal'
				AND role = $3
				AND status IN ('withdrawal_requested', 'withdrawal_approved')), 0)
		)::numeric(14,2)
		FROM ledger_entries
		WHERE `+ownerCol+` = $1`,
		ownerID, earnedPurpose, string(role)).Scan(&available)
	if err != nil {
		return "", fmt.Errorf("aggregate withdrawable: %w", err)
	}
	return available, nil
}

func (s *PostgresStore) AvailableForWithdrawal(ctx context.Context, ownerID string, role Role) (string, error) {
	return availableForWithdrawal(ctx, s.db, ownerID, role)
}

func (s *PostgresStore) RequestWithdrawal(ctx context.Context, e *Entry) error {
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	owner := e.FreelancerID
	if e.Role == RoleClient {
		owner = e.ClientID
	}
	available, err := availableForWithdrawal(ctx, tx, owner, e.Role)
	if err != nil {
		return err
	}
	if money.Cmp(e.Amount, available) > 0 {
		return ErrNegativeBalance
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) ResolveWithdrawal(ctx context.Context, entryID string, approve bool) (*Entry, error) {
	to := StatusWithdrawalRejected
	if approve {
		to = StatusWithdrawalApproved
	}
	tx, err := s.beginSerializable(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE ledger_entries SET status = $2
		WHERE id = $1 AND purpose = 'withdrawal'
		  AND status = 'withdrawal_requested'
		RETURNING `+entryColumns, entryID, string(to))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_entries
				WHERE id = $1 AND purpose = 'withdrawal')`, entryID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check withdrawal: %w", err)
		}
		if !exists {
			return nil, ErrWithdrawalNotFound
		}
		return nil, ErrWithdrawalResolved
	}
	if err != nil {
		return nil, fmt.Errorf("resolve withdrawal: %w", err)
	}

	if approve {
		if e.Role == RoleClient {
			if _, err := tx.ExecContext(ctx, `
				UPDATE client_wallets SET balance = balance - $2, updated_at = NOW()
				WHERE owner_id = $1`, e.ClientID, e.Amount); err != nil {
				return nil, fmt.Errorf("debit client wallet: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				UPDATE freelancer_wallets SET balance = balance - $2,
					total_withdrawn = total_withdrawn + $2, updated_at = NOW()
				WHERE owner_id = $1`, e.FreelancerID, e.Amount); err != nil {
				return nil, fmt.Errorf("debit freelancer wallet: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetWithdrawal(ctx context.Context, entryID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE id = $1 AND purpose = 'withdrawal'`, entryID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListWithdrawals(ctx context.Context, ownerID string, role Role, cursor *pagination.Cursor, limit int) ([]*Entry, error) {
	ownerCol := "freelancer_id"
	if role == RoleClient {
		ownerCol = "client_id"
	}
	query := `
		SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE ` + ownerCol + ` = $1 AND purpose = 'withdrawal' AND role = $2`
	args := []any{ownerID, string(role)}
	if cursor != nil {
		query += ` AND (created_at, id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + fmt.Sprintf("%d", limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) EnsureClientWallet(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_wallets (owner_id, balance, total_funded, total_refunded, updated_at)
		VALUES ($1, 0, 0, 0, NOW())
		ON CONFLICT (owner_id) DO NOTHING`, ownerID)
	if err != nil {
		return fmt.Errorf("ensure client wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnsureFreelancerWallet(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO freelancer_wallets (owner_id, balance, total_earned,
			total_withdrawn, total_commission_paid, updated_at)
		VALUES ($1, 0, 0, 0, 0, NOW())
		ON CONFLICT (owner_id) DO NOTHING`, ownerID)
	if err != nil {
		return fmt.Errorf("ensure freelancer wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetClientWallet(ctx context.Context, ownerID string) (*ClientWallet, error) {
	w := &ClientWallet{OwnerID: ownerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, total_funded, total_refunded, updated_at
		FROM client_wallets WHERE owner_id = $1`, ownerID).
		Scan(&w.Balance, &w.TotalFunded, &w.TotalRefunded, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		w.Balance, w.TotalFunded, w.TotalRefunded = "0.00", "0.00", "0.00"
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) GetFreelancerWallet(ctx context.Context, ownerID string) (*FreelancerWallet, error) {
	w := &FreelancerWallet{OwnerID: ownerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, total_earned, total_withdrawn, total_commission_paid, updated_at
		FROM freelancer_wallets WHERE owner_id = $1`, ownerID).
		Scan(&w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.TotalCommissionPaid, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		w.Balance, w.TotalEarned, w.TotalWithdrawn, w.TotalCommissionPaid = "0.00", "0.00", "0.00", "0.00"
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get freelancer wallet: %w", err)
	}
	return w, nil
}

// InsertEntryTx appends a ledger entry through q.
func InsertEntryTx(ctx context.Context, q DBTX, e *Entry) error {
	return insertEntry(ctx, q, e)
}

// CreditClientWalletTx credits a client wallet for a funding entry through q.
func CreditClientWalletTx(ctx context.Context, q DBTX, ownerID, amount string) error {
	if _, err := q.ExecContext(ctx, creditClientWalletSQL, ownerID, amount); err != nil {
		return fmt.Errorf("credit client wallet: %w", err)
	}
	return nil
}

// ContractBalanceTx computes the contract aggregate through q.
func ContractBalanceTx(ctx context.Context, q DBTX, contractID string) (*ContractBalance, error) {
	return contractBalance(ctx, q, contractID)
}

// SettleWalletsTx applies the wallet side of a hold settlement through q:
// debit the client by the gross, credit the freelancer by the net and bump
// lifetime totals.
func SettleWalletsTx(ctx context.Context, q DBTX, clientID, freelancerID, net, commission string) error {
	gross := money.Add(net, commission)
	if _, err := q.ExecContext(ctx, `
		UPDATE client_wallets SET balance = balance - $2, updated_at = NOW()
		WHERE owner_id = $1`, clientID, gross); err != nil {
		return fmt.Errorf("debit client wallet: %w", err)
	}
	if _, err := q.ExecContext(ctx, creditFreelancerWalletSQL,
		freelancerID, net, gross, commission); err != nil {
		return fmt.Errorf("credit freelancer wallet: %w", err)
	}
	return nil
}

// BumpClientRefundTx records a refund in the client wallet totals through q.
func BumpClientRefundTx(ctx context.Context, q DBTX, ownerID, amount string) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO client_wallets (owner_id, balance, total_funded, total_refunded, updated_at)
		VALUES ($1, 0, 0, $2, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			total_refunded = client_wallets.total_refunded + EXCLUDED.total_refunded,
			updated_at = NOW()`, ownerID, amount); err != nil {
		return fmt.Errorf("update client wallet: %w", err)
	}
	return nil
}
