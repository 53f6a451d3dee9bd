package users

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	u := &User{ID: id}
	var accountName, accountNumber, bankName sql.NullString
	var verified sql.NullBool

	err := p.db.QueryRowContext(ctx, `
		SELECT role, bank_account_name, bank_account_number, bank_name, bank_verified,
			wallet_balance, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.Role, &accountName, &accountNumber, &bankName, &verified,
		&u.WalletBalance, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if accountNumber.Valid {
		u.Bank = &BankDetails{
			AccountName:   accountName.String,
			AccountNumber: accountNumber.String,
			BankName:      bankName.String,
			Verified:      verified.Bool,
		}
	}
	return u, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, u *User) error {
	var accountName, accountNumber, bankName interface{}
	var verified bool
	if u.Bank != nil {
		accountName = u.Bank.AccountName
		accountNumber = u.Bank.AccountNumber
		bankName = u.Bank.BankName
		verified = u.Bank.Verified
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, role, bank_account_name, bank_account_number, bank_name,
			bank_verified, wallet_balance, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7,''),'0')::NUMERIC(14,2), NOW())
		ON CONFLICT (id) DO UPDATE SET
			role                = EXCLUDED.role,
			bank_account_name   = EXCLUDED.bank_account_name,
			bank_account_number = EXCLUDED.bank_account_number,
			bank_name           = EXCLUDED.bank_name,
			bank_verified       = EXCLUDED.bank_verified,
			updated_at          = NOW()
	`, u.ID, u.Role, accountName, accountNumber, bankName, verified, u.WalletBalance)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (p *PostgresStore) SetBankDetails(ctx context.Context, id string, bank BankDetails) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET
			bank_account_name   = $2,
			bank_account_number = $3,
			bank_name           = $4,
			bank_verified       = $5,
			updated_at          = NOW()
		WHERE id = $1
	`, id, bank.AccountName, bank.AccountNumber, bank.BankName, bank.Verified)
	if err != nil {
		return fmt.Errorf("failed to set bank details: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateWalletMirror(ctx context.Context, id, balance string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET wallet_balance = $2::NUMERIC(14,2), updated_at = NOW() WHERE id = $1
	`, id, balance)
	if err != nil {
		return fmt.Errorf("failed to update wallet mirror: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
