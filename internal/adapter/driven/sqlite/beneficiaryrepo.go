package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/efisher/payadmin/internal/domain/model"
	"github.com/efisher/payadmin/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BeneficiaryStore = (*BeneficiaryRepo)(nil)

// BeneficiaryRepo is the SQLite implementation of the BeneficiaryStore port
// interface. It holds local annotations only; the backend remains the source
// of truth for the beneficiaries themselves.
type BeneficiaryRepo struct {
	db *DB
}

// NewBeneficiaryRepo creates a new BeneficiaryRepo backed by the given DB.
func NewBeneficiaryRepo(db *DB) *BeneficiaryRepo {
	return &BeneficiaryRepo{db: db}
}

// Upsert stores or replaces the annotation for (environment, backendID).
func (r *BeneficiaryRepo) Upsert(ctx context.Context, b model.Beneficiary) error {
	const query = `
		INSERT INTO beneficiaries (environment, backend_id, display_name, notes, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (environment, backend_id)
		DO UPDATE SET display_name = excluded.display_name, notes = excluded.notes, updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.Writer.ExecContext(ctx, query, b.Environment, b.BackendID, b.DisplayName, b.Notes)
	if err != nil {
		return fmt.Errorf("upsert beneficiary %q in %q: %w", b.BackendID, b.Environment, err)
	}
	return nil
}

// Get returns the annotation for (environment, backendID), or (nil, nil)
// when none exists.
func (r *BeneficiaryRepo) Get(ctx context.Context, env model.Environment, backendID string) (*model.Beneficiary, error) {
	const query = `
		SELECT id, environment, backend_id, display_name, notes, updated_at
		FROM beneficiaries WHERE environment = ? AND backend_id = ?`

	b, err := scanBeneficiary(r.db.Reader.QueryRowContext(ctx, query, env, backendID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get beneficiary %q in %q: %w", backendID, env, err)
	}
	return b, nil
}

// List returns all annotations for the environment, ordered by display name.
func (r *BeneficiaryRepo) List(ctx context.Context, env model.Environment) ([]model.Beneficiary, error) {
	const query = `
		SELECT id, environment, backend_id, display_name, notes, updated_at
		FROM beneficiaries WHERE environment = ? ORDER BY display_name, backend_id`

	rows, err := r.db.Reader.QueryContext(ctx, query, env)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries for %q: %w", env, err)
	}
	defer rows.Close()

	var result []model.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beneficiaries: %w", err)
	}

	return result, nil
}

// Delete removes the annotation for (environment, backendID). Deleting an
// absent annotation is not an error.
func (r *BeneficiaryRepo) Delete(ctx context.Context, env model.Environment, backendID string) error {
	const query = `DELETE FROM beneficiaries WHERE environment = ? AND backend_id = ?`

	_, err := r.db.Writer.ExecContext(ctx, query, env, backendID)
	if err != nil {
		return fmt.Errorf("delete beneficiary %q in %q: %w", backendID, env, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(s scanner) (*model.Beneficiary, error) {
	var b model.Beneficiary
	var updatedAt string
	if err := s.Scan(&b.ID, &b.Environment, &b.BackendID, &b.DisplayName, &b.Notes, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &b, nil
}
