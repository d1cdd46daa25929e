package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateCredential inserts a new sealed credential and returns its generated ID.
func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) (string, error) {
	id := uuid.New()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials
			(id, owner, name, source_kind, ciphertext, iv, tag, display_host, display_port, display_db, validation_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, c.Owner, c.Name, c.SourceKind, c.Ciphertext, c.IV, c.Tag, c.DisplayHost, c.DisplayPort, c.DisplayDB, c.ValidationState)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to insert credential", slog.String("error", err.Error()))
		return "", fmt.Errorf("insert credential: %w", err)
	}

	return id.String(), nil
}

// GetCredential loads one credential by ID, including sealed secret material.
func (s *Store) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	credID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid credential id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, name, source_kind, ciphertext, iv, tag, display_host, display_port, display_db,
		       validation_state, last_validated_at, created_at
		FROM credentials WHERE id = $1
	`, credID)

	c := &models.Credential{}
	var idVal uuid.UUID
	if err := row.Scan(&idVal, &c.Owner, &c.Name, &c.SourceKind, &c.Ciphertext, &c.IV, &c.Tag,
		&c.DisplayHost, &c.DisplayPort, &c.DisplayDB, &c.ValidationState, &c.LastValidatedAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	c.ID = idVal.String()

	return c, nil
}

// ListCredentials returns all credentials owned by owner, secret material included.
func (s *Store) ListCredentials(ctx context.Context, owner string) ([]models.Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, source_kind, ciphertext, iv, tag, display_host, display_port, display_db,
		       validation_state, last_validated_at, created_at
		FROM credentials WHERE owner = $1 ORDER BY created_at DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		var c models.Credential
		var idVal uuid.UUID
		if err := rows.Scan(&idVal, &c.Owner, &c.Name, &c.SourceKind, &c.Ciphertext, &c.IV, &c.Tag,
			&c.DisplayHost, &c.DisplayPort, &c.DisplayDB, &c.ValidationState, &c.LastValidatedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.ID = idVal.String()
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCredentialValidation records the outcome of a credential test() probe.
func (s *Store) UpdateCredentialValidation(ctx context.Context, id string, state models.CredentialValidationState) error {
	credID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid credential id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE credentials SET validation_state = $1, last_validated_at = now() WHERE id = $2
	`, state, credID)
	if err != nil {
		return fmt.Errorf("update credential validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteCredential removes a credential. The caller must ensure no live
// pipeline still references it (enforced at the foreign key level too).
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	credID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid credential id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, credID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
