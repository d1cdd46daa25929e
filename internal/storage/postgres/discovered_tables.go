package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// UpsertDiscoveredTable stores (or refreshes) the cached introspection
// result for one (credential, schema, table).
func (s *Store) UpsertDiscoveredTable(ctx context.Context, t *models.DiscoveredTable) (string, error) {
	credID, err := uuid.Parse(t.CredentialID)
	if err != nil {
		return "", fmt.Errorf("invalid credential id: %w", err)
	}

	columnsJSON, err := marshalJSON(t.Columns)
	if err != nil {
		return "", err
	}
	foreignKeysJSON, err := marshalJSON(t.ForeignKeys)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO discovered_tables
			(id, credential_id, schema_name, table_name, columns, primary_key, foreign_keys,
			 row_count_estimate, size_bytes, has_primary_key, replica_identity, cdc_eligible,
			 eligibility_issues, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (credential_id, schema_name, table_name) DO UPDATE SET
			columns = EXCLUDED.columns,
			primary_key = EXCLUDED.primary_key,
			foreign_keys = EXCLUDED.foreign_keys,
			row_count_estimate = EXCLUDED.row_count_estimate,
			size_bytes = EXCLUDED.size_bytes,
			has_primary_key = EXCLUDED.has_primary_key,
			replica_identity = EXCLUDED.replica_identity,
			cdc_eligible = EXCLUDED.cdc_eligible,
			eligibility_issues = EXCLUDED.eligibility_issues,
			discovered_at = EXCLUDED.discovered_at
		RETURNING id
	`, id, credID, t.Schema, t.Table, columnsJSON, t.PrimaryKey, foreignKeysJSON,
		t.RowCountEstimate, t.SizeBytes, t.HasPrimaryKey, t.ReplicaIdentity, t.CDCEligible,
		t.EligibilityIssues, t.DiscoveredAt)

	var returnedID uuid.UUID
	if err := row.Scan(&returnedID); err != nil {
		return "", fmt.Errorf("upsert discovered table: %w", err)
	}

	return returnedID.String(), nil
}

// ListDiscoveredTables returns every cached table for a credential.
func (s *Store) ListDiscoveredTables(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error) {
	credID, err := uuid.Parse(credentialID)
	if err != nil {
		return nil, fmt.Errorf("invalid credential id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, credential_id, schema_name, table_name, columns, primary_key, foreign_keys,
		       row_count_estimate, size_bytes, has_primary_key, replica_identity, cdc_eligible,
		       eligibility_issues, discovered_at
		FROM discovered_tables WHERE credential_id = $1
	`, credID)
	if err != nil {
		return nil, fmt.Errorf("list discovered tables: %w", err)
	}
	defer rows.Close()

	var out []models.DiscoveredTable
	for rows.Next() {
		var t models.DiscoveredTable
		var idVal, credIDVal uuid.UUID
		var columnsJSON, foreignKeysJSON []byte
		if err := rows.Scan(&idVal, &credIDVal, &t.Schema, &t.Table, &columnsJSON, &t.PrimaryKey,
			&foreignKeysJSON, &t.RowCountEstimate, &t.SizeBytes, &t.HasPrimaryKey, &t.ReplicaIdentity,
			&t.CDCEligible, &t.EligibilityIssues, &t.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan discovered table: %w", err)
		}
		t.ID = idVal.String()
		t.CredentialID = credIDVal.String()
		if err := unmarshalJSON(columnsJSON, &t.Columns); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(foreignKeysJSON, &t.ForeignKeys); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
