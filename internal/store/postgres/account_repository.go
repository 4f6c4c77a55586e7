// Copyright 2026 The Kubernaut Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/team"
)

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

// CreateAccount inserts the account and binds its identities.
func (s *Store) CreateAccount(ctx context.Context, account *identity.Account) error {
	return s.withTx(ctx, func(tx *Store) error {
		_, err := tx.q.Exec(ctx, `
			INSERT INTO accounts (id, display_name, created_on, created_by)
			VALUES ($1, $2, $3, $4)
		`, account.ID, account.DisplayName, account.CreatedOn, account.CreatedBy)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: account %s already exists", authz.ErrConstraintViolation, account.ID)
			}
			return fmt.Errorf("failed to insert account: %w", err)
		}

		for _, ident := range account.Identities {
			_, err := tx.q.Exec(ctx, `
				INSERT INTO account_identities (account_id, name, provider, type)
				VALUES ($1, $2, $3, $4)
			`, account.ID, ident.Name, ident.Provider, ident.Type)
			if err != nil {
				if isUniqueViolation(err) {
					return identity.ErrIdentityConflict
				}
				return fmt.Errorf("failed to insert identity: %w", err)
			}
		}
		return nil
	})
}

// GetAccount retrieves an active account by ID
func (s *Store) GetAccount(ctx context.Context, id string) (*identity.Account, error) {
	account, err := s.scanAccount(s.q.QueryRow(ctx, `
		SELECT id, display_name, created_on, created_by, deleted_on, deleted_by
		FROM accounts
		WHERE id = $1 AND deleted_on IS NULL
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "account", ID: id}
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if err := s.loadIdentities(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// FindAccountByIdentity retrieves the active account bound to the identity
func (s *Store) FindAccountByIdentity(ctx context.Context, ident identity.Identity) (*identity.Account, error) {
	account, err := s.scanAccount(s.q.QueryRow(ctx, `
		SELECT a.id, a.display_name, a.created_on, a.created_by, a.deleted_on, a.deleted_by
		FROM accounts a
		JOIN account_identities i ON i.account_id = a.id AND i.released_on IS NULL
		WHERE i.name = $1 AND i.provider = $2 AND i.type = $3 AND a.deleted_on IS NULL
	`, ident.Name, ident.Provider, ident.Type))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "identity", ID: ident.Provider + "/" + ident.Name}
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if err := s.loadIdentities(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount soft-deletes an account and releases its identities.
func (s *Store) DeleteAccount(ctx context.Context, id string, meta authz.Meta) error {
	return s.withTx(ctx, func(tx *Store) error {
		result, err := tx.q.Exec(ctx, `
			UPDATE accounts SET deleted_on = $2, deleted_by = $3
			WHERE id = $1 AND deleted_on IS NULL
		`, id, meta.Date, meta.Account)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		if result.RowsAffected() == 0 {
			return &authz.NotFoundError{Kind: "account", ID: id}
		}

		if _, err := tx.q.Exec(ctx, `
			UPDATE account_identities SET released_on = $2
			WHERE account_id = $1 AND released_on IS NULL
		`, id, meta.Date); err != nil {
			return fmt.Errorf("failed to release identities: %w", err)
		}
		return nil
	})
}

func (s *Store) scanAccount(row pgx.Row) (*identity.Account, error) {
	var account identity.Account
	var deletedBy sql.NullString
	if err := row.Scan(
		&account.ID, &account.DisplayName, &account.CreatedOn, &account.CreatedBy,
		&account.DeletedOn, &deletedBy,
	); err != nil {
		return nil, err
	}
	if deletedBy.Valid {
		account.DeletedBy = &deletedBy.String
	}
	return &account, nil
}

func (s *Store) loadIdentities(ctx context.Context, account *identity.Account) error {
	rows, err := s.q.Query(ctx, `
		SELECT name, provider, type
		FROM account_identities
		WHERE account_id = $1 AND released_on IS NULL
		ORDER BY provider, name
	`, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}
	idents, err := pgx.CollectRows(rows, pgx.RowToStructByPos[identity.Identity])
	if err != nil {
		return fmt.Errorf("failed to scan identities: %w", err)
	}
	account.Identities = idents
	return nil
}

// -----------------------------------------------------------------------------
// Teams
// -----------------------------------------------------------------------------

const teamColumns = `id, name, attributes, created_on, created_by, deleted_on, deleted_by`

// CreateTeam stores a team; a duplicate active name fails with team.ErrNameTaken.
func (s *Store) CreateTeam(ctx context.Context, t *team.Team) error {
	attrs := t.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO teams (id, name, attributes, created_on, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, attrs, t.CreatedOn, t.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return team.ErrNameTaken
		}
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (*team.Team, error) {
	t, err := scanTeam(s.q.QueryRow(ctx, `
		SELECT `+teamColumns+` FROM teams WHERE id = $1 AND deleted_on IS NULL
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "team", ID: id}
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (*team.Team, error) {
	t, err := scanTeam(s.q.QueryRow(ctx, `
		SELECT `+teamColumns+` FROM teams WHERE name = $1 AND deleted_on IS NULL
	`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "team", ID: name}
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]*team.Team, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+teamColumns+` FROM teams WHERE deleted_on IS NULL ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*team.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// DeleteTeam soft-deletes a team. Its grants and memberships stay on record
// but stop resolving.
func (s *Store) DeleteTeam(ctx context.Context, id string, meta authz.Meta) error {
	result, err := s.q.Exec(ctx, `
		UPDATE teams SET deleted_on = $2, deleted_by = $3
		WHERE id = $1 AND deleted_on IS NULL
	`, id, meta.Date, meta.Account)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "team", ID: id}
	}
	return nil
}

func scanTeam(row pgx.Row) (*team.Team, error) {
	var t team.Team
	if err := row.Scan(&t.ID, &t.Name, &t.Attributes, &t.CreatedOn, &t.CreatedBy, &t.DeletedOn, &t.DeletedBy); err != nil {
		return nil, err
	}
	if t.Attributes == nil {
		t.Attributes = map[string]string{}
	}
	return &t, nil
}
