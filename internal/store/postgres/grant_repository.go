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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/team"
)

var (
	_ identity.Store  = (*Store)(nil)
	_ team.Repository = (*Store)(nil)
)

// InTx runs fn against a Store bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx identity.Store) error) error {
	return s.withTx(ctx, func(tx *Store) error { return fn(tx) })
}

const grantColumns = `id, subject_kind, subject_id, role, scope_class, scope_id, created_on, created_by, revoked_on, revoked_by`

// insertGrantAttempts bounds the insert/read-back loop when a concurrent
// revoke removes the live grant between the two statements.
const insertGrantAttempts = 3

// InsertGrant stores the grant unless an equivalent live grant exists, and
// returns whichever grant is live afterwards.
func (s *Store) InsertGrant(ctx context.Context, grant *authz.RoleGrant) (*authz.RoleGrant, error) {
	key := authz.GrantKey{Subject: grant.Subject, Role: grant.Role, Scope: grant.Scope, ScopeID: grant.ScopeID}
	for range insertGrantAttempts {
		stored, err := scanGrant(s.q.QueryRow(ctx, `
			INSERT INTO role_grants (id, subject_kind, subject_id, role, scope_class, scope_id, created_on, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT DO NOTHING
			RETURNING `+grantColumns,
			grant.ID, string(grant.Subject.Kind), grant.Subject.ID, string(grant.Role),
			string(grant.Scope), grant.ScopeID, grant.CreatedOn, grant.CreatedBy,
		))
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to insert grant: %w", err)
		}

		stored, err = scanGrant(s.q.QueryRow(ctx, `
			SELECT `+grantColumns+`
			FROM role_grants
			WHERE subject_kind = $1 AND subject_id = $2 AND role = $3 AND scope_class = $4
			  AND scope_id IS NOT DISTINCT FROM $5 AND revoked_on IS NULL
		`, keyArgs(key)...))
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to read grant: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to insert grant: live grant kept changing after %d attempts", insertGrantAttempts)
}

func (s *Store) RevokeGrant(ctx context.Context, key authz.GrantKey, meta authz.Meta) (bool, error) {
	args := append(keyArgs(key), meta.Date, meta.Account)
	result, err := s.q.Exec(ctx, `
		UPDATE role_grants
		SET revoked_on = $6, revoked_by = $7
		WHERE subject_kind = $1 AND subject_id = $2 AND role = $3 AND scope_class = $4
		  AND scope_id IS NOT DISTINCT FROM $5 AND revoked_on IS NULL
	`, args...)
	if err != nil {
		return false, fmt.Errorf("failed to revoke grant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *Store) ListActiveGrants(ctx context.Context, subjects []authz.Subject, classes ...authz.ScopeClass) ([]*authz.RoleGrant, error) {
	if len(subjects) == 0 {
		return nil, nil
	}
	kinds := make([]string, len(subjects))
	ids := make([]string, len(subjects))
	for i, subj := range subjects {
		kinds[i], ids[i] = string(subj.Kind), subj.ID
	}
	classNames := make([]string, len(classes))
	for i, c := range classes {
		classNames[i] = string(c)
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+grantColumns+`
		FROM role_grants
		WHERE revoked_on IS NULL
		  AND (subject_kind, subject_id) IN (SELECT * FROM unnest($1::text[], $2::text[]))
		  AND (cardinality($3::text[]) = 0 OR scope_class = ANY($3::text[]))
		ORDER BY created_on, id
	`, kinds, ids, classNames)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*authz.RoleGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) AnyActiveGrant(ctx context.Context, role authz.RoleName, class authz.ScopeClass) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_grants
			WHERE role = $1 AND scope_class = $2 AND revoked_on IS NULL
		)
	`, string(role), string(class)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grants: %w", err)
	}
	return exists, nil
}

func keyArgs(key authz.GrantKey) []any {
	return []any{string(key.Subject.Kind), key.Subject.ID, string(key.Role), string(key.Scope), key.ScopeID}
}

func scanGrant(row pgx.Row) (*authz.RoleGrant, error) {
	var g authz.RoleGrant
	var kind, role, scope string
	if err := row.Scan(
		&g.ID, &kind, &g.Subject.ID, &role, &scope, &g.ScopeID,
		&g.CreatedOn, &g.CreatedBy, &g.RevokedOn, &g.RevokedBy,
	); err != nil {
		return nil, err
	}
	g.Subject.Kind = authz.SubjectKind(kind)
	g.Role = authz.RoleName(role)
	g.Scope = authz.ScopeClass(scope)
	return &g, nil
}

// InsertMembership stores the membership unless a live one exists. Both
// ends must be active.
func (s *Store) InsertMembership(ctx context.Context, membership *authz.Membership) (*authz.Membership, error) {
	var out *authz.Membership
	err := s.withTx(ctx, func(tx *Store) error {
		for _, subj := range []authz.Subject{authz.AccountSubject(membership.AccountID), authz.TeamSubject(membership.TeamID)} {
			exists, err := tx.SubjectExists(ctx, subj)
			if err != nil {
				return err
			}
			if !exists {
				return &authz.NotFoundError{Kind: string(subj.Kind), ID: subj.ID}
			}
		}

		_, err := tx.q.Exec(ctx, `
			INSERT INTO team_memberships (id, account_id, team_id, created_on, created_by)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING
		`, membership.ID, membership.AccountID, membership.TeamID, membership.CreatedOn, membership.CreatedBy)
		if err != nil {
			if isForeignKeyViolation(err) {
				return &authz.NotFoundError{Kind: "account or team", ID: membership.AccountID + "/" + membership.TeamID}
			}
			return fmt.Errorf("failed to insert membership: %w", err)
		}

		row := tx.q.QueryRow(ctx, `
			SELECT id, account_id, team_id, created_on, created_by, revoked_on, revoked_by
			FROM team_memberships
			WHERE account_id = $1 AND team_id = $2 AND revoked_on IS NULL
		`, membership.AccountID, membership.TeamID)
		m, err := scanMembership(row)
		if err != nil {
			return fmt.Errorf("failed to read membership: %w", err)
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Store) RevokeMembership(ctx context.Context, accountID, teamID string, meta authz.Meta) (bool, error) {
	result, err := s.q.Exec(ctx, `
		UPDATE team_memberships
		SET revoked_on = $3, revoked_by = $4
		WHERE account_id = $1 AND team_id = $2 AND revoked_on IS NULL
	`, accountID, teamID, meta.Date, meta.Account)
	if err != nil {
		return false, fmt.Errorf("failed to revoke membership: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListActiveMemberships skips memberships of deleted teams.
func (s *Store) ListActiveMemberships(ctx context.Context, accountID string) ([]*authz.Membership, error) {
	rows, err := s.q.Query(ctx, `
		SELECT m.id, m.account_id, m.team_id, m.created_on, m.created_by, m.revoked_on, m.revoked_by
		FROM team_memberships m
		JOIN teams t ON t.id = m.team_id AND t.deleted_on IS NULL
		WHERE m.account_id = $1 AND m.revoked_on IS NULL
		ORDER BY m.created_on, m.id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*authz.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func scanMembership(row pgx.Row) (*authz.Membership, error) {
	var m authz.Membership
	if err := row.Scan(&m.ID, &m.AccountID, &m.TeamID, &m.CreatedOn, &m.CreatedBy, &m.RevokedOn, &m.RevokedBy); err != nil {
		return nil, err
	}
	return &m, nil
}

// -----------------------------------------------------------------------------
// Directory
// -----------------------------------------------------------------------------

func (s *Store) SubjectExists(ctx context.Context, subject authz.Subject) (bool, error) {
	switch subject.Kind {
	case authz.SubjectAccount:
		return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND deleted_on IS NULL)`, subject.ID)
	case authz.SubjectTeam:
		return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1 AND deleted_on IS NULL)`, subject.ID)
	}
	return false, nil
}

func (s *Store) ResourceExists(ctx context.Context, class authz.ScopeClass, id string) (bool, error) {
	switch class {
	case authz.ScopeTeam:
		return s.SubjectExists(ctx, authz.TeamSubject(id))
	case authz.ScopeRegistry, authz.ScopeNamespace:
		return s.exists(ctx, `
			SELECT EXISTS (SELECT 1 FROM resources WHERE class = $1 AND id = $2 AND deleted_on IS NULL)
		`, string(class), id)
	}
	return false, nil
}

func (s *Store) ListResources(ctx context.Context, class authz.ScopeClass) ([]authz.Resource, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch class {
	case authz.ScopeTeam:
		rows, err = s.q.Query(ctx, `SELECT id, name FROM teams WHERE deleted_on IS NULL ORDER BY name, id`)
	case authz.ScopeRegistry, authz.ScopeNamespace:
		rows, err = s.q.Query(ctx, `
			SELECT id, name FROM resources WHERE class = $1 AND deleted_on IS NULL ORDER BY name, id
		`, string(class))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s resources: %w", class, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (authz.Resource, error) {
		var r authz.Resource
		err := row.Scan(&r.ID, &r.Name)
		return r, err
	})
}

// CreateResource registers a registry or namespace.
func (s *Store) CreateResource(ctx context.Context, class authz.ScopeClass, res authz.Resource) error {
	if class != authz.ScopeRegistry && class != authz.ScopeNamespace {
		return fmt.Errorf("%w: %s resources are managed elsewhere", authz.ErrInvalidInput, class)
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO resources (class, id, name, created_on) VALUES ($1, $2, $3, $4)
	`, string(class), res.ID, res.Name, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s already exists", authz.ErrConstraintViolation, class, res.ID)
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := s.q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}
