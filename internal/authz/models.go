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

package authz

import (
	"context"
	"fmt"
	"time"
)

// RootAccountID is the seeded account that attributes bootstrap and seed
// mutations. It never holds roles.
const RootAccountID = "00000000-0000-0000-0000-000000000000"

// SubjectKind distinguishes the owners of a role grant.
type SubjectKind string

const (
	SubjectAccount SubjectKind = "account"
	SubjectTeam    SubjectKind = "team"
)

// Subject is the account or team a grant is issued to.
type Subject struct {
	Kind SubjectKind
	ID   string
}

// AccountSubject returns the subject for an account.
func AccountSubject(id string) Subject {
	return Subject{Kind: SubjectAccount, ID: id}
}

// TeamSubject returns the subject for a team.
func TeamSubject(id string) Subject {
	return Subject{Kind: SubjectTeam, ID: id}
}

func (s Subject) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// ScopeClass defines the level at which a role is granted.
type ScopeClass string

const (
	ScopeSystem    ScopeClass = "system"
	ScopeGlobal    ScopeClass = "global"
	ScopeRegistry  ScopeClass = "registry"
	ScopeNamespace ScopeClass = "namespace"
	ScopeTeam      ScopeClass = "team"
)

// ParseScopeClass validates a scope class name.
func ParseScopeClass(s string) (ScopeClass, error) {
	switch c := ScopeClass(s); c {
	case ScopeSystem, ScopeGlobal, ScopeRegistry, ScopeNamespace, ScopeTeam:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown scope class %q", ErrInvalidInput, s)
}

// Concrete reports whether grants of this class target individual resources.
func (c ScopeClass) Concrete() bool {
	return c == ScopeRegistry || c == ScopeNamespace || c == ScopeTeam
}

// ReadPermission is the permission that makes a resource of this class
// visible to an actor.
func (c ScopeClass) ReadPermission() Permission {
	switch c {
	case ScopeRegistry:
		return PermRegistriesRead
	case ScopeNamespace:
		return PermNamespacesRead
	case ScopeTeam:
		return PermTeamsRead
	}
	return PermAccountsRead
}

// word is the scope word used in delegation messages; empty for system.
func (c ScopeClass) word() string {
	if c == ScopeSystem {
		return ""
	}
	return string(c)
}

// RoleGrant assigns a role to a subject at a scope. A nil ScopeID is the
// wildcard over every resource of the class. Grants are revoked, never deleted.
type RoleGrant struct {
	ID        string
	Subject   Subject
	Role      RoleName
	Scope     ScopeClass
	ScopeID   *string // NULL for system, global and wildcard grants
	CreatedOn time.Time
	CreatedBy string
	RevokedOn *time.Time
	RevokedBy *string
}

// Active reports whether the grant has not been revoked.
func (g *RoleGrant) Active() bool {
	return g.RevokedOn == nil
}

// Covers reports whether the grant applies to the given scope target.
func (g *RoleGrant) Covers(class ScopeClass, scopeID *string) bool {
	if g.Scope != class {
		return false
	}
	if g.ScopeID == nil {
		return true
	}
	return scopeID != nil && *g.ScopeID == *scopeID
}

// Membership links an account to a team. Memberships are revoked, never deleted.
type Membership struct {
	ID        string
	AccountID string
	TeamID    string
	CreatedOn time.Time
	CreatedBy string
	RevokedOn *time.Time
	RevokedBy *string
}

// Active reports whether the membership has not been revoked.
func (m *Membership) Active() bool {
	return m.RevokedOn == nil
}

// Resource is a registry, namespace or team as seen by the engine.
type Resource struct {
	ID   string
	Name string
}

// Meta attributes a mutation to an acting account at a point in time.
type Meta struct {
	Date    time.Time
	Account string
}

// GrantKey identifies the active grant a mutation targets.
type GrantKey struct {
	Subject Subject
	Role    RoleName
	Scope   ScopeClass
	ScopeID *string
}

// GrantRepository defines the interface for role grant persistence
type GrantRepository interface {
	// InsertGrant stores the grant unless an active grant with the same key
	// exists. It returns the surviving active grant in both cases.
	InsertGrant(ctx context.Context, grant *RoleGrant) (*RoleGrant, error)

	// RevokeGrant soft-revokes the active grant matching key. It reports
	// whether a grant was revoked; a missing grant is not an error.
	RevokeGrant(ctx context.Context, key GrantKey, meta Meta) (bool, error)

	// ListActiveGrants retrieves active grants owned by any of the subjects,
	// optionally restricted to the given scope classes.
	ListActiveGrants(ctx context.Context, subjects []Subject, classes ...ScopeClass) ([]*RoleGrant, error)

	// AnyActiveGrant reports whether any subject holds an active grant of
	// role at the class.
	AnyActiveGrant(ctx context.Context, role RoleName, class ScopeClass) (bool, error)
}

// MembershipRepository defines the interface for team membership persistence
type MembershipRepository interface {
	// InsertMembership stores the membership unless an active one exists.
	InsertMembership(ctx context.Context, membership *Membership) (*Membership, error)

	// RevokeMembership soft-revokes the active membership, if any.
	RevokeMembership(ctx context.Context, accountID, teamID string, meta Meta) (bool, error)

	// ListActiveMemberships retrieves the active memberships of an account.
	ListActiveMemberships(ctx context.Context, accountID string) ([]*Membership, error)
}

// DirectoryRepository resolves the subjects and resources grants refer to.
type DirectoryRepository interface {
	// SubjectExists reports whether an active account or team exists.
	SubjectExists(ctx context.Context, subject Subject) (bool, error)

	// ResourceExists reports whether an active resource of the class exists.
	ResourceExists(ctx context.Context, class ScopeClass, id string) (bool, error)

	// ListResources retrieves active resources of a concrete class ordered by name.
	ListResources(ctx context.Context, class ScopeClass) ([]Resource, error)
}

// Store is the persistence surface the engine reads and writes.
type Store interface {
	GrantRepository
	MembershipRepository
	DirectoryRepository
}
