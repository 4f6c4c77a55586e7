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

import "slices"

// RoleName is the canonical name of a catalog role.
type RoleName string

const (
	RoleObserver   RoleName = "observer"
	RoleDeveloper  RoleName = "developer"
	RoleMaintainer RoleName = "maintainer"
	RoleAdmin      RoleName = "admin"
)

// Rank totally orders roles. Higher ranks carry a superset of the permissions
// of lower ranks.
type Rank int

// NoRank is the effective rank of a subject with no matching grant.
const NoRank Rank = -1

// Role is an immutable catalog entry.
type Role struct {
	Name        RoleName
	Rank        Rank
	Permissions []Permission
}

// catalog is ordered by rank; the index of each entry equals its rank.
var catalog = []Role{
	{Name: RoleObserver, Rank: 0, Permissions: ObserverPermissions},
	{Name: RoleDeveloper, Rank: 1, Permissions: DeveloperPermissions},
	{Name: RoleMaintainer, Rank: 2, Permissions: MaintainerPermissions},
	{Name: RoleAdmin, Rank: 3, Permissions: AdminPermissions},
}

// Roles returns all role names ordered from lowest to highest rank.
func Roles() []RoleName {
	names := make([]RoleName, len(catalog))
	for i, r := range catalog {
		names[i] = r.Name
	}
	return names
}

// ParseRole validates a role name against the catalog.
func ParseRole(name string) (RoleName, error) {
	role := RoleName(name)
	if !role.Valid() {
		return "", &UnknownRoleError{Name: name}
	}
	return role, nil
}

// Valid reports whether the role exists in the catalog.
func (r RoleName) Valid() bool {
	_, ok := lookup(r)
	return ok
}

// Rank returns the role's rank, or NoRank for names outside the catalog.
func (r RoleName) Rank() Rank {
	return RankOf(r)
}

// Has reports whether the role confers the permission.
func (r RoleName) Has(p Permission) bool {
	role, ok := lookup(r)
	if !ok {
		return false
	}
	return slices.Contains(role.Permissions, p)
}

func (r RoleName) String() string {
	return string(r)
}

// RankOf returns the rank of a role, or NoRank for unknown names.
func RankOf(r RoleName) Rank {
	role, ok := lookup(r)
	if !ok {
		return NoRank
	}
	return role.Rank
}

// PermissionsFor returns a copy of the permissions conferred by a role.
func PermissionsFor(r RoleName) ([]Permission, error) {
	role, ok := lookup(r)
	if !ok {
		return nil, &UnknownRoleError{Name: string(r)}
	}
	return slices.Clone(role.Permissions), nil
}

// RolesUpTo returns every role whose rank does not exceed max, lowest first.
func RolesUpTo(max Rank) []RoleName {
	var names []RoleName
	for _, r := range catalog {
		if r.Rank <= max {
			names = append(names, r.Name)
		}
	}
	return names
}

func lookup(r RoleName) (Role, bool) {
	for _, role := range catalog {
		if role.Name == r {
			return role, true
		}
	}
	return Role{}, false
}
