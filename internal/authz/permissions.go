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

// Permission names a single capability a role confers.
type Permission string

// -----------------------------------------------------------------------------
// Permission Constants
// Read permissions double as visibility permissions for their resource class.
// -----------------------------------------------------------------------------

const (
	PermAccountsRead  Permission = "accounts-read"
	PermAccountsWrite Permission = "accounts-write"

	PermClustersRead  Permission = "clusters-read"
	PermClustersWrite Permission = "clusters-write"

	PermDeploymentsRead  Permission = "deployments-read"
	PermDeploymentsWrite Permission = "deployments-write"

	PermIngressRead  Permission = "ingress-read"
	PermIngressWrite Permission = "ingress-write"

	PermNamespacesRead   Permission = "namespaces-read"
	PermNamespacesWrite  Permission = "namespaces-write"
	PermNamespacesManage Permission = "namespaces-manage"

	PermRegistriesRead   Permission = "registries-read"
	PermRegistriesWrite  Permission = "registries-write"
	PermRegistriesManage Permission = "registries-manage"

	PermReleasesRead  Permission = "releases-read"
	PermReleasesWrite Permission = "releases-write"

	PermTeamsRead   Permission = "teams-read"
	PermTeamsWrite  Permission = "teams-write"
	PermTeamsManage Permission = "teams-manage"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// Each set extends the one below it, so rank order implies set inclusion.
// -----------------------------------------------------------------------------

// ObserverPermissions defines permissions for the observer role.
var ObserverPermissions = []Permission{
	PermAccountsRead,
	PermClustersRead,
	PermDeploymentsRead,
	PermIngressRead,
	PermNamespacesRead,
	PermRegistriesRead,
	PermReleasesRead,
	PermTeamsRead,
}

// DeveloperPermissions defines permissions for the developer role.
var DeveloperPermissions = extend(ObserverPermissions,
	PermDeploymentsWrite,
	PermRegistriesWrite,
	PermReleasesWrite,
)

// MaintainerPermissions defines permissions for the maintainer role.
var MaintainerPermissions = extend(DeveloperPermissions,
	PermIngressWrite,
	PermNamespacesWrite,
	PermTeamsWrite,
)

// AdminPermissions defines permissions for the admin role.
var AdminPermissions = extend(MaintainerPermissions,
	PermAccountsWrite,
	PermClustersWrite,
	PermNamespacesManage,
	PermRegistriesManage,
	PermTeamsManage,
)

func extend(base []Permission, extra ...Permission) []Permission {
	out := make([]Permission, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
