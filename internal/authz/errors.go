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
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownRole         = errors.New("unknown role")
	ErrDelegationDenied    = errors.New("delegation denied")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidInput        = errors.New("invalid input")
	ErrMissingActor        = errors.New("acting account is required")
	ErrPermissionDenied    = errors.New("permission denied")
)

// NotFoundError identifies the missing account, team or resource.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnknownRoleError is returned for role names outside the catalog.
type UnknownRoleError struct {
	Name string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("Role name %s does not exist.", e.Name)
}

func (e *UnknownRoleError) Is(target error) bool {
	return target == ErrUnknownRole
}

// Action is a ledger mutation kind.
type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

// DelegationDeniedError is returned when an actor may not grant or revoke a
// role. Its message format is matched on by callers.
type DelegationDeniedError struct {
	Action Action
	Scope  ScopeClass
	Role   RoleName
}

func (e *DelegationDeniedError) Error() string {
	if word := e.Scope.word(); word != "" {
		return fmt.Sprintf("cannot %s %s role %s", e.Action, word, e.Role)
	}
	return fmt.Sprintf("cannot %s role %s", e.Action, e.Role)
}

func (e *DelegationDeniedError) Is(target error) bool {
	return target == ErrDelegationDenied
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
