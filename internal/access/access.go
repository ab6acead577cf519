// Package access decides whether a user may connect to an asset, and issues
// and manages the connection tokens that record that decision.
package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/infrahq/broker/internal"
)

var ErrNotAuthorized = errors.New("not authorized")

// AuthorizationError indicates that the user who performed the operation does
// not have the required role.
type AuthorizationError struct {
	Resource      string
	Operation     string
	RequiredRoles []Role
}

func (e AuthorizationError) Error() string {
	var roles strings.Builder
	switch len(e.RequiredRoles) {
	case 1:
		roles.WriteString(string(e.RequiredRoles[0]))
	default:
		for i, role := range e.RequiredRoles {
			roles.WriteString(string(role))
			switch {
			case i+1 == len(e.RequiredRoles)-1:
				roles.WriteString(", or ")
			case i+1 != len(e.RequiredRoles):
				roles.WriteString(", ")
			}
		}
	}
	return fmt.Sprintf("you do not have permission to %v %v, requires role %v",
		e.Operation, e.Resource, roles.String())
}

func (e AuthorizationError) Is(other error) bool {
	// nolint:errorlint // comparing with == is correct here, the caller uses Unwrap.
	return other == ErrNotAuthorized
}

// authenticatedUser returns the caller, or an error when the request was not
// authenticated.
func authenticatedUser(rCtx RequestContext) (*User, error) {
	if rCtx.Authenticated.User == nil {
		return nil, fmt.Errorf("%w: no authenticated user", internal.ErrUnauthorized)
	}
	return rCtx.Authenticated.User, nil
}

// requireSuper checks that the caller has the super role.
func requireSuper(rCtx RequestContext, operation, resource string) (*User, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return nil, err
	}
	if !user.IsSuper() {
		return nil, AuthorizationError{
			Resource:      resource,
			Operation:     operation,
			RequiredRoles: []Role{RoleSuper},
		}
	}
	return user, nil
}
