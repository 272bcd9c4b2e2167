// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"

	"github.com/go-core-stack/governor/errors"
)

// Session is the resolved caller of one request. It carries only what
// the rest of the pipeline needs, never the account record itself.
type Session struct {
	SubjectID  string `json:"subjectId"`
	TenantID   string `json:"tenantId,omitempty"`
	Privileged bool   `json:"privileged"`
	Email      string `json:"email"`
}

// TenantContext derived from the session
func (s *Session) TenantContext() TenantContext {
	if s == nil {
		return TenantContext{}
	}
	return TenantContext{
		TenantID:   s.TenantID,
		Privileged: s.Privileged,
	}
}

// TenantContext is what handlers get to scope their data access. The
// zero value is the anonymous context.
type TenantContext struct {
	// empty when the caller belongs to no tenant
	TenantID string

	// operator allowed to act across all tenants
	Privileged bool
}

// HasTenant reports whether the caller belongs to a tenant
func (tc TenantContext) HasTenant() bool {
	return tc.TenantID != ""
}

// RequireTenant returns the tenant of the caller, failing with Forbidden
// for a non privileged caller without tenant. A privileged caller
// without tenant gets an empty tenant and no error.
func (tc TenantContext) RequireTenant() (string, error) {
	if tc.TenantID == "" && !tc.Privileged {
		return "", errors.Wrap(errors.Forbidden, "tenant context required")
	}
	return tc.TenantID, nil
}

// struct identifier for the context
type sessionInfo struct{}

// NewContext returns a context carrying the resolved session
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionInfo{}, s)
}

// FromContext gets the session attached by the governor
func FromContext(ctx context.Context) (*Session, error) {
	val := ctx.Value(sessionInfo{})
	switch s := val.(type) {
	case *Session:
		if s != nil {
			return s, nil
		}
	}
	return nil, errors.Wrapf(errors.NotFound, "session not found")
}
