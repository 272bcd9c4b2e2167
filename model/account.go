// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package model

import (
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/utils"
)

// AccountKey identifies an account, it is the subject referenced by a
// session credential
type AccountKey struct {
	ID string `bson:"id" json:"id"`
}

// Account is the persisted record a session is resolved against. An
// account either belongs to one tenant or is privileged, a privileged
// account may also carry a tenant of its own.
type Account struct {
	Email string `bson:"email" json:"email"`

	// owning tenant (business), absent for operators
	TenantID *string `bson:"tenantId,omitempty" json:"tenantId,omitempty"`

	// operator allowed to act across all tenants
	Privileged bool `bson:"privileged" json:"privileged"`

	// disabled accounts can not be resolved into a session
	Disabled bool `bson:"disabled" json:"disabled"`
}

// Validate checks the account record before it is persisted
func (a *Account) Validate() error {
	if !utils.IsValidEmail(a.Email) {
		return errors.Wrapf(errors.InvalidArgument, "invalid email %q", a.Email)
	}
	if !a.Privileged && utils.Dereference(a.TenantID) == "" {
		return errors.Wrap(errors.InvalidArgument, "account without tenant must be privileged")
	}
	return nil
}
