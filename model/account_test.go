// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package model

import (
	"testing"

	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/utils"
)

func Test_AccountValidate(t *testing.T) {
	cases := []struct {
		name    string
		account Account
		valid   bool
	}{
		{"tenant member", Account{Email: "a@example.com", TenantID: utils.Pointer("acme")}, true},
		{"operator", Account{Email: "op@example.com", Privileged: true}, true},
		{"bad email", Account{Email: "not-an-email", TenantID: utils.Pointer("acme")}, false},
		{"email without tld", Account{Email: "owner@acme", TenantID: utils.Pointer("acme")}, false},
		{"email with newline", Account{Email: "owner@acme.io\n", TenantID: utils.Pointer("acme")}, false},
		{"operator bad email", Account{Email: "root@operator", Privileged: true}, false},
		{"no tenant", Account{Email: "a@example.com"}, false},
		{"empty tenant", Account{Email: "a@example.com", TenantID: utils.Pointer("")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.account.Validate()
			if tc.valid && err != nil {
				t.Errorf("expected valid account, got %s", err)
			}
			if !tc.valid && !errors.IsInvalidArgument(err) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})
	}
}
