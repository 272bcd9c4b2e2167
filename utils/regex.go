// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package utils

import "regexp"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail returns true if the provided string is a valid email address format.
// Used when seeding and validating account records, the session resolver
// never re-validates what is already stored.
//
//	valid := utils.IsValidEmail("owner@acme.io") // returns true
//	valid := utils.IsValidEmail("not-an-email")  // returns false
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
