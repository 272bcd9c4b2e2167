// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package utils

// Pointer returns a pointer to a copy of the given value.
// Usage:
//
//	tenant := utils.Pointer("acme") // *string pointing to "acme"
func Pointer[T any](val T) *T {
	return &val
}

// Dereference returns the value held by ptr, or the zero value of T
// if ptr is nil.
// Usage:
//
//	id := utils.Dereference(session.TenantID) // "" when no tenant
func Dereference[T any](ptr *T) T {
	var val T
	if ptr != nil {
		val = *ptr
	}
	return val
}
