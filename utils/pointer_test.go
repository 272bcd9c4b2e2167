// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Aditya Harindar <aditya.harindar@gmail.com>

package utils

import (
	"testing"
)

func TestPointer(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		val := "acme"
		ptr := Pointer(val)
		if ptr == nil {
			t.Fatal("Pointer(\"acme\") returned nil")
		}
		if *ptr != val {
			t.Errorf("Pointer(\"acme\") = %v; want %v", *ptr, val)
		}
	})

	t.Run("copy", func(t *testing.T) {
		val := 42
		ptr := Pointer(val)
		val = 7
		if *ptr != 42 {
			t.Errorf("Pointer must hold a copy, got %d", *ptr)
		}
	})
}

func TestDereference(t *testing.T) {
	t.Run("nil string", func(t *testing.T) {
		var ptr *string
		if got := Dereference(ptr); got != "" {
			t.Errorf("Dereference(nil) = %q; want empty", got)
		}
	})

	t.Run("nil bool", func(t *testing.T) {
		var ptr *bool
		if got := Dereference(ptr); got {
			t.Errorf("Dereference(nil) = %v; want false", got)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		if got := Dereference(Pointer("tenant-a")); got != "tenant-a" {
			t.Errorf("round trip = %q; want tenant-a", got)
		}
	})
}
