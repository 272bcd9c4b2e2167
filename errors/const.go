// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

// ErrCode is type for multiple reconizable errors.
type ErrCode int

// error codes
const (
	// if error is unknown
	Unknown ErrCode = 0

	// if the item not found in the space
	NotFound ErrCode = 1

	// if the item already present in the space
	AlreadyExists ErrCode = 2

	// if the argument is not valid
	InvalidArgument ErrCode = 3

	// caller identity is missing, malformed or cannot be resolved
	Unauthorized ErrCode = 4

	// caller is known but not allowed to act on the requested tenant
	Forbidden ErrCode = 5

	// caller has exhausted its request budget for the current window
	ResourceExhausted ErrCode = 6

	// concurrent transaction touched the same data, safe to retry
	Conflict ErrCode = 7

	// bounded wait for a connection or transaction slot elapsed,
	// or the execution deadline of a transaction was exceeded
	Timeout ErrCode = 8

	// lock could not be acquired, lock timeout or deadlock detected
	Deadlock ErrCode = 9

	// backing service is not reachable
	Unavailable ErrCode = 10
)

var codeNames = map[ErrCode]string{
	Unknown:           "Unknown",
	NotFound:          "NotFound",
	AlreadyExists:     "AlreadyExists",
	InvalidArgument:   "InvalidArgument",
	Unauthorized:      "Unauthorized",
	Forbidden:         "Forbidden",
	ResourceExhausted: "ResourceExhausted",
	Conflict:          "Conflict",
	Timeout:           "Timeout",
	Deadlock:          "Deadlock",
	Unavailable:       "Unavailable",
}

func (c ErrCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}
