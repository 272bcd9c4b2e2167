// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"github.com/go-core-stack/governor/errors"
)

const (
	// default name of the cookie carrying the session token
	DefaultCookieName = "session"

	// default issuer stamped into, and expected from, session tokens
	DefaultIssuer = "governor"

	// collection holding the account records
	AccountCollection = "accounts"

	// grpc metadata keys are always lowercase, the session token is
	// taken from the bearer authorization first and from the cookie
	// header otherwise
	GrpcAuthorizationHeader = "authorization"
	GrpcCookieHeader        = "cookie"

	bearerPrefix = "Bearer "
)

// sentinel failures of session resolution, all of them carry the
// Unauthorized code and are matched with errors.Is
var (
	ErrMissingCredential = errors.Wrap(errors.Unauthorized, "missing credential")
	ErrMalformed         = errors.Wrap(errors.Unauthorized, "malformed credential")
	ErrUnknownSubject    = errors.Wrap(errors.Unauthorized, "unknown subject")
)
