// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/utils"
)

// Resolver turns the session credential of a request into a Session.
// Every call verifies the token and reads the referenced account, no
// result is cached across calls.
type Resolver struct {
	cfg      Config
	accounts AccountStore
	now      func() time.Time
}

// ResolverOption customizes a Resolver
type ResolverOption func(*Resolver)

// WithTimeFunc replaces the clock used to validate token expiry
func WithTimeFunc(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(cfg Config, accounts AccountStore, opts ...ResolverOption) (*Resolver, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "account store is required")
	}
	r := &Resolver{cfg: cfg, accounts: accounts, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CookieName returns the name of the cookie the resolver reads
func (r *Resolver) CookieName() string {
	return r.cfg.CookieName
}

// Resolve verifies the raw credential and resolves the account it
// references. Failures are ErrMissingCredential, ErrMalformed or
// ErrUnknownSubject, except store failures which are returned as is.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return r.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(r.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, errors.Wrapf(errors.Unauthorized, "%w: %s", ErrMalformed, err)
	}
	if claims.Subject == "" {
		return nil, errors.Wrapf(errors.Unauthorized, "%w: token carries no subject", ErrMalformed)
	}

	account, err := r.accounts.FindAccount(ctx, claims.Subject)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrapf(errors.Unauthorized, "%w: %s", ErrUnknownSubject, claims.Subject)
		}
		return nil, err
	}
	if account.Disabled {
		return nil, errors.Wrapf(errors.Unauthorized, "%w: %s is disabled", ErrUnknownSubject, claims.Subject)
	}

	return &Session{
		SubjectID:  claims.Subject,
		TenantID:   utils.Dereference(account.TenantID),
		Privileged: account.Privileged,
		Email:      account.Email,
	}, nil
}

// ResolveRequest resolves the credential carried by the session cookie
// of the http request
func (r *Resolver) ResolveRequest(req *http.Request) (*Session, error) {
	cookie, err := req.Cookie(r.cfg.CookieName)
	if err != nil {
		return nil, ErrMissingCredential
	}
	return r.Resolve(req.Context(), cookie.Value)
}

// ResolveIncoming resolves the credential carried by the metadata of
// an incoming grpc call
func (r *Resolver) ResolveIncoming(ctx context.Context) (*Session, error) {
	return r.Resolve(ctx, credentialFromMetadata(ctx, r.cfg.CookieName))
}

// extract the header values from the GRPC context
func extractHeader(ctx context.Context, header string) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	return md.Get(header)
}

// session token from the bearer authorization, falling back to the
// session cookie, empty when neither is present
func credentialFromMetadata(ctx context.Context, cookieName string) string {
	for _, val := range extractHeader(ctx, GrpcAuthorizationHeader) {
		if strings.HasPrefix(val, bearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(val, bearerPrefix))
		}
	}
	cookies := extractHeader(ctx, GrpcCookieHeader)
	if len(cookies) == 0 {
		return ""
	}
	req := &http.Request{Header: http.Header{"Cookie": cookies}}
	cookie, err := req.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
