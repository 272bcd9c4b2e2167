// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/go-core-stack/governor/errors"
)

// Config of the session token, shared by the issuer and the resolver
type Config struct {
	// HMAC key signing the tokens, mandatory
	Secret []byte

	// expected issuer, DefaultIssuer when empty
	Issuer string

	// cookie carrying the token, DefaultCookieName when empty
	CookieName string

	// lifetime of issued tokens, 12h when zero
	TTL time.Duration
}

func (c Config) withDefaults() (Config, error) {
	if len(c.Secret) == 0 {
		return c, errors.Wrap(errors.InvalidArgument, "session secret is not configured")
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.TTL == 0 {
		c.TTL = 12 * time.Hour
	}
	if c.TTL < 0 {
		return c, errors.Wrapf(errors.InvalidArgument, "invalid session ttl %s", c.TTL)
	}
	return c, nil
}

// claims of the session token, the subject is the account id
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issuer mints signed session tokens
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token referencing the given account
func (i *Issuer) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.Wrap(errors.InvalidArgument, "subject is required")
	}
	now := i.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", errors.Wrapf(errors.Unknown, "failed to sign session token: %s", err)
	}
	return signed, nil
}

// SessionCookie wraps a token issued by Issue into the cookie the
// resolver reads it back from
func (i *Issuer) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     i.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  i.now().Add(i.cfg.TTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
