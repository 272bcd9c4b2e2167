// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/table"
	"github.com/go-core-stack/governor/utils"
)

var testConfig = Config{
	Secret: []byte("test-secret"),
	TTL:    time.Hour,
}

type failingStore struct{}

func (failingStore) FindAccount(ctx context.Context, id string) (*model.Account, error) {
	return nil, errors.Wrap(errors.Unavailable, "store is down")
}

func newAccounts(t *testing.T) AccountStore {
	t.Helper()
	ctx := context.Background()
	tbl := &table.Table[model.AccountKey, model.Account]{}
	require.NoError(t, tbl.Initialize(db.NewMemoryClient().GetDataStore("test").GetCollection("accounts")))

	require.NoError(t, tbl.Insert(ctx, &model.AccountKey{ID: "alice"}, &model.Account{
		Email:    "alice@acme.io",
		TenantID: utils.Pointer("acme"),
	}))
	require.NoError(t, tbl.Insert(ctx, &model.AccountKey{ID: "root"}, &model.Account{
		Email:      "root@operator.io",
		Privileged: true,
	}))
	require.NoError(t, tbl.Insert(ctx, &model.AccountKey{ID: "bob"}, &model.Account{
		Email:    "bob@acme.io",
		TenantID: utils.Pointer("acme"),
		Disabled: true,
	}))
	return NewTableAccountStore(tbl)
}

func newTestPair(t *testing.T) (*Issuer, *Resolver) {
	t.Helper()
	issuer, err := NewIssuer(testConfig)
	require.NoError(t, err)
	resolver, err := NewResolver(testConfig, newAccounts(t))
	require.NoError(t, err)
	return issuer, resolver
}

func Test_ConfigValidation(t *testing.T) {
	_, err := NewIssuer(Config{})
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = NewResolver(testConfig, nil)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = NewIssuer(Config{Secret: []byte("x"), TTL: -time.Second})
	assert.True(t, errors.IsInvalidArgument(err))
}

func Test_Resolve(t *testing.T) {
	ctx := context.Background()
	issuer, resolver := newTestPair(t)

	t.Run("tenant member", func(t *testing.T) {
		token, err := issuer.Issue("alice")
		require.NoError(t, err)
		s, err := resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, &Session{SubjectID: "alice", TenantID: "acme", Email: "alice@acme.io"}, s)
		assert.Equal(t, TenantContext{TenantID: "acme"}, s.TenantContext())
	})

	t.Run("operator", func(t *testing.T) {
		token, err := issuer.Issue("root")
		require.NoError(t, err)
		s, err := resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.True(t, s.Privileged)
		assert.Empty(t, s.TenantID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "")
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.True(t, errors.IsUnauthorized(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "eyJhY2NvdW50SWQiOiJhbGljZSJ9")
		assert.ErrorIs(t, err, ErrMalformed)
		assert.True(t, errors.IsUnauthorized(err))
	})

	t.Run("tampered", func(t *testing.T) {
		token, err := issuer.Issue("alice")
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		forged, err := NewIssuer(Config{Secret: []byte("other-secret")})
		require.NoError(t, err)
		other, err := forged.Issue("root")
		require.NoError(t, err)
		// payload of another token under the original signature
		tampered := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]
		_, err = resolver.Resolve(ctx, tampered)
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = resolver.Resolve(ctx, other)
		assert.ErrorIs(t, err, ErrMalformed, "token signed with another secret")
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   "root",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, raw)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewIssuer(Config{Secret: testConfig.Secret, Issuer: "someone-else"})
		require.NoError(t, err)
		token, err := other.Issue("alice")
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := issuer.Issue("alice")
		require.NoError(t, err)
		late, err := NewResolver(testConfig, newAccounts(t), WithTimeFunc(func() time.Time {
			return time.Now().Add(2 * time.Hour)
		}))
		require.NoError(t, err)
		_, err = late.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unknown subject", func(t *testing.T) {
		token, err := issuer.Issue("mallory")
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrUnknownSubject)
	})

	t.Run("disabled subject", func(t *testing.T) {
		token, err := issuer.Issue("bob")
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrUnknownSubject)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		r, err := NewResolver(testConfig, failingStore{})
		require.NoError(t, err)
		token, err := issuer.Issue("alice")
		require.NoError(t, err)
		_, err = r.Resolve(ctx, token)
		assert.Equal(t, errors.Unavailable, errors.GetErrCode(err))
		assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))
	})
}

func Test_ResolveRequest(t *testing.T) {
	issuer, resolver := newTestPair(t)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	_, err = resolver.ResolveRequest(req)
	assert.ErrorIs(t, err, ErrMissingCredential)

	cookie := issuer.SessionCookie(token)
	assert.Equal(t, DefaultCookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	req.AddCookie(cookie)
	s, err := resolver.ResolveRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "acme", s.TenantID)
}

func Test_ResolveIncoming(t *testing.T) {
	issuer, resolver := newTestPair(t)
	token, err := issuer.Issue("root")
	require.NoError(t, err)

	_, err = resolver.ResolveIncoming(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(GrpcAuthorizationHeader, "Bearer "+token))
	s, err := resolver.ResolveIncoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", s.SubjectID)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(GrpcCookieHeader, "theme=dark; "+DefaultCookieName+"="+token))
	s, err = resolver.ResolveIncoming(ctx)
	require.NoError(t, err)
	assert.True(t, s.Privileged)
}

func Test_TenantContext(t *testing.T) {
	_, err := TenantContext{}.RequireTenant()
	assert.True(t, errors.IsForbidden(err))

	tenant, err := TenantContext{Privileged: true}.RequireTenant()
	require.NoError(t, err)
	assert.Empty(t, tenant)

	tenant, err = TenantContext{TenantID: "acme"}.RequireTenant()
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant)

	_, err = FromContext(context.Background())
	assert.True(t, errors.IsNotFound(err))

	s := &Session{SubjectID: "alice", TenantID: "acme"}
	found, err := FromContext(NewContext(context.Background(), s))
	require.NoError(t, err)
	assert.Same(t, s, found)
}
