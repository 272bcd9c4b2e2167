// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-core-stack/governor/errors"
)

func seedTenants(t *testing.T) (*Table[ProductKey, Product], *Scoped[ProductKey, Product], *Scoped[ProductKey, Product]) {
	t.Helper()
	ctx := context.Background()
	tbl := newProductTable(t)

	tenantA, err := tbl.Scoped("tenant-a")
	require.NoError(t, err)
	tenantB, err := tbl.Scoped("tenant-b")
	require.NoError(t, err)

	require.NoError(t, tenantA.Insert(ctx, &ProductKey{ID: "a-1"}, &Product{Name: "Chair", Price: 80}))
	require.NoError(t, tenantA.Insert(ctx, &ProductKey{ID: "a-2"}, &Product{Name: "Desk", Price: 300}))
	require.NoError(t, tenantB.Insert(ctx, &ProductKey{ID: "b-1"}, &Product{Name: "Chair", Price: 90}))
	return tbl, tenantA, tenantB
}

func Test_ScopedRequiresTenant(t *testing.T) {
	tbl := newProductTable(t)
	_, err := tbl.Scoped("")
	assert.True(t, errors.IsForbidden(err))
}

func Test_ScopedReads(t *testing.T) {
	ctx := context.Background()
	_, tenantA, _ := seedTenants(t)

	list, err := tenantA.FindMany(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, p := range list {
		assert.Equal(t, "tenant-a", p.TenantID)
	}

	list, err = tenantA.FindMany(ctx, Where(TenantField, "tenant-b"))
	require.NoError(t, err)
	assert.Len(t, list, 2, "lying about the tenant must not escape the scope")
	for _, p := range list {
		assert.Equal(t, "tenant-a", p.TenantID)
	}

	list, err = tenantA.FindMany(ctx, Where("name", "Chair"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 80, list[0].Price)

	_, err = tenantA.Find(ctx, &ProductKey{ID: "b-1"})
	assert.True(t, errors.IsNotFound(err), "foreign entry must read as not found, got %v", err)

	_, err = tenantA.FindOne(ctx, Key(&ProductKey{ID: "b-1"}).Where(TenantField, "tenant-b"))
	assert.True(t, errors.IsNotFound(err))

	found, err := tenantA.Find(ctx, &ProductKey{ID: "a-2"})
	require.NoError(t, err)
	assert.Equal(t, "Desk", found.Name)

	count, err := tenantA.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func Test_ScopedWrites(t *testing.T) {
	ctx := context.Background()
	tbl, tenantA, tenantB := seedTenants(t)

	t.Run("insert forces tenant", func(t *testing.T) {
		require.NoError(t, tenantA.Insert(ctx, &ProductKey{ID: "a-3"}, &Product{Name: "Lamp", TenantID: "tenant-b"}))
		stored, err := tbl.Find(ctx, &ProductKey{ID: "a-3"})
		require.NoError(t, err)
		assert.Equal(t, "tenant-a", stored.TenantID)
	})

	t.Run("foreign update affects nothing", func(t *testing.T) {
		n, err := tenantA.Update(ctx, &ProductKey{ID: "b-1"}, &Product{Name: "Hijacked"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		stored, err := tbl.Find(ctx, &ProductKey{ID: "b-1"})
		require.NoError(t, err)
		assert.Equal(t, "Chair", stored.Name)
		assert.Equal(t, "tenant-b", stored.TenantID)
	})

	t.Run("own update keeps tenant", func(t *testing.T) {
		n, err := tenantA.Update(ctx, &ProductKey{ID: "a-1"}, &Product{Name: "Stool", Price: 40, TenantID: "tenant-b"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, err := tbl.Find(ctx, &ProductKey{ID: "a-1"})
		require.NoError(t, err)
		assert.Equal(t, "Stool", stored.Name)
		assert.Equal(t, "tenant-a", stored.TenantID)
	})

	t.Run("update many stays in scope", func(t *testing.T) {
		n, err := tenantB.UpdateMany(ctx, Filter{}, Fields{"category": "Sale"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		list, err := tenantA.FindMany(ctx, Where("category", "Sale"))
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("foreign delete affects nothing", func(t *testing.T) {
		n, err := tenantA.Delete(ctx, &ProductKey{ID: "b-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		_, err = tbl.Find(ctx, &ProductKey{ID: "b-1"})
		require.NoError(t, err, "foreign entry must survive")

		n, err = tenantA.DeleteMany(ctx, Where(TenantField, "tenant-b"))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "only own entries are removed")

		count, err := tenantB.Count(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
