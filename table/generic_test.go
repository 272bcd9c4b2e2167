// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
)

type ProductKey struct {
	ID string `bson:"id"`
}

type Product struct {
	Name     string `bson:"name"`
	Price    int    `bson:"price"`
	Category string `bson:"category"`
	TenantID string `bson:"tenantId,omitempty"`
}

func newProductTable(t *testing.T) *Table[ProductKey, Product] {
	t.Helper()
	client := db.NewMemoryClient()
	tbl := &Table[ProductKey, Product]{}
	require.NoError(t, tbl.Initialize(client.GetDataStore("test").GetCollection("products")))
	return tbl
}

func Test_TableInitialize(t *testing.T) {
	col := db.NewMemoryClient().GetDataStore("test").GetCollection("products")

	tbl := &Table[ProductKey, Product]{}
	_, err := tbl.Find(context.Background(), &ProductKey{ID: "x"})
	assert.True(t, errors.IsInvalidArgument(err), "uninitialized table must fail")

	require.NoError(t, tbl.Initialize(col))
	assert.True(t, errors.IsAlreadyExists(tbl.Initialize(col)))

	ptrEntry := &Table[ProductKey, *Product]{}
	assert.True(t, errors.IsInvalidArgument(ptrEntry.Initialize(col)))

	ptrKey := &Table[*ProductKey, Product]{}
	assert.True(t, errors.IsInvalidArgument(ptrKey.Initialize(col)))
}

func Test_GenericTable(t *testing.T) {
	ctx := context.Background()
	tbl := newProductTable(t)

	t.Run("test_basic_crud", func(t *testing.T) {
		key := &ProductKey{ID: "prod-001"}
		require.NoError(t, tbl.Insert(ctx, key, &Product{Name: "Laptop", Price: 1200, Category: "Electronics"}))
		assert.True(t, errors.IsAlreadyExists(tbl.Insert(ctx, key, &Product{Name: "Laptop"})))

		found, err := tbl.Find(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Laptop", found.Name)

		found.Price = 1100
		require.NoError(t, tbl.Update(ctx, key, found))
		found, err = tbl.Find(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1100, found.Price)

		assert.True(t, errors.IsNotFound(tbl.Update(ctx, &ProductKey{ID: "prod-404"}, found)))

		require.NoError(t, tbl.Locate(ctx, &ProductKey{ID: "prod-002"}, &Product{Name: "Mouse", Price: 20, Category: "Electronics"}))
		require.NoError(t, tbl.Locate(ctx, &ProductKey{ID: "prod-002"}, &Product{Name: "Mouse", Price: 25, Category: "Electronics"}))

		count, err := tbl.Count(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		require.NoError(t, tbl.DeleteKey(ctx, key))
		_, err = tbl.Find(ctx, key)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("test_find_many", func(t *testing.T) {
		require.NoError(t, tbl.Insert(ctx, &ProductKey{ID: "prod-003"}, &Product{Name: "Chair", Price: 80, Category: "Furniture"}))
		require.NoError(t, tbl.Insert(ctx, &ProductKey{ID: "prod-004"}, &Product{Name: "Desk", Price: 300, Category: "Furniture"}))

		list, err := tbl.FindMany(ctx, Where("category", "Furniture"),
			&db.FindOptions{Sort: []db.SortField{{Field: "price", Desc: true}}})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Desk", list[0].Name)

		list, err = tbl.FindMany(ctx, In("name", "Chair", "Mouse"))
		require.NoError(t, err)
		assert.Len(t, list, 2)

		list, err = tbl.FindMany(ctx, Where("category", "Garden"))
		require.NoError(t, err)
		assert.Empty(t, list, "no match is an empty list")
	})
}

func Test_Filter(t *testing.T) {
	base := Where("category", "Furniture")
	narrowed := base.Where("name", "Desk")

	doc, err := base.document()
	require.NoError(t, err)
	assert.Len(t, doc, 1, "extending a filter must not modify it")

	doc, err = narrowed.document()
	require.NoError(t, err)
	assert.Len(t, doc, 2)

	_, err = Where("$where", "1").document()
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = base.In("", "x").Where("name", "Desk").document()
	assert.True(t, errors.IsInvalidArgument(err), "error must survive further narrowing")

	doc, err = Where(TenantField, "tenant-b").Where("name", "Desk").scopedDocument("tenant-a")
	require.NoError(t, err)
	tenants := 0
	for _, e := range doc {
		if e.Key == TenantField {
			tenants++
			assert.Equal(t, "tenant-a", e.Value)
		}
	}
	assert.Equal(t, 1, tenants)

	_, err = Fields{TenantField: "tenant-b"}.document()
	assert.True(t, errors.IsInvalidArgument(err))
	_, err = Fields{}.document()
	assert.True(t, errors.IsInvalidArgument(err))
}
