// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"
	"reflect"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
)

/*
Package table provides a generic Table abstraction for managing collections of
entries in a database, with key management, CRUD operations and tenant scoped
views.

# Overview

Table is the unscoped view of a collection, meant for privileged callers and
for records that are not owned by a tenant (accounts). Every tenant owned
collection is reached by request handlers through Scoped, which pins a tenant
identifier into every query it issues:

    type InvoiceKey struct {
        ID string
    }
    type Invoice struct {
        TenantID string `bson:"tenantId"`
        Amount   int64
    }

    var invoices table.Table[InvoiceKey, Invoice]
    err := invoices.Initialize(col)

    scoped, err := invoices.Scoped(tenantID)
    list, err := scoped.FindMany(ctx, table.Where("customer", "acme"))

# Notes

- The entry type E must NOT be a pointer type.
- The key type K must NOT be a pointer type.
- The Table must be initialized before use.
*/

// Table is a generic table type providing common functions to specific
// structures each table is built using. It ensures sanity checks and
// provides common functionality for database-backed tables.
//
// K: Key type (must NOT be a pointer type, typically a struct or primitive)
// E: Entry type (must NOT be a pointer type)
type Table[K any, E any] struct {
	col db.StoreCollection
}

// Initialize sets up the Table with the provided db.StoreCollection.
// Must be called before any other operation.
func (t *Table[K, E]) Initialize(col db.StoreCollection) error {
	if t.col != nil {
		return errors.Wrapf(errors.AlreadyExists, "Table is already initialized")
	}
	if col == nil {
		return errors.Wrapf(errors.InvalidArgument, "Table requires a collection")
	}

	var e E
	if reflect.TypeOf(e).Kind() == reflect.Pointer {
		return errors.Wrapf(errors.InvalidArgument, "Table entry type must not be a pointer")
	}

	var k K
	if reflect.TypeOf(k).Kind() == reflect.Pointer {
		return errors.Wrapf(errors.InvalidArgument, "Table key type must not be a pointer")
	}

	t.col = col
	return nil
}

func (t *Table[K, E]) initialized() error {
	if t.col == nil {
		return errors.Wrapf(errors.InvalidArgument, "Table not initialized")
	}
	return nil
}

// Insert adds a new entry to the table with the given key.
func (t *Table[K, E]) Insert(ctx context.Context, key *K, entry *E) error {
	if err := t.initialized(); err != nil {
		return err
	}
	return t.col.InsertOne(ctx, key, entry)
}

// Locate inserts the entry if the key doesn't exist, or updates it if it does.
func (t *Table[K, E]) Locate(ctx context.Context, key *K, entry *E) error {
	if err := t.initialized(); err != nil {
		return err
	}
	return t.col.UpdateOne(ctx, key, entry, true)
}

// Update modifies an existing entry with the given key.
func (t *Table[K, E]) Update(ctx context.Context, key *K, entry *E) error {
	if err := t.initialized(); err != nil {
		return err
	}
	return t.col.UpdateOne(ctx, key, entry, false)
}

// Find retrieves an entry by key.
func (t *Table[K, E]) Find(ctx context.Context, key *K) (*E, error) {
	if err := t.initialized(); err != nil {
		return nil, err
	}
	var data E
	if err := t.col.FindOne(ctx, key, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// FindMany retrieves all entries matching the filter, an empty filter
// matches every entry of the table. No match is not an error.
func (t *Table[K, E]) FindMany(ctx context.Context, filter Filter, opts ...*db.FindOptions) ([]*E, error) {
	if err := t.initialized(); err != nil {
		return nil, err
	}
	doc, err := filter.document()
	if err != nil {
		return nil, err
	}
	data := []*E{}
	if err := t.col.FindMany(ctx, doc, &data, opts...); err != nil {
		return nil, err
	}
	return data, nil
}

// Count returns the number of entries matching the filter.
func (t *Table[K, E]) Count(ctx context.Context, filter Filter) (int64, error) {
	if err := t.initialized(); err != nil {
		return 0, err
	}
	doc, err := filter.document()
	if err != nil {
		return 0, err
	}
	return t.col.Count(ctx, doc)
}

// DeleteKey removes an entry by key from the table.
func (t *Table[K, E]) DeleteKey(ctx context.Context, key *K) error {
	if err := t.initialized(); err != nil {
		return err
	}
	return t.col.DeleteOne(ctx, key)
}

// Scoped returns the view of the table restricted to the given tenant.
// The view is meant to live for a single request.
func (t *Table[K, E]) Scoped(tenantID string) (*Scoped[K, E], error) {
	if err := t.initialized(); err != nil {
		return nil, err
	}
	if tenantID == "" {
		return nil, errors.Wrap(errors.Forbidden, "tenant context required")
	}
	return &Scoped[K, E]{col: t.col, tenant: tenantID}, nil
}
