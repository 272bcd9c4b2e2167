// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Initial reference and motivation taken from
// https://gitlab.com/project-emco/core/emco-base/-/blob/main/src/orchestrator/pkg/infra/db

package db

import (
	"context"
	"time"
)

// StoreCollection is the record level contract every backend provides.
// Keys are stored as the primary key (_id) of the record, filters are
// query documents as built by the table package.
type StoreCollection interface {
	// inserts one entry with given key, fails with AlreadyExists if the
	// key is already present
	InsertOne(ctx context.Context, key any, data any) error

	// updates (or upserts) one entry matching the key with the fields
	// of data, fails with NotFound if nothing matched and upsert is false
	UpdateOne(ctx context.Context, key any, data any, upsert bool) error

	// updates all entries matching the filter with the fields of data,
	// returns the number of matched entries
	UpdateMany(ctx context.Context, filter any, data any) (int64, error)

	// finds one entry by key, decoding into data
	FindOne(ctx context.Context, key any, data any) error

	// finds the first entry matching filter, decoding into data
	FindOneMatch(ctx context.Context, filter any, data any) error

	// finds all entries matching filter, data must be pointer to a slice
	FindMany(ctx context.Context, filter any, data any, opts ...*FindOptions) error

	// counts entries matching the filter
	Count(ctx context.Context, filter any) (int64, error)

	// removes one entry matching the key, NotFound if absent
	DeleteOne(ctx context.Context, key any) error

	// removes all entries matching the filter, returns the number of
	// entries removed or NotFound if none matched
	DeleteMany(ctx context.Context, filter any) (int64, error)
}

// SortField orders FindMany results by one field
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions shapes the result of FindMany, understood by every
// backend
type FindOptions struct {
	Sort  []SortField
	Limit int64
	Skip  int64
}

type Store interface {
	// Name of the data store (database)
	Name() string

	// Get the collection handle for the given name
	GetCollection(name string) StoreCollection
}

// Isolation level requested for a transaction, only levels that
// forbid dirty reads are representable
type Isolation int

const (
	// reads observe only majority committed data
	ReadCommitted Isolation = iota

	// reads observe one consistent snapshot for the whole transaction
	Snapshot
)

func (i Isolation) String() string {
	switch i {
	case ReadCommitted:
		return "read-committed"
	case Snapshot:
		return "snapshot"
	}
	return "invalid"
}

// TxOptions carries the per transaction configuration
type TxOptions struct {
	Isolation Isolation

	// upper bound for the commit of the transaction, the execution
	// deadline itself is carried by the context
	Timeout time.Duration
}

type StoreClient interface {
	// Get the Data Store interface given the client interface
	GetDataStore(dbName string) Store

	// Health Check, if the Store is connectable and healthy
	// returns the status of health of the server by means of
	// error if error is nil the health of the DB store can be
	// considered healthy
	HealthCheck(ctx context.Context) error

	// Transact runs fn inside a single transaction, fn must use the
	// context it is handed for every store operation it performs.
	// The transaction is committed if fn returns nil and aborted
	// otherwise, no retry is attempted here.
	Transact(ctx context.Context, opts *TxOptions, fn func(ctx context.Context) error) error

	// Close releases the connections held by the client
	Close(ctx context.Context) error
}
