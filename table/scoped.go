// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
)

// Scoped is the view of a Table confined to one tenant. Reads only
// observe entries of the tenant, writes only touch entries of the tenant
// and inserts are always tagged with it, whatever the caller supplied.
// Entries of other tenants are reported as not found on reads and as
// zero affected entries on writes.
type Scoped[K any, E any] struct {
	col    db.StoreCollection
	tenant string
}

// Tenant returns the tenant the view is confined to
func (s *Scoped[K, E]) Tenant() string {
	return s.tenant
}

// tagged renders the entry with the tenant field forced to the tenant
// of the view
func (s *Scoped[K, E]) tagged(entry *E) (bson.D, error) {
	if entry == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "no entry specified")
	}
	raw, err := bson.Marshal(entry)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to encode entry: %s", err)
	}
	doc := bson.D{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to decode entry: %s", err)
	}
	out := make(bson.D, 0, len(doc)+1)
	for _, e := range doc {
		if e.Key == TenantField || e.Key == keyField {
			continue
		}
		out = append(out, e)
	}
	return append(out, bson.E{Key: TenantField, Value: s.tenant}), nil
}

// FindMany returns the entries of the tenant matching the filter
func (s *Scoped[K, E]) FindMany(ctx context.Context, filter Filter, opts ...*db.FindOptions) ([]*E, error) {
	doc, err := filter.scopedDocument(s.tenant)
	if err != nil {
		return nil, err
	}
	data := []*E{}
	if err := s.col.FindMany(ctx, doc, &data, opts...); err != nil {
		return nil, err
	}
	return data, nil
}

// FindOne returns the first entry of the tenant matching the filter
func (s *Scoped[K, E]) FindOne(ctx context.Context, filter Filter) (*E, error) {
	doc, err := filter.scopedDocument(s.tenant)
	if err != nil {
		return nil, err
	}
	var data E
	if err := s.col.FindOneMatch(ctx, doc, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Find returns the entry stored with key, NotFound when the key belongs
// to another tenant
func (s *Scoped[K, E]) Find(ctx context.Context, key *K) (*E, error) {
	if key == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "no key specified")
	}
	return s.FindOne(ctx, Key(key))
}

// Insert stores the entry under key, tagged with the tenant of the view
func (s *Scoped[K, E]) Insert(ctx context.Context, key *K, entry *E) error {
	if key == nil {
		return errors.Wrap(errors.InvalidArgument, "no key specified")
	}
	doc, err := s.tagged(entry)
	if err != nil {
		return err
	}
	return s.col.InsertOne(ctx, key, doc)
}

// Update replaces the fields of the entry stored with key, returns the
// number of entries matched, zero when the key belongs to another tenant
func (s *Scoped[K, E]) Update(ctx context.Context, key *K, entry *E) (int64, error) {
	if key == nil {
		return 0, errors.Wrap(errors.InvalidArgument, "no key specified")
	}
	filter, err := Key(key).scopedDocument(s.tenant)
	if err != nil {
		return 0, err
	}
	doc, err := s.tagged(entry)
	if err != nil {
		return 0, err
	}
	return s.col.UpdateMany(ctx, filter, doc)
}

// UpdateMany assigns fields on every entry of the tenant matching the
// filter, returns the number of entries matched
func (s *Scoped[K, E]) UpdateMany(ctx context.Context, filter Filter, fields Fields) (int64, error) {
	doc, err := filter.scopedDocument(s.tenant)
	if err != nil {
		return 0, err
	}
	update, err := fields.document()
	if err != nil {
		return 0, err
	}
	return s.col.UpdateMany(ctx, doc, update)
}

// Delete removes the entry stored with key, returns the number of
// entries removed, zero when the key belongs to another tenant
func (s *Scoped[K, E]) Delete(ctx context.Context, key *K) (int64, error) {
	if key == nil {
		return 0, errors.Wrap(errors.InvalidArgument, "no key specified")
	}
	return s.DeleteMany(ctx, Key(key))
}

// DeleteMany removes every entry of the tenant matching the filter
func (s *Scoped[K, E]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	doc, err := filter.scopedDocument(s.tenant)
	if err != nil {
		return 0, err
	}
	count, err := s.col.DeleteMany(ctx, doc)
	if err != nil {
		if errors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Count returns the number of entries of the tenant matching the filter
func (s *Scoped[K, E]) Count(ctx context.Context, filter Filter) (int64, error) {
	doc, err := filter.scopedDocument(s.tenant)
	if err != nil {
		return 0, err
	}
	return s.col.Count(ctx, doc)
}
