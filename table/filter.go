// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package table

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-core-stack/governor/errors"
)

const (
	// TenantField is the document field carrying the owning tenant of
	// every tenant owned record
	TenantField = "tenantId"

	keyField = "_id"
)

// Filter is an immutable conjunction of field conditions. Every method
// returns a new Filter, the receiver is left untouched, so a Filter can be
// shared and extended freely. The zero value matches everything.
type Filter struct {
	conds bson.D
	err   error
}

// Where returns a filter matching entries whose field equals value
func Where(field string, value any) Filter {
	return Filter{}.Where(field, value)
}

// In returns a filter matching entries whose field equals one of values
func In(field string, values ...any) Filter {
	return Filter{}.In(field, values...)
}

// Key returns a filter matching the entry stored with the given key
func Key(key any) Filter {
	return Filter{}.with(keyField, key)
}

// Where narrows the filter to entries whose field equals value
func (f Filter) Where(field string, value any) Filter {
	if err := checkField(field); err != nil {
		return f.failed(err)
	}
	return f.with(field, value)
}

// In narrows the filter to entries whose field equals one of values
func (f Filter) In(field string, values ...any) Filter {
	if err := checkField(field); err != nil {
		return f.failed(err)
	}
	list := make(bson.A, 0, len(values))
	list = append(list, values...)
	return f.with(field, bson.D{{Key: "$in", Value: list}})
}

// Key narrows the filter to the entry stored with the given key
func (f Filter) Key(key any) Filter {
	return f.with(keyField, key)
}

func (f Filter) with(field string, value any) Filter {
	conds := make(bson.D, 0, len(f.conds)+1)
	conds = append(conds, f.conds...)
	conds = append(conds, bson.E{Key: field, Value: value})
	return Filter{conds: conds, err: f.err}
}

func (f Filter) failed(err error) Filter {
	if f.err != nil {
		return f
	}
	return Filter{conds: f.conds, err: err}
}

func checkField(field string) error {
	if field == "" || strings.HasPrefix(field, "$") {
		return errors.Wrapf(errors.InvalidArgument, "invalid filter field %q", field)
	}
	return nil
}

// document renders the unscoped query document
func (f Filter) document() (bson.D, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := make(bson.D, 0, len(f.conds))
	return append(doc, f.conds...), nil
}

// scopedDocument renders the query document pinned to tenant, any
// condition the caller placed on the tenant field is replaced
func (f Filter) scopedDocument(tenant string) (bson.D, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := make(bson.D, 0, len(f.conds)+1)
	for _, c := range f.conds {
		if c.Key == TenantField {
			continue
		}
		doc = append(doc, c)
	}
	return append(doc, bson.E{Key: TenantField, Value: tenant}), nil
}

// Fields is a set of field assignments applied by UpdateMany
type Fields map[string]any

// document renders the assignments in a stable order, the key and the
// tenant field can never be assigned
func (fs Fields) document() (bson.D, error) {
	if len(fs) == 0 {
		return nil, errors.Wrap(errors.InvalidArgument, "no fields to update")
	}
	names := make([]string, 0, len(fs))
	for name := range fs {
		if err := checkField(name); err != nil {
			return nil, err
		}
		if name == TenantField || name == keyField {
			return nil, errors.Wrapf(errors.InvalidArgument, "field %q can not be updated", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	doc := make(bson.D, 0, len(names))
	for _, name := range names {
		doc = append(doc, bson.E{Key: name, Value: fs[name]})
	}
	return doc, nil
}
