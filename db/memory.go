// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package db

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/semaphore"

	"github.com/go-core-stack/governor/errors"
)

// memoryClient keeps every store in process memory. It honours the
// StoreClient contract closely enough to run tenant isolation and
// transaction tests without a database server: equality and $in
// filters on top level fields, sorting and transactions that roll
// back on failure. Transactions are serialized with each other, a
// rollback undoes only the keys written through the transaction
// context.
type memoryClient struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
	txn    *semaphore.Weighted
	closed atomic.Bool
}

// NewMemoryClient returns an empty in-memory store client
func NewMemoryClient() StoreClient {
	return &memoryClient{
		stores: make(map[string]*memoryStore),
		txn:    semaphore.NewWeighted(1),
	}
}

func (c *memoryClient) GetDataStore(dbName string) Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stores[dbName]
	if !ok {
		s = &memoryStore{
			name:   dbName,
			client: c,
			cols:   make(map[string]*memoryCollection),
		}
		c.stores[dbName] = s
	}
	return s
}

func (c *memoryClient) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Wrap(errors.Unavailable, "memory store client is closed")
	}
	return ctx.Err()
}

func (c *memoryClient) Close(ctx context.Context) error {
	c.closed.Store(true)
	return nil
}

func (c *memoryClient) Transact(ctx context.Context, opts *TxOptions, fn func(ctx context.Context) error) error {
	if opts != nil && opts.Isolation != ReadCommitted && opts.Isolation != Snapshot {
		return errors.Wrapf(errors.InvalidArgument, "unsupported isolation level %d", opts.Isolation)
	}
	if err := c.txn.Acquire(ctx, 1); err != nil {
		return errors.Wrapf(errors.Timeout, "waiting for transaction: %w", err)
	}
	defer c.txn.Release(1)

	tx := &memoryTx{client: c, seen: map[undoKey]struct{}{}}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrapf(errors.Timeout, "transaction deadline: %w", err)
		}
		return err
	}
	return nil
}

type memoryTxKey struct{}

type undoKey struct {
	col *memoryCollection
	id  string
}

// undoEntry holds the state of a key before the transaction first
// wrote it
type undoEntry struct {
	undoKey
	doc     bson.D
	existed bool
	pos     int
}

// memoryTx records the prior state of every key written through a
// transaction context, rollback restores only those keys so writes
// made outside of the transaction survive it
type memoryTx struct {
	client *memoryClient
	mu     sync.Mutex
	seen   map[undoKey]struct{}
	undo   []undoEntry
}

func txFromContext(ctx context.Context, client *memoryClient) *memoryTx {
	tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx)
	if !ok || tx.client != client {
		return nil
	}
	return tx
}

// must be called with the collection lock held, before the key is
// modified
func (tx *memoryTx) record(col *memoryCollection, id string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	k := undoKey{col: col, id: id}
	if _, ok := tx.seen[k]; ok {
		return
	}
	tx.seen[k] = struct{}{}
	entry := undoEntry{undoKey: k}
	entry.doc, entry.existed = col.docs[id]
	if entry.existed {
		entry.pos = slices.Index(col.order, id)
	}
	tx.undo = append(tx.undo, entry)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	undo := tx.undo
	tx.undo = nil
	clear(tx.seen)
	tx.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		e := undo[i]
		e.col.mu.Lock()
		if !e.existed {
			if _, ok := e.col.docs[e.id]; ok {
				e.col.remove(e.id)
			}
		} else {
			if _, ok := e.col.docs[e.id]; !ok {
				pos := min(e.pos, len(e.col.order))
				e.col.order = slices.Insert(e.col.order, pos, e.id)
			}
			e.col.docs[e.id] = e.doc
		}
		e.col.mu.Unlock()
	}
}

type memoryStore struct {
	name   string
	client *memoryClient
	mu     sync.Mutex
	cols   map[string]*memoryCollection
}

func (s *memoryStore) Name() string {
	return s.name
}

func (s *memoryStore) GetCollection(name string) StoreCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.cols[name]
	if !ok {
		col = &memoryCollection{
			client: s.client,
			docs:   make(map[string]bson.D),
		}
		s.cols[name] = col
	}
	return col
}

type memoryCollection struct {
	client *memoryClient
	mu     sync.RWMutex
	docs   map[string]bson.D
	order  []string // insertion order of the keys
}

func (c *memoryCollection) check(ctx context.Context) error {
	if c.client.closed.Load() {
		return errors.Wrap(errors.Unavailable, "memory store client is closed")
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrapf(errors.Timeout, "%w", err)
		}
		return err
	}
	return nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, key any, data any) error {
	if data == nil {
		return errors.Wrap(errors.InvalidArgument, "db Insert error: No data to store")
	}
	if key == nil {
		return errors.Wrap(errors.InvalidArgument, "db Insert error: No Key specified to store")
	}
	if err := c.check(ctx); err != nil {
		return err
	}
	id, nkey, err := encodeKey(key)
	if err != nil {
		return err
	}
	bd, err := toDocument(data)
	if err != nil {
		return err
	}
	bd = setField(withoutField(bd, keyField), keyField, nkey)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; ok {
		return errors.Wrapf(errors.AlreadyExists, "entry with key %v already exists", key)
	}
	c.track(ctx, id)
	c.docs[id] = bd
	c.order = append(c.order, id)
	return nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, key any, data any, upsert bool) error {
	if data == nil {
		return errors.Wrap(errors.InvalidArgument, "db Update error: No data to store")
	}
	if key == nil {
		return errors.Wrap(errors.InvalidArgument, "db Update error: No Key specified to store")
	}
	if err := c.check(ctx); err != nil {
		return err
	}
	id, nkey, err := encodeKey(key)
	if err != nil {
		return err
	}
	update, err := toDocument(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok && !upsert {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	c.track(ctx, id)
	if !ok {
		c.docs[id] = setField(withoutField(update, keyField), keyField, nkey)
		c.order = append(c.order, id)
		return nil
	}
	c.docs[id] = applySet(doc, update)
	return nil
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter any, data any) (int64, error) {
	if data == nil {
		return 0, errors.Wrap(errors.InvalidArgument, "db Update error: No data to store")
	}
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	m, err := newMatcher(filter)
	if err != nil {
		return 0, err
	}
	update, err := toDocument(data)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var matched int64
	for _, id := range c.order {
		doc := c.docs[id]
		if m.match(doc) {
			c.track(ctx, id)
			c.docs[id] = applySet(doc, update)
			matched++
		}
	}
	return matched, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, key any, data any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	id, _, err := encodeKey(key)
	if err != nil {
		return err
	}
	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	return decodeDocument(doc, data)
}

func (c *memoryCollection) FindOneMatch(ctx context.Context, filter any, data any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	docs, err := c.matching(filter)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	return decodeDocument(docs[0], data)
}

func (c *memoryCollection) FindMany(ctx context.Context, filter any, data any, opts ...*FindOptions) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return errors.Wrapf(errors.InvalidArgument, "FindMany expects pointer to a slice, got %T", data)
	}
	docs, err := c.matching(filter)
	if err != nil {
		return err
	}
	docs = applyFindOptions(docs, opts)

	slice := rv.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, doc := range docs {
		var elem reflect.Value
		if elemType.Kind() == reflect.Pointer {
			elem = reflect.New(elemType.Elem())
			if err := decodeDocument(doc, elem.Interface()); err != nil {
				return err
			}
		} else {
			ptr := reflect.New(elemType)
			if err := decodeDocument(doc, ptr.Interface()); err != nil {
				return err
			}
			elem = ptr.Elem()
		}
		out = reflect.Append(out, elem)
	}
	slice.Set(out)
	return nil
}

func (c *memoryCollection) Count(ctx context.Context, filter any) (int64, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	docs, err := c.matching(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, key any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	id, _, err := encodeKey(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	c.track(ctx, id)
	c.remove(id)
	return nil
}

func (c *memoryCollection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	m, err := newMatcher(filter)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, id := range c.order {
		if m.match(c.docs[id]) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		c.track(ctx, id)
		c.remove(id)
	}
	if len(ids) == 0 {
		return 0, errors.Wrap(errors.NotFound, "No matching entries found to delete")
	}
	return int64(len(ids)), nil
}

// must be called with the collection lock held
func (c *memoryCollection) track(ctx context.Context, id string) {
	if tx := txFromContext(ctx, c.client); tx != nil {
		tx.record(c, id)
	}
}

// must be called with the collection lock held
func (c *memoryCollection) remove(id string) {
	delete(c.docs, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *memoryCollection) matching(filter any) ([]bson.D, error) {
	m, err := newMatcher(filter)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var docs []bson.D
	for _, id := range c.order {
		doc := c.docs[id]
		if m.match(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// normalize brings a value to the representation it has once stored,
// so that filter values and stored values compare with DeepEqual
func normalize(v any) (any, error) {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to encode value %v: %s", v, err)
	}
	out := bson.D{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to decode value %v: %s", v, err)
	}
	return out[0].Value, nil
}

func encodeKey(key any) (string, any, error) {
	if key == nil {
		return "", nil, errors.Wrap(errors.InvalidArgument, "key is not specified")
	}
	raw, err := bson.Marshal(bson.D{{Key: keyField, Value: key}})
	if err != nil {
		return "", nil, errors.Wrapf(errors.InvalidArgument, "failed to encode key %v: %s", key, err)
	}
	nkey, err := normalize(key)
	if err != nil {
		return "", nil, err
	}
	return string(raw), nkey, nil
}

func decodeDocument(doc bson.D, data any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, data)
}

func lookupField(doc bson.D, field string) (any, bool) {
	for _, e := range doc {
		if e.Key == field {
			return e.Value, true
		}
	}
	return nil, false
}

func withoutField(doc bson.D, field string) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != field {
			out = append(out, e)
		}
	}
	return out
}

// returns a copy of doc with field set to value
func setField(doc bson.D, field string, value any) bson.D {
	out := make(bson.D, 0, len(doc)+1)
	found := false
	for _, e := range doc {
		if e.Key == field {
			out = append(out, bson.E{Key: field, Value: value})
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, bson.E{Key: field, Value: value})
	}
	return out
}

// $set semantics, primary key is never replaced
func applySet(doc bson.D, update bson.D) bson.D {
	out := doc
	for _, e := range update {
		if e.Key == keyField {
			continue
		}
		out = setField(out, e.Key, e.Value)
	}
	return out
}

type condition struct {
	field string
	op    string
	value any
}

type matcher struct {
	conds []condition
}

func newMatcher(filter any) (*matcher, error) {
	m := &matcher{}
	if filter == nil {
		return m, nil
	}
	fd, err := toDocument(filter)
	if err != nil {
		return nil, err
	}
	for _, e := range fd {
		if strings.HasPrefix(e.Key, "$") {
			return nil, errors.Wrapf(errors.InvalidArgument, "unsupported top level operator %s", e.Key)
		}
		ops, isOp := e.Value.(bson.D)
		if isOp && len(ops) != 0 && strings.HasPrefix(ops[0].Key, "$") {
			for _, op := range ops {
				switch op.Key {
				case "$eq", "$ne":
					nv, err := normalize(op.Value)
					if err != nil {
						return nil, err
					}
					m.conds = append(m.conds, condition{field: e.Key, op: op.Key, value: nv})
				case "$in":
					list, ok := op.Value.(bson.A)
					if !ok {
						return nil, errors.Wrapf(errors.InvalidArgument, "$in on %s expects an array", e.Key)
					}
					nl := make([]any, 0, len(list))
					for _, v := range list {
						nv, err := normalize(v)
						if err != nil {
							return nil, err
						}
						nl = append(nl, nv)
					}
					m.conds = append(m.conds, condition{field: e.Key, op: "$in", value: nl})
				default:
					return nil, errors.Wrapf(errors.InvalidArgument, "unsupported operator %s", op.Key)
				}
			}
			continue
		}
		nv, err := normalize(e.Value)
		if err != nil {
			return nil, err
		}
		m.conds = append(m.conds, condition{field: e.Key, op: "$eq", value: nv})
	}
	return m, nil
}

func (m *matcher) match(doc bson.D) bool {
	for _, cond := range m.conds {
		val, ok := lookupField(doc, cond.field)
		switch cond.op {
		case "$eq":
			if !ok || !reflect.DeepEqual(val, cond.value) {
				return false
			}
		case "$ne":
			if ok && reflect.DeepEqual(val, cond.value) {
				return false
			}
		case "$in":
			if !ok {
				return false
			}
			found := false
			for _, v := range cond.value.([]any) {
				if reflect.DeepEqual(val, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func applyFindOptions(docs []bson.D, opts []*FindOptions) []bson.D {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if len(o.Sort) != 0 {
			sort.SliceStable(docs, func(i, j int) bool {
				for _, s := range o.Sort {
					a, _ := lookupField(docs[i], s.Field)
					b, _ := lookupField(docs[j], s.Field)
					cmp := compareValues(a, b)
					if cmp == 0 {
						continue
					}
					if s.Desc {
						return cmp > 0
					}
					return cmp < 0
				}
				return false
			})
		}
		if o.Skip > 0 {
			if o.Skip >= int64(len(docs)) {
				docs = nil
			} else {
				docs = docs[o.Skip:]
			}
		}
		if o.Limit > 0 && o.Limit < int64(len(docs)) {
			docs = docs[:o.Limit]
		}
	}
	return docs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			return av.Time().Compare(bv.Time())
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}
