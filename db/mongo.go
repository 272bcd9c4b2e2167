// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Initial reference and motivation taken from
// https://gitlab.com/project-emco/core/emco-base/-/blob/main/src/orchestrator/pkg/infra/db

package db

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/utils"
)

type mongoCollection struct {
	colName string // name of the collection this collection object is working with
	col     *mongo.Collection
}

// interprets mongo db error and returns library parsable error codes,
// classification relies on server error codes and labels only
func interpretMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.GetErrCode(err) != errors.Unknown {
		// already interpreted, typically returned by the transaction body
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(errors.AlreadyExists, "%w", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrapf(errors.NotFound, "%w", err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorCode(mongoWriteConflictCode) || se.HasErrorLabel(mongoTransientTxnLabel) {
			return errors.Wrapf(errors.Conflict, "%w", err)
		}
		if se.HasErrorCode(mongoLockTimeoutCode) || se.HasErrorCode(mongoLockBusyCode) {
			return errors.Wrapf(errors.Deadlock, "%w", err)
		}
	}
	if mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(errors.Timeout, "%w", err)
	}
	if errors.Is(err, mongo.ErrClientDisconnected) || mongo.IsNetworkError(err) {
		return errors.Wrapf(errors.Unavailable, "%w", err)
	}
	return err
}

// inserts one entry with given key and data to the collection
// returns errors if entry already exists or if there is a connection
// error with the database server
func (c *mongoCollection) InsertOne(ctx context.Context, key any, data any) error {
	if data == nil {
		return errors.Wrap(errors.InvalidArgument, "db Insert error: No data to store")
	}
	if key == nil {
		return errors.Wrap(errors.InvalidArgument, "db Insert error: No Key specified to store")
	}

	bd, err := toDocument(data)
	if err != nil {
		return err
	}
	bd = append(bd, bson.E{Key: keyField, Value: key})

	_, err = c.col.InsertOne(ctx, bd)
	return interpretMongoError(err)
}

// inserts or updates one entry with given key and data to the collection
// acts based on the flag passed for upsert
// returns errors if entry not found while upsert flag is false or if
// there is a connection error with the database server
func (c *mongoCollection) UpdateOne(ctx context.Context, key any, data any, upsert bool) error {
	if data == nil {
		return errors.Wrap(errors.InvalidArgument, "db Update error: No data to store")
	}
	if key == nil {
		return errors.Wrap(errors.InvalidArgument, "db Update error: No Key specified to store")
	}

	opts := options.Update().SetUpsert(upsert)
	resp, err := c.col.UpdateOne(
		ctx,
		bson.M{keyField: key},
		bson.D{
			{Key: "$set", Value: data},
		},
		opts)
	if err != nil {
		return interpretMongoError(err)
	}

	// there should be at least one entry in matched count
	// or upserted count to not return an error here
	if resp.MatchedCount == 0 && resp.UpsertedCount == 0 {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	return nil
}

// updates every entry matching the filter, zero matches is not an error
func (c *mongoCollection) UpdateMany(ctx context.Context, filter any, data any) (int64, error) {
	if data == nil {
		return 0, errors.Wrap(errors.InvalidArgument, "db Update error: No data to store")
	}
	if filter == nil {
		filter = bson.D{}
	}
	resp, err := c.col.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: data}})
	if err != nil {
		return 0, interpretMongoError(err)
	}
	return resp.MatchedCount, nil
}

// Find one entry from the store collection for the given key, where the data
// value is returned based on the object type passed to it
func (c *mongoCollection) FindOne(ctx context.Context, key any, data any) error {
	return c.FindOneMatch(ctx, bson.M{keyField: key}, data)
}

// Find the first entry matching the filter
func (c *mongoCollection) FindOneMatch(ctx context.Context, filter any, data any) error {
	if filter == nil {
		filter = bson.D{}
	}
	resp := c.col.FindOne(ctx, filter)
	// decode the value returned by the mongodb client into the data
	// object passed by the caller
	if err := resp.Decode(data); err != nil {
		return interpretMongoError(err)
	}
	return nil
}

func toFindOptions(opts []*FindOptions) *options.FindOptions {
	fo := options.Find()
	for _, o := range opts {
		if o == nil {
			continue
		}
		if len(o.Sort) != 0 {
			sort := bson.D{}
			for _, s := range o.Sort {
				dir := 1
				if s.Desc {
					dir = -1
				}
				sort = append(sort, bson.E{Key: s.Field, Value: dir})
			}
			fo.SetSort(sort)
		}
		if o.Limit > 0 {
			fo.SetLimit(o.Limit)
		}
		if o.Skip > 0 {
			fo.SetSkip(o.Skip)
		}
	}
	return fo
}

// Find multiple entries from the store collection for the given filter, where the data
// value is returned as a list based on the object type passed to it
func (c *mongoCollection) FindMany(ctx context.Context, filter any, data any, opts ...*FindOptions) error {
	if filter == nil {
		filter = bson.D{}
	}
	cursor, err := c.col.Find(ctx, filter, toFindOptions(opts))
	if err != nil {
		return interpretMongoError(err)
	}
	if err = cursor.All(ctx, data); err != nil {
		return interpretMongoError(err)
	}
	return nil
}

// Return count of entries matching the provided filter
func (c *mongoCollection) Count(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	count, err := c.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, interpretMongoError(err)
	}
	return count, nil
}

// remove one entry from the collection matching the given key
func (c *mongoCollection) DeleteOne(ctx context.Context, key any) error {
	resp, err := c.col.DeleteOne(ctx, bson.M{keyField: key})
	if err != nil {
		return interpretMongoError(err)
	}
	if resp.DeletedCount == 0 {
		return errors.Wrap(errors.NotFound, "No Document found")
	}
	return nil
}

// Delete Many entries matching the delete criteria
// returns number of entries deleted and if there is any error processing the request
func (c *mongoCollection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	resp, err := c.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, interpretMongoError(err)
	}
	if resp.DeletedCount == 0 {
		return 0, errors.Wrap(errors.NotFound, "No matching entries found to delete")
	}
	return resp.DeletedCount, nil
}

type mongoStore struct {
	db *mongo.Database
}

func (s *mongoStore) GetCollection(name string) StoreCollection {
	return &mongoCollection{
		colName: name,
		col:     s.db.Collection(name),
	}
}

func (s *mongoStore) Name() string {
	return s.db.Name()
}

type mongoClient struct {
	client *mongo.Client
}

type MongoConfig struct {
	Host     string
	Port     string
	Uri      string
	Username string
	Password string

	// upper bound of pooled connections, shared by all tenants
	MaxPoolSize uint64

	// how long an operation waits for a usable server
	ServerSelectionTimeout time.Duration
}

func (c *MongoConfig) validate() error {
	if c.Uri != "" {
		if c.Host != "" || c.Port != "" {
			return errors.Wrap(errors.InvalidArgument, "cannot provide host and port if uri is configured")
		}
	} else {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == "" || c.Port == "0" {
			c.Port = "27017"
		} else {
			if _, err := strconv.Atoi(c.Port); err != nil {
				return errors.Wrap(errors.InvalidArgument, "invalid database port")
			}
		}
	}
	return nil
}

// majority write concern with journaling, required for HA and for
// transactions to be durable once committed
func majorityJournaled() *writeconcern.WriteConcern {
	wc := writeconcern.Majority()
	wc.Journal = utils.Pointer(true)
	return wc
}

// NewMongoClient creates a client for the given configuration, the
// connection is established lazily so an unreachable or placeholder
// uri does not fail here, it fails every data operation instead
func NewMongoClient(conf *MongoConfig) (StoreClient, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	var uri string
	if conf.Uri != "" {
		uri = conf.Uri
	} else {
		uri = "mongodb://" + net.JoinHostPort(conf.Host, conf.Port)
	}
	clientOptions := options.Client()
	clientOptions.ApplyURI(uri)
	clientOptions.SetAppName(defaultAppName)
	if conf.Username != "" {
		clientOptions.SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-256",
			AuthSource:    "admin",
			Username:      conf.Username,
			Password:      conf.Password,
		})
	}
	if conf.MaxPoolSize != 0 {
		clientOptions.SetMaxPoolSize(conf.MaxPoolSize)
	}
	if conf.ServerSelectionTimeout != 0 {
		clientOptions.SetServerSelectionTimeout(conf.ServerSelectionTimeout)
	}
	clientOptions.SetWriteConcern(majorityJournaled())
	clientOptions.SetReadConcern(readconcern.Majority())
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, interpretMongoError(err)
	}

	return &mongoClient{
		client: client,
	}, nil
}

// Gets Mongodb Data Store for given database name
// typically while working with mongodb it requires to work on a collection
// which is scoped inside a database construct of mongodb
func (c *mongoClient) GetDataStore(dbName string) Store {
	return &mongoStore{
		db: c.client.Database(dbName),
	}
}

func (c *mongoClient) HealthCheck(ctx context.Context) error {
	return interpretMongoError(c.client.Ping(ctx, readpref.Primary()))
}

func (c *mongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Transact runs fn within a mongo session transaction. The driver's
// WithTransaction helper is deliberately not used as it retries on its
// own, retries are the decision of the caller.
func (c *mongoClient) Transact(ctx context.Context, opts *TxOptions, fn func(ctx context.Context) error) error {
	if opts == nil {
		opts = &TxOptions{}
	}
	txnOpts := options.Transaction().SetWriteConcern(majorityJournaled())
	switch opts.Isolation {
	case ReadCommitted:
		txnOpts.SetReadConcern(readconcern.Majority())
	case Snapshot:
		txnOpts.SetReadConcern(readconcern.Snapshot())
	default:
		return errors.Wrapf(errors.InvalidArgument, "unsupported isolation level %d", opts.Isolation)
	}
	if opts.Timeout > 0 {
		commit := opts.Timeout
		txnOpts.SetMaxCommitTime(&commit)
	}

	sess, err := c.client.StartSession()
	if err != nil {
		return interpretMongoError(err)
	}
	defer sess.EndSession(context.Background())

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txnOpts); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			// abort on a fresh context, the transaction context may
			// already be past its deadline
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		return sess.CommitTransaction(sc)
	})
	return interpretMongoError(err)
}

// converts any marshalable value into an ordered bson document
func toDocument(data any) (bson.D, error) {
	if bd, ok := data.(bson.D); ok {
		return bd, nil
	}
	marshaledData, err := bson.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to encode entry: %s", err)
	}
	bd := bson.D{}
	if err := bson.Unmarshal(marshaledData, &bd); err != nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "failed to decode entry: %s", err)
	}
	return bd, nil
}
