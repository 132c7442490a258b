// Package mongodb implements the document-store driver on the official
// MongoDB driver.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/leandroluk/orm/core"
)

// Protocol is the canonical protocol name of this driver.
const Protocol = "mongodb"

const (
	defaultDatabase = "test"
	// namespaceExists is the server code of a create on an existing collection.
	namespaceExists = 48
)

//region MongoDriver

// MongoDriver implements core.Driver on a MongoDB database.
//
// A driver built with New owns its client and disconnects it on Close; a
// second Close reports mongo.ErrClientDisconnected. A driver built with Wrap
// never disconnects the caller's client.
type MongoDriver struct {
	core.NativeCodec

	id          string
	config      core.ConnectionConfig
	options     core.Options
	middlewares []core.Middleware
	builder     QueryBuilder
	events      core.Events

	client *mongo.Client
	db     *mongo.Database
	owned  bool
}

var _ core.Driver = (*MongoDriver)(nil)

// New creates a driver that opens its own client on Connect.
func New(config core.ConnectionConfig, options core.Options) *MongoDriver {
	driver := newDriver(options)
	driver.config = config
	driver.owned = true
	return driver
}

// Wrap creates a driver bound to a caller-supplied database handle.
func Wrap(db *mongo.Database, options core.Options) *MongoDriver {
	driver := newDriver(options)
	driver.db = db
	driver.client = db.Client()
	return driver
}

// Open is the registry constructor. It accepts a *mongo.Database, or a
// *mongo.Client combined with the configured database name.
func Open(config core.ConnectionConfig, conn any, options core.Options) (core.Driver, error) {
	switch c := conn.(type) {
	case nil:
		return New(config, options), nil
	case *mongo.Database:
		return Wrap(c, options), nil
	case *mongo.Client:
		return Wrap(c.Database(databaseName(config)), options), nil
	default:
		return nil, &core.ConnectionError{Protocol: Protocol, Cause: fmt.Errorf("unsupported connection handle %T", conn)}
	}
}

func newDriver(options core.Options) *MongoDriver {
	options = options.WithDefaults()
	return &MongoDriver{
		id:          uuid.NewString(),
		options:     options,
		middlewares: options.Chain(),
	}
}

func (driver *MongoDriver) ID() string { return driver.id }

func (driver *MongoDriver) Protocol() string { return Protocol }

func (driver *MongoDriver) Connect(ctx context.Context) error {
	if !driver.owned || driver.client != nil {
		return nil
	}
	clientOptions := mopt.Client().
		ApplyURI(connURI(driver.config)).
		SetWriteConcern(writeconcern.W1())
	if !driver.options.Pool {
		clientOptions.SetMaxPoolSize(1)
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return driver.connectionError(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return driver.connectionError(err)
	}
	driver.client = client
	driver.db = client.Database(databaseName(driver.config))
	return nil
}

func (driver *MongoDriver) Ping(ctx context.Context) error {
	command := bson.D{{Key: "ping", Value: 1}}
	err := driver.dispatch(ctx, core.OperationPing, "", command, func(ctx context.Context, db *mongo.Database) error {
		return db.RunCommand(ctx, command).Err()
	})
	if err != nil {
		driver.options.Logger.WithError(err).Debug("mongodb ping failed")
	}
	return nil
}

func (driver *MongoDriver) Close(ctx context.Context) error {
	if !driver.owned || driver.client == nil {
		return nil
	}
	if err := driver.client.Disconnect(ctx); err != nil {
		return &core.ConnectionError{Protocol: Protocol, Cause: err}
	}
	return nil
}

func (driver *MongoDriver) On(event core.Event, handler core.EventHandler) {
	driver.events.On(event, handler)
}

func (driver *MongoDriver) Find(ctx context.Context, fields []string, table string, conditions core.Conditions, options *core.FindOptions) ([]core.Row, error) {
	findOptions, err := driver.builder.FindOptions(fields, options)
	if err != nil {
		return nil, err
	}
	filter, err := driver.builder.Filter(conditions)
	if err != nil {
		return nil, err
	}
	// a zero limit means "no limit" to the server
	if findOptions.Limit != nil && *findOptions.Limit == 0 {
		return []core.Row{}, nil
	}

	rowList := []core.Row{}
	err = driver.dispatch(ctx, core.OperationFind, table, filter, func(ctx context.Context, db *mongo.Database) error {
		cursor, err := db.Collection(table).Find(ctx, filter, findOptions)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		for cursor.Next(ctx) {
			var document primitive.M
			if err := cursor.Decode(&document); err != nil {
				return err
			}
			rowList = append(rowList, normalizeDocument(document))
		}
		return cursor.Err()
	})
	if err != nil {
		return nil, err
	}
	return rowList, nil
}

func (driver *MongoDriver) Count(ctx context.Context, table string, conditions core.Conditions, options *core.FindOptions) (int64, error) {
	if err := checkAssociations(options); err != nil {
		return 0, err
	}
	filter, err := driver.builder.Filter(conditions)
	if err != nil {
		return 0, err
	}
	var count int64
	err = driver.dispatch(ctx, core.OperationCount, table, filter, func(ctx context.Context, db *mongo.Database) error {
		n, err := db.Collection(table).CountDocuments(ctx, filter)
		count = n
		return err
	})
	return count, err
}

// Insert persists data as one document and reports the generated _id, as a
// hex string, under idProperty.
func (driver *MongoDriver) Insert(ctx context.Context, table string, data core.Row, idProperty string) (core.Row, error) {
	document := bson.M{}
	for key, value := range data {
		document[key] = value
	}
	if id, ok := document[IDField]; ok {
		coerced, err := coerceID(id)
		if err != nil {
			return nil, err
		}
		document[IDField] = coerced
	}

	var insertedID any
	err := driver.dispatch(ctx, core.OperationInsert, table, document, func(ctx context.Context, db *mongo.Database) error {
		result, err := db.Collection(table).InsertOne(ctx, document)
		if err != nil {
			return err
		}
		insertedID = result.InsertedID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return core.Row{idProperty: normalizeValue(insertedID)}, nil
}

func (driver *MongoDriver) Update(ctx context.Context, table string, changes core.Changes, conditions core.Conditions) error {
	if len(changes) == 0 {
		return nil
	}
	filter, err := driver.builder.Filter(conditions)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: bson.M(changes)}}
	return driver.dispatch(ctx, core.OperationUpdate, table, bson.D{{Key: "filter", Value: filter}, {Key: "update", Value: update}}, func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(table).UpdateMany(ctx, filter, update)
		return err
	})
}

func (driver *MongoDriver) Remove(ctx context.Context, table string, conditions core.Conditions) error {
	filter, err := driver.builder.Filter(conditions)
	if err != nil {
		return err
	}
	return driver.dispatch(ctx, core.OperationRemove, table, filter, func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(table).DeleteMany(ctx, filter)
		return err
	})
}

func (driver *MongoDriver) Clear(ctx context.Context, table string) error {
	filter := bson.D{}
	return driver.dispatch(ctx, core.OperationClear, table, filter, func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(table).DeleteMany(ctx, filter)
		return err
	})
}

// Infer is not available: collections carry no column catalog.
func (driver *MongoDriver) Infer(ctx context.Context, table string) (map[string]core.PropertyType, error) {
	return nil, &core.UnsupportedOperationError{Protocol: Protocol, Operation: "infer"}
}

// Sync creates the collection when missing and a unique index per unique
// property.
func (driver *MongoDriver) Sync(ctx context.Context, spec core.TableSpec) error {
	var indexes []mongo.IndexModel
	for _, name := range spec.Columns() {
		property := spec.Properties[name]
		if name == IDField || !(property.Unique || property.Key) {
			continue
		}
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: name, Value: 1}},
			Options: mopt.Index().SetUnique(true),
		})
	}
	command := bson.D{{Key: "create", Value: spec.Table}}
	return driver.dispatch(ctx, core.OperationSync, spec.Table, command, func(ctx context.Context, db *mongo.Database) error {
		err := db.CreateCollection(ctx, spec.Table)
		var commandErr mongo.CommandError
		if err != nil && !(errors.As(err, &commandErr) && commandErr.Code == namespaceExists) {
			return err
		}
		if len(indexes) == 0 {
			return nil
		}
		_, err = db.Collection(spec.Table).Indexes().CreateMany(ctx, indexes)
		return err
	})
}

func (driver *MongoDriver) Drop(ctx context.Context, table string) error {
	command := bson.D{{Key: "drop", Value: table}}
	return driver.dispatch(ctx, core.OperationDrop, table, command, func(ctx context.Context, db *mongo.Database) error {
		return db.Collection(table).Drop(ctx)
	})
}

func (driver *MongoDriver) GetQuery() core.QueryBuilder {
	return driver.builder
}

// ExecQuery runs query, an extended JSON command document, against the
// database. Bound arguments are not supported.
func (driver *MongoDriver) ExecQuery(ctx context.Context, query string, args ...any) ([]core.Row, error) {
	if len(args) > 0 {
		return nil, &core.UnsupportedOperationError{Protocol: Protocol, Operation: "exec with arguments"}
	}
	var command bson.D
	if err := bson.UnmarshalExtJSON([]byte(query), false, &command); err != nil {
		return nil, &core.QueryError{Protocol: Protocol, Query: query, Cause: err}
	}
	var rowList []core.Row
	err := driver.dispatch(ctx, core.OperationExec, "", command, func(ctx context.Context, db *mongo.Database) error {
		var document primitive.M
		if err := db.RunCommand(ctx, command).Decode(&document); err != nil {
			return err
		}
		rowList = []core.Row{normalizeDocument(document)}
		return nil
	})
	return rowList, err
}

//endregion

//region execution

func (driver *MongoDriver) dispatch(ctx context.Context, op core.Operation, table string, request any, fn func(ctx context.Context, db *mongo.Database) error) error {
	text := renderRequest(request)
	stmt := &core.Statement{Protocol: Protocol, Operation: op, Table: table, Query: text}
	err := core.Dispatch(ctx, driver.middlewares, stmt, func(ctx context.Context) error {
		if driver.db == nil {
			return &core.ConnectionError{Protocol: Protocol, Cause: errors.New("not connected")}
		}
		return fn(ctx, driver.db)
	})
	if err != nil {
		return driver.classify(text, err)
	}
	return nil
}

func (driver *MongoDriver) classify(query string, err error) error {
	var connErr *core.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if isConnectionError(err) {
		return driver.connectionError(err)
	}
	return &core.QueryError{Protocol: Protocol, Query: query, Cause: err}
}

func (driver *MongoDriver) connectionError(err error) error {
	wrapped := &core.ConnectionError{Protocol: Protocol, Cause: err}
	driver.events.Emit(core.EventError, wrapped)
	return wrapped
}

func isConnectionError(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected)
}

//endregion

//region Helpers

// renderRequest renders a request document as relaxed extended JSON for the
// statement middlewares.
func renderRequest(request any) string {
	if request == nil {
		return ""
	}
	text, err := bson.MarshalExtJSON(request, false, false)
	if err != nil {
		return fmt.Sprint(request)
	}
	return string(text)
}

func databaseName(config core.ConnectionConfig) string {
	if config.Database == "" {
		return defaultDatabase
	}
	return config.Database
}

// connURI renders config as a mongodb:// connection string.
func connURI(config core.ConnectionConfig) string {
	query := url.Values{}
	for k, v := range config.Query {
		query.Set(k, v)
	}
	if config.TLS {
		query.Set("tls", "true")
	}
	u := url.URL{
		Scheme:   "mongodb",
		Host:     net.JoinHostPort(config.HostOr("localhost"), strconv.Itoa(config.PortOr(27017))),
		Path:     "/",
		RawQuery: query.Encode(),
	}
	// ParseURL defaults the user; credentials only apply with a password
	if config.User != "" && config.Password != "" {
		u.User = url.UserPassword(config.User, config.Password)
	}
	return u.String()
}

//endregion
