package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Internal identifiers
// are ObjectIDs, exposed as their hex string.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates a store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// Find returns every document in coll matching f.
func (s *MongoStore) Find(ctx context.Context, coll string, f *Filter, opts FindOptions) ([]Document, error) {
	filter, err := mongoFilter(f)
	if errors.Is(err, ErrNotFound) {
		return make([]Document, 0), nil
	}
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if opts.SortField != "" {
		if err := ValidateField(opts.SortField); err != nil {
			return nil, err
		}
		dir := 1
		if opts.Descending {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortField, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.db.Collection(coll).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", coll, err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("reading %s: %w", coll, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// FindOne returns the first document matching f, or ErrNotFound.
func (s *MongoStore) FindOne(ctx context.Context, coll string, f *Filter) (Document, error) {
	filter, err := mongoFilter(f)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	err = s.db.Collection(coll).FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", coll, err)
	}
	return fromBSON(raw), nil
}

// Insert stores doc and returns it with the assigned ObjectID.
func (s *MongoStore) Insert(ctx context.Context, coll string, doc Document) (Document, error) {
	m := toBSON(doc)
	if _, ok := m[IDField]; !ok {
		m[IDField] = primitive.NewObjectID()
	}

	if _, err := s.db.Collection(coll).InsertOne(ctx, m); err != nil {
		return nil, mapMongoError(fmt.Sprintf("inserting into %s", coll), err)
	}
	return fromBSON(m), nil
}

// InsertMany stores docs in one unordered batch.
func (s *MongoStore) InsertMany(ctx context.Context, coll string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batch := make([]any, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, toBSON(doc))
	}

	result, err := s.db.Collection(coll).InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	if err != nil {
		return 0, mapMongoError(fmt.Sprintf("inserting into %s", coll), err)
	}
	return len(result.InsertedIDs), nil
}

// Update applies patch with $set and returns the document after the update.
func (s *MongoStore) Update(ctx context.Context, coll string, f *Filter, patch Document) (Document, error) {
	filter, err := mongoFilter(f)
	if err != nil {
		return nil, err
	}

	set := toBSON(patch.Without(IDField))
	if len(set) == 0 {
		return s.FindOne(ctx, coll, f)
	}

	var raw bson.M
	err = s.db.Collection(coll).FindOneAndUpdate(ctx, filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapMongoError(fmt.Sprintf("updating %s", coll), err)
	}
	return fromBSON(raw), nil
}

// Delete removes every document matching f.
func (s *MongoStore) Delete(ctx context.Context, coll string, f *Filter) (int64, error) {
	filter, err := mongoFilter(f)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	result, err := s.db.Collection(coll).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", coll, err)
	}
	return result.DeletedCount, nil
}

// Summarize pushes the aggregate down as a $match + $group pipeline.
func (s *MongoStore) Summarize(ctx context.Context, coll string, f *Filter, valueField, timeField string) (Summary, error) {
	if err := ValidateField(valueField); err != nil {
		return Summary{}, err
	}
	if err := ValidateField(timeField); err != nil {
		return Summary{}, err
	}
	filter, err := mongoFilter(f)
	if errors.Is(err, ErrNotFound) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}

	value, stamp := "$"+valueField, "$"+timeField
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: value}}},
			{Key: "min", Value: bson.D{{Key: "$min", Value: value}}},
			{Key: "max", Value: bson.D{{Key: "$max", Value: value}}},
			{Key: "first", Value: bson.D{{Key: "$min", Value: stamp}}},
			{Key: "last", Value: bson.D{{Key: "$max", Value: stamp}}},
		}}},
	}

	cursor, err := s.db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing %s: %w", coll, err)
	}

	var groups []bson.M
	if err := cursor.All(ctx, &groups); err != nil {
		return Summary{}, fmt.Errorf("reading %s summary: %w", coll, err)
	}
	if len(groups) == 0 {
		return Summary{}, nil
	}
	return summaryFromGroup(groups[0]), nil
}

// Ping verifies the server is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("pinging mongodb: %w", err)
	}
	return nil
}

// mongoFilter translates f into a bson.M. A malformed internal identifier
// can match nothing, which is reported as ErrNotFound.
func mongoFilter(f *Filter) (bson.M, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := bson.M{}
	if id, ok := f.InternalID(); ok {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, ErrNotFound
		}
		out[IDField] = oid
	}

	for _, c := range f.Conditions() {
		v := toBSONValue(c.Value)
		switch c.Op {
		case OpEq:
			out[c.Field] = v
		case OpGte, OpLte:
			key := "$gte"
			if c.Op == OpLte {
				key = "$lte"
			}
			bounds, ok := out[c.Field].(bson.M)
			if !ok {
				bounds = bson.M{}
				out[c.Field] = bounds
			}
			bounds[key] = v
		}
	}
	return out, nil
}

func summaryFromGroup(g bson.M) Summary {
	var sum Summary
	if n, ok := Float(g["count"]); ok {
		sum.Count = int64(n)
	}
	if avg, ok := Float(g["avg"]); ok {
		sum.Avg = &avg
		if minV, ok := Float(g["min"]); ok {
			sum.Min = &minV
		}
		if maxV, ok := Float(g["max"]); ok {
			sum.Max = &maxV
		}
	}
	if first, ok := fromBSONValue(g["first"]).(Time); ok {
		sum.First = &first
	}
	if last, ok := fromBSONValue(g["last"]).(Time); ok {
		sum.Last = &last
	}
	return sum
}

// toBSON converts a document for writing: Time becomes a BSON date and a hex
// internal identifier becomes an ObjectID.
func toBSON(doc Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == IDField {
			if s, ok := v.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(s); err == nil {
					out[k] = oid
					continue
				}
			}
		}
		out[k] = toBSONValue(v)
	}
	return out
}

func toBSONValue(v any) any {
	switch t := v.(type) {
	case Time:
		return t.Time
	case *Time:
		if t == nil {
			return nil
		}
		return t.Time
	case Document:
		return toBSON(t)
	case map[string]any:
		return toBSON(Document(t))
	case []any:
		out := make(bson.A, len(t))
		for i, vv := range t {
			out[i] = toBSONValue(vv)
		}
		return out
	default:
		return v
	}
}

// fromBSON converts a decoded document into a Document with plain Go values.
func fromBSON(m bson.M) Document {
	out := make(Document, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return NewTime(t.Time())
	case time.Time:
		return NewTime(t)
	case primitive.M:
		return fromBSON(bson.M(t))
	case map[string]any:
		return fromBSON(bson.M(t))
	case primitive.D:
		return fromBSON(bson.M(t.Map()))
	case primitive.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = fromBSONValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = fromBSONValue(vv)
		}
		return out
	case primitive.Decimal128:
		return t.String()
	default:
		return v
	}
}

// mapMongoError converts duplicate key errors into ErrDuplicate.
func mapMongoError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
