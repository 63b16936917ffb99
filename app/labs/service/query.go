package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
)

// RunQuery executes exactly one operation. The returned result is filled in even on error.
func (svc *LabService) RunQuery(ctx context.Context, book *model.QueryBook, q *model.Query) (model.QueryResult, error) {
	bookDB := ""
	if book != nil {
		bookDB = book.Database
	}
	result := model.QueryResult{
		Name:       q.Name,
		Op:         q.Op,
		Database:   q.Target(bookDB, svc.DefaultDB),
		Collection: q.Collection,
		StartedAt:  time.Now(),
	}
	db := svc.MongodbClient.Database(result.Database)
	err := RequireCollections(ctx, db, q.Requires)
	if err == nil {
		err = runOp(ctx, db, q, &result)
	}
	result.Duration = time.Since(result.StartedAt)
	queryDuration.WithLabelValues(q.Op).Observe(result.Duration.Seconds())
	if err != nil {
		result.Status = model.StatusFail
		result.Error = err.Error()
		queriesCounter.WithLabelValues(q.Op, model.StatusFail).Inc()
		return result, errors.Wrapf(err, "query %s", q.Name)
	}
	result.Status = model.StatusOK
	queriesCounter.WithLabelValues(q.Op, model.StatusOK).Inc()
	return result, nil
}

func filterOf(q *model.Query) bson.D {
	if q.Filter == nil {
		return bson.D{}
	}
	return bson.D(q.Filter)
}

func runOp(ctx context.Context, db *mongo.Database, q *model.Query, r *model.QueryResult) error {
	coll := db.Collection(q.Collection)
	switch q.Op {
	case model.OpFind:
		return find(ctx, coll, q, r)
	case model.OpFindOne:
		return findOne(ctx, coll, q, r)
	case model.OpCount:
		opts := options.Count()
		if q.Limit > 0 {
			opts.SetLimit(q.Limit)
		}
		if q.Skip > 0 {
			opts.SetSkip(q.Skip)
		}
		n, err := coll.CountDocuments(ctx, filterOf(q), opts)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.Count = &n
	case model.OpEstimatedCount:
		n, err := coll.EstimatedDocumentCount(ctx)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.Count = &n
	case model.OpDistinct:
		values, err := coll.Distinct(ctx, q.Field, filterOf(q))
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.Values = values
		for _, v := range values {
			r.Output = append(r.Output, RenderValue(v))
		}
		n := int64(len(values))
		r.Count = &n
	case model.OpAggregate:
		cursor, err := coll.Aggregate(ctx, mongo.Pipeline(q.Pipeline))
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		return collect(ctx, cursor, r)
	case model.OpInsertOne:
		if err := reset(ctx, coll, q); err != nil {
			return err
		}
		res, err := coll.InsertOne(ctx, bson.D(q.Document))
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		setInserted(r, []interface{}{res.InsertedID})
	case model.OpInsertMany:
		if err := reset(ctx, coll, q); err != nil {
			return err
		}
		docs := make([]interface{}, len(q.Documents))
		for i, d := range q.Documents {
			docs[i] = d
		}
		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		setInserted(r, res.InsertedIDs)
	case model.OpUpdateOne, model.OpUpdateMany:
		opts := options.Update().SetUpsert(q.Upsert)
		var (
			res *mongo.UpdateResult
			err error
		)
		if q.Op == model.OpUpdateOne {
			res, err = coll.UpdateOne(ctx, filterOf(q), q.Update.Value(), opts)
		} else {
			res, err = coll.UpdateMany(ctx, filterOf(q), q.Update.Value(), opts)
		}
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		setUpdate(r, res)
	case model.OpReplaceOne:
		res, err := coll.ReplaceOne(ctx, filterOf(q), bson.D(q.Replacement), options.Replace().SetUpsert(q.Upsert))
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		setUpdate(r, res)
	case model.OpDeleteOne, model.OpDeleteMany:
		var (
			res *mongo.DeleteResult
			err error
		)
		if q.Op == model.OpDeleteOne {
			res, err = coll.DeleteOne(ctx, filterOf(q))
		} else {
			res, err = coll.DeleteMany(ctx, filterOf(q))
		}
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.Deleted = &res.DeletedCount
	case model.OpCreateIndex:
		opts := options.Index()
		if q.IndexName != "" {
			opts.SetName(q.IndexName)
		}
		if q.Unique {
			opts.SetUnique(true)
		}
		if q.Sparse {
			opts.SetSparse(true)
		}
		if q.ExpireAfterSeconds != nil {
			opts.SetExpireAfterSeconds(*q.ExpireAfterSeconds)
		}
		if q.Filter != nil {
			opts.SetPartialFilterExpression(bson.D(q.Filter))
		}
		name, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D(q.Keys), Options: opts})
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.IndexName = name
	case model.OpDropIndex:
		name := q.IndexName
		if name == "" {
			name = IndexName(bson.D(q.Keys))
		}
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.IndexName = name
	case model.OpListIndexes:
		cursor, err := coll.Indexes().List(ctx)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		return collect(ctx, cursor, r)
	case model.OpExplain:
		return explain(ctx, db, q, r)
	case model.OpStats:
		var raw bson.M
		if err := db.RunCommand(ctx, bson.D{{Key: "collStats", Value: q.Collection}}).Decode(&raw); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		r.Stats = SummarizeCollStats(raw)
	case model.OpDrop:
		if err := coll.Drop(ctx); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
	default:
		return errors.Wrap(model.ErrUnknownOp, q.Op)
	}
	return nil
}

func find(ctx context.Context, coll *mongo.Collection, q *model.Query, r *model.QueryResult) error {
	opts := options.Find()
	if q.Projection != nil {
		opts.SetProjection(bson.D(q.Projection))
	}
	if q.Sort != nil {
		opts.SetSort(bson.D(q.Sort))
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	cursor, err := coll.Find(ctx, filterOf(q), opts)
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	return collect(ctx, cursor, r)
}

// findOne treats "no document" as an empty result, like findOne printing null.
func findOne(ctx context.Context, coll *mongo.Collection, q *model.Query, r *model.QueryResult) error {
	opts := options.FindOne()
	if q.Projection != nil {
		opts.SetProjection(bson.D(q.Projection))
	}
	if q.Sort != nil {
		opts.SetSort(bson.D(q.Sort))
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	var doc bson.D
	if err := coll.FindOne(ctx, filterOf(q), opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			r.Documents = []bson.D{}
			return nil
		}
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	setDocuments(r, []bson.D{doc})
	return nil
}

func collect(ctx context.Context, cursor *mongo.Cursor, r *model.QueryResult) error {
	docs := make([]bson.D, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	setDocuments(r, docs)
	return nil
}

func setDocuments(r *model.QueryResult, docs []bson.D) {
	r.Documents = docs
	r.Output = make([]string, len(docs))
	for i, d := range docs {
		r.Output[i] = RenderValue(d)
	}
}

func setInserted(r *model.QueryResult, ids []interface{}) {
	r.InsertedIDs = ids
	for _, id := range ids {
		r.Output = append(r.Output, RenderValue(id))
	}
	n := int64(len(ids))
	r.Count = &n
}

func setUpdate(r *model.QueryResult, res *mongo.UpdateResult) {
	r.Matched = &res.MatchedCount
	r.Modified = &res.ModifiedCount
	r.Upserted = &res.UpsertedCount
	if res.UpsertedID != nil {
		r.InsertedIDs = []interface{}{res.UpsertedID}
		r.Output = []string{RenderValue(res.UpsertedID)}
	}
}

// reset empties the collection before seeding inserts so reruns do not duplicate data.
func reset(ctx context.Context, coll *mongo.Collection, q *model.Query) error {
	if !q.Reset {
		return nil
	}
	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	return nil
}

// IndexName builds the server's default index name: {a: 1, b: -1} -> a_1_b_-1.
func IndexName(keys bson.D) string {
	parts := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}
