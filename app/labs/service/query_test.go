package service

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"nosql-labs/app/labs/model"
)

const testDB = "festival_final"

func mustDoc(t *testing.T, text string) model.Doc {
	t.Helper()
	d, err := model.ParseDoc(text)
	require.NoError(t, err)
	return model.Doc(d)
}

func TestRequireCollections(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "orders"}},
			bson.D{{Key: "name", Value: "festivals"}},
		))
		err := RequireCollections(context.Background(), mt.Client.Database(testDB),
			[]string{"vendors", "orders", "events"})
		missing, ok := IsMissingCollections(err)
		require.True(mt, ok)
		assert.Equal(mt, []string{"events", "vendors"}, missing.Missing)
		assert.Equal(mt, "database festival_final is missing required collections: events, vendors", err.Error())
	})

	mt.Run("present", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "orders"}},
			bson.D{{Key: "name", Value: "vendors"}},
		))
		err := RequireCollections(context.Background(), mt.Client.Database(testDB), []string{"vendors", "orders"})
		assert.NoError(mt, err)
	})

	mt.Run("nothing required", func(mt *mtest.T) {
		assert.NoError(mt, RequireCollections(context.Background(), mt.Client.Database(testDB), nil))
	})
}

func TestRunQuery(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()
	book := &model.QueryBook{Name: "festival", Database: testDB}

	mt.Run("find", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".events", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "Opening"}},
			bson.D{{Key: "_id", Value: int32(2)}, {Key: "name", Value: "Closing"}},
		))
		svc := NewLabService(mt.Client, "fallback")
		q := &model.Query{Name: "events", Op: model.OpFind, Collection: "events",
			Filter: mustDoc(mt.T, `{"status": "active"}`), Limit: 5}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		assert.Equal(mt, model.StatusOK, result.Status)
		assert.Equal(mt, testDB, result.Database)
		assert.Len(mt, result.Documents, 2)
		assert.Equal(mt, []string{`{"_id":1,"name":"Opening"}`, `{"_id":2,"name":"Closing"}`}, result.Output)
	})

	mt.Run("findOne without match", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".events", mtest.FirstBatch))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "one", Op: model.OpFindOne, Collection: "events"}
		result, err := svc.RunQuery(context.Background(), nil, q)
		require.NoError(mt, err)
		assert.Empty(mt, result.Documents)
		assert.Equal(mt, "--- one [findOne festival_final.events] ---\nnull\n", FormatResult(&result))
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".vendors", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(7)}},
		))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "active_vendors", Op: model.OpCount, Collection: "vendors"}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		require.NotNil(mt, result.Count)
		assert.Equal(mt, int64(7), *result.Count)
	})

	mt.Run("distinct", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "values", Value: bson.A{"drinks", "food"}},
		))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "categories", Op: model.OpDistinct, Collection: "vendors", Field: "category"}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		assert.Equal(mt, []string{`"drinks"`, `"food"`}, result.Output)
		assert.Equal(mt, int64(2), *result.Count)
	})

	mt.Run("insertMany with reset", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(3)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}),
		)
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "seed", Op: model.OpInsertMany, Collection: "vendors", Reset: true,
			Documents: model.Docs{
				{{Key: "_id", Value: "v1"}, {Key: "name", Value: "Tacos"}},
				{{Key: "_id", Value: "v2"}, {Key: "name", Value: "Crepes"}},
			}}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), *result.Count)
		assert.Equal(mt, []string{`"v1"`, `"v2"`}, result.Output)
	})

	mt.Run("updateMany", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(3)},
			bson.E{Key: "nModified", Value: int32(2)},
		))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "raise_prices", Op: model.OpUpdateMany, Collection: "menu",
			Update: &model.Update{Doc: bson.D{{Key: "$inc", Value: bson.D{{Key: "price", Value: 1}}}}}}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), *result.Matched)
		assert.Equal(mt, int64(2), *result.Modified)
		assert.Equal(mt, int64(0), *result.Upserted)
	})

	mt.Run("deleteMany", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "purge", Op: model.OpDeleteMany, Collection: "orders",
			Filter: mustDoc(mt.T, `{"status": "cancelled"}`)}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), *result.Deleted)
	})

	mt.Run("explain", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "queryPlanner", Value: bson.D{{Key: "winningPlan", Value: bson.D{
				{Key: "stage", Value: "FETCH"},
				{Key: "inputStage", Value: bson.D{
					{Key: "stage", Value: "IXSCAN"},
					{Key: "indexName", Value: "status_1"},
				}},
			}}}},
			bson.E{Key: "executionStats", Value: bson.D{
				{Key: "nReturned", Value: int32(2)},
				{Key: "totalKeysExamined", Value: int32(2)},
				{Key: "totalDocsExamined", Value: int32(2)},
				{Key: "executionTimeMillis", Value: int32(1)},
			}},
		))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "plan", Op: model.OpExplain, Collection: "orders",
			Filter: mustDoc(mt.T, `{"status": "paid"}`)}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.NoError(mt, err)
		require.NotNil(mt, result.Explain)
		assert.Equal(mt, "FETCH", result.Explain.WinningStage)
		assert.Equal(mt, []string{"status_1"}, result.Explain.IndexesUsed)
		assert.Equal(mt, int64(2), result.Explain.NReturned)
		assert.True(mt, result.Explain.HasExecutionStats)
	})

	mt.Run("driver error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "unknown operator: $foo",
		}))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "broken", Op: model.OpFind, Collection: "orders",
			Filter: mustDoc(mt.T, `{"x": {"$foo": 1}}`)}
		result, err := svc.RunQuery(context.Background(), book, q)
		require.Error(mt, err)
		assert.True(mt, strings.HasPrefix(err.Error(), "query broken: "))
		assert.Equal(mt, model.StatusFail, result.Status)
		assert.Contains(mt, result.Error, "unknown operator")
	})

	mt.Run("query requirement", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "orders"}},
		))
		svc := NewLabService(mt.Client, testDB)
		q := &model.Query{Name: "joined", Op: model.OpFind, Collection: "orders", Requires: []string{"payments"}}
		result, err := svc.RunQuery(context.Background(), book, q)
		_, ok := IsMissingCollections(err)
		assert.True(mt, ok)
		assert.Equal(mt, model.StatusFail, result.Status)
	})

	mt.Run("unknown op", func(mt *mtest.T) {
		svc := NewLabService(mt.Client, testDB)
		_, err := svc.RunQuery(context.Background(), book, &model.Query{Name: "x", Op: "mapReduce", Collection: "orders"})
		assert.True(mt, errors.Is(err, model.ErrUnknownOp))
	})
}

func TestIndexName(t *testing.T) {
	keys := bson.D{{Key: "vendorId", Value: 1}, {Key: "createdAt", Value: -1}}
	if got := IndexName(keys); got != "vendorId_1_createdAt_-1" {
		t.Errorf("want vendorId_1_createdAt_-1 got %s", got)
	}
	text := bson.D{{Key: "name", Value: "text"}}
	if got := IndexName(text); got != "name_text" {
		t.Errorf("want name_text got %s", got)
	}
}

func TestExplainCommand(t *testing.T) {
	q := &model.Query{Name: "plan", Collection: "orders", Filter: model.Doc{{Key: "status", Value: "paid"}}, Limit: 3}
	cmd := ExplainCommand(q)
	want := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "find", Value: "orders"},
			{Key: "filter", Value: bson.D{{Key: "status", Value: "paid"}}},
			{Key: "limit", Value: int64(3)},
		}},
		{Key: "verbosity", Value: model.DefaultExplainVerbosity},
	}
	assert.Equal(t, want, cmd)

	q.Pipeline = model.Pipeline{{{Key: "$match", Value: bson.D{}}}}
	inner := ExplainCommand(q)[0].Value.(bson.D)
	assert.Equal(t, "aggregate", inner[0].Key)
}

func TestSummarizeExplain(t *testing.T) {
	t.Run("aggregate cursor stage", func(t *testing.T) {
		plan := bson.M{"stages": bson.A{
			bson.M{"$cursor": bson.M{
				"queryPlanner": bson.M{"winningPlan": bson.M{"queryPlan": bson.M{
					"stage":      "PROJECTION_SIMPLE",
					"inputStage": bson.M{"stage": "IXSCAN", "indexName": "vendorId_1"},
				}}},
				"executionStats": bson.M{"nReturned": int64(5), "totalDocsExamined": int32(5)},
			}},
			bson.M{"$group": bson.M{}},
		}}
		s := SummarizeExplain(plan, "executionStats")
		assert.Equal(t, "PROJECTION_SIMPLE", s.WinningStage)
		assert.Equal(t, []string{"vendorId_1"}, s.IndexesUsed)
		assert.Equal(t, int64(5), s.NReturned)
		assert.Equal(t, int64(5), s.TotalDocsExamined)
		assert.True(t, s.HasExecutionStats)
	})

	t.Run("collection scan", func(t *testing.T) {
		plan := bson.M{"queryPlanner": bson.M{"winningPlan": bson.M{"stage": "COLLSCAN"}}}
		s := SummarizeExplain(plan, "queryPlanner")
		assert.Equal(t, "COLLSCAN", s.WinningStage)
		assert.Empty(t, s.IndexesUsed)
		assert.False(t, s.HasExecutionStats)
		assert.Equal(t, "winning stage: COLLSCAN\nindexes used: none (COLLSCAN)\n", FormatExplain(s))
	})
}

func TestSummarizeCollStats(t *testing.T) {
	raw := bson.M{
		"ns": "festival_final.orders", "count": int32(120), "avgObjSize": 212.5,
		"size": int64(25500), "storageSize": int32(36864), "nindexes": int32(2),
		"indexSizes": bson.M{"_id_": int32(20480), "vendorId_1": int32(16384)},
	}
	s := SummarizeCollStats(raw)
	assert.Equal(t, "festival_final.orders", s.Namespace)
	assert.Equal(t, int64(120), s.Count)
	assert.Equal(t, map[string]int64{"_id_": 20480, "vendorId_1": 16384}, s.IndexSizes)
	want := "ns: festival_final.orders\n" +
		"count: 120, avgObjSize: 212, size: 25500, storageSize: 36864, nindexes: 2\n" +
		"  _id_: 20480\n" +
		"  vendorId_1: 16384\n"
	assert.Equal(t, want, FormatStats(s))
}
