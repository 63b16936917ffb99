package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

// ExplainCommand wraps the query's aggregate (when it has a pipeline) or find in an explain command.
func ExplainCommand(q *model.Query) bson.D {
	var inner bson.D
	if q.Pipeline != nil {
		inner = bson.D{
			{Key: "aggregate", Value: q.Collection},
			{Key: "pipeline", Value: mongo.Pipeline(q.Pipeline)},
			{Key: "cursor", Value: bson.D{}},
		}
	} else {
		inner = bson.D{
			{Key: "find", Value: q.Collection},
			{Key: "filter", Value: filterOf(q)},
		}
		if q.Projection != nil {
			inner = append(inner, bson.E{Key: "projection", Value: bson.D(q.Projection)})
		}
		if q.Sort != nil {
			inner = append(inner, bson.E{Key: "sort", Value: bson.D(q.Sort)})
		}
		if q.Limit > 0 {
			inner = append(inner, bson.E{Key: "limit", Value: q.Limit})
		}
		if q.Skip > 0 {
			inner = append(inner, bson.E{Key: "skip", Value: q.Skip})
		}
	}
	return bson.D{
		{Key: "explain", Value: inner},
		{Key: "verbosity", Value: q.ExplainVerbosity()},
	}
}

func explain(ctx context.Context, db *mongo.Database, q *model.Query, r *model.QueryResult) error {
	var plan bson.M
	if err := db.RunCommand(ctx, ExplainCommand(q)).Decode(&plan); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	r.Explain = SummarizeExplain(plan, q.ExplainVerbosity())
	return nil
}

// SummarizeExplain reads executionStats either at the top of the plan or, for
// aggregations, under stages[].$cursor.
func SummarizeExplain(plan bson.M, verbosity string) *model.ExplainSummary {
	summary := &model.ExplainSummary{Verbosity: verbosity}
	planner, _ := plan["queryPlanner"].(bson.M)
	stats, _ := plan["executionStats"].(bson.M)
	if stages, ok := plan["stages"].(bson.A); ok {
		for _, s := range stages {
			stage, _ := s.(bson.M)
			cursor, _ := stage["$cursor"].(bson.M)
			if cursor == nil {
				continue
			}
			if planner == nil {
				planner, _ = cursor["queryPlanner"].(bson.M)
			}
			if stats == nil {
				stats, _ = cursor["executionStats"].(bson.M)
			}
		}
	}
	if planner != nil {
		if winning, ok := planner["winningPlan"].(bson.M); ok {
			summary.WinningStage = winningStage(winning)
			indexes := util.MakeCollect[string]()
			collectIndexNames(winning, indexes)
			summary.IndexesUsed = util.SortedStrings(indexes)
		}
	}
	if stats != nil {
		summary.HasExecutionStats = true
		summary.NReturned = toInt64(stats["nReturned"])
		summary.TotalKeysExamined = toInt64(stats["totalKeysExamined"])
		summary.TotalDocsExamined = toInt64(stats["totalDocsExamined"])
		summary.ExecutionTimeMillis = toInt64(stats["executionTimeMillis"])
	}
	return summary
}

// winningStage returns the top stage name; slot-based plans nest it under queryPlan.
func winningStage(winning bson.M) string {
	if stage, ok := winning["stage"].(string); ok {
		return stage
	}
	if inner, ok := winning["queryPlan"].(bson.M); ok {
		return winningStage(inner)
	}
	return ""
}

func collectIndexNames(v interface{}, out map[string]struct{}) {
	switch node := v.(type) {
	case bson.M:
		if name, ok := node["indexName"].(string); ok {
			out[name] = struct{}{}
		}
		for _, child := range node {
			collectIndexNames(child, out)
		}
	case bson.A:
		for _, child := range node {
			collectIndexNames(child, out)
		}
	}
}

// SummarizeCollStats keeps ns, counts, sizes and per-index sizes of a collStats reply.
func SummarizeCollStats(raw bson.M) *model.CollStats {
	stats := &model.CollStats{
		Count:       toInt64(raw["count"]),
		AvgObjSize:  toFloat64(raw["avgObjSize"]),
		Size:        toInt64(raw["size"]),
		StorageSize: toInt64(raw["storageSize"]),
		NIndexes:    toInt64(raw["nindexes"]),
	}
	stats.Namespace, _ = raw["ns"].(string)
	if sizes, ok := raw["indexSizes"].(bson.M); ok {
		stats.IndexSizes = make(map[string]int64, len(sizes))
		for name, size := range sizes {
			stats.IndexSizes[name] = toInt64(size)
		}
	}
	return stats
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
