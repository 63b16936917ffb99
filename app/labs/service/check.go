package service

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
)

// RunChecks evaluates every check. Driver errors fail the check, not the whole run.
func RunChecks(ctx context.Context, db *mongo.Database, checks []model.Check) ([]model.CheckResult, error) {
	results := make([]model.CheckResult, 0, len(checks))
	failed := 0
	for i := range checks {
		c := &checks[i]
		result := model.CheckResult{Label: c.Label, Expected: c.Expected}
		_ = log.WithTracer(ctx, PackageName, "check "+c.Label, func(ctx context.Context) error {
			actual, err := countCheck(ctx, db, c)
			if err != nil {
				result.Error = err.Error()
				return err
			}
			result.Actual = actual
			result.Passed = actual == c.Expected
			return nil
		})
		if result.Passed {
			checksCounter.WithLabelValues(model.StatusOK).Inc()
		} else {
			failed++
			checksCounter.WithLabelValues(model.StatusFail).Inc()
		}
		results = append(results, result)
	}
	if failed > 0 {
		return results, errors.Wrapf(ErrChecksFailed, "%d of %d", failed, len(results))
	}
	return results, nil
}

func countCheck(ctx context.Context, db *mongo.Database, c *model.Check) (int64, error) {
	filter := bson.D{}
	if c.Filter != nil {
		filter = bson.D(c.Filter)
	}
	if c.IsReference() {
		foreignField := c.ForeignField
		if foreignField == "" {
			foreignField = c.Field
		}
		values, err := db.Collection(c.ForeignCollection).Distinct(ctx, foreignField, bson.D{})
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return 0, err
		}
		filter = bson.D{{Key: c.Field, Value: bson.D{{Key: "$nin", Value: values}}}}
	}
	n, err := db.Collection(c.Collection).CountDocuments(ctx, filter)
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return 0, err
	}
	return n, nil
}
