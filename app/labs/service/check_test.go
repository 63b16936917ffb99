package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"nosql-labs/app/labs/model"
)

func TestRunChecks(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("all pass", func(mt *mtest.T) {
		mt.AddMockResponses(countResponse("vendors", 12))
		checks := []model.Check{
			{Label: "vendors seeded", Collection: "vendors", Expected: 12},
		}
		results, err := RunChecks(context.Background(), mt.Client.Database(testDB), checks)
		require.NoError(mt, err)
		assert.Equal(mt, []model.CheckResult{{Label: "vendors seeded", Expected: 12, Actual: 12, Passed: true}}, results)
	})

	mt.Run("reference check and driver error", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "values", Value: bson.A{"v1", "v2"}}),
			countResponse("orders", 2),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}),
		)
		checks := []model.Check{
			{Label: "orders reference vendors", Collection: "orders", Field: "vendorId",
				ForeignCollection: "vendors", ForeignField: "_id", Expected: 0},
			{Label: "payments", Collection: "payments", Expected: 1},
		}
		results, err := RunChecks(context.Background(), mt.Client.Database(testDB), checks)
		assert.True(mt, errors.Is(err, ErrChecksFailed))
		assert.Equal(mt, "2 of 2: checks failed", err.Error())
		require.Len(mt, results, 2)
		assert.Equal(mt, int64(2), results[0].Actual)
		assert.False(mt, results[0].Passed)
		assert.Contains(mt, results[1].Error, "not authorized")
		assert.False(mt, results[1].Passed)
	})
}
