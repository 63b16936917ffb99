package service

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

// RequireCollections fails with *MissingCollectionsError naming, sorted, every name absent from db.
func RequireCollections(ctx context.Context, db *mongo.Database, names []string) error {
	if len(names) == 0 {
		return nil
	}
	existing, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	missing := util.MakeCollect(existing...).Missing(names)
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingCollectionsError{Database: db.Name(), Missing: missing}
}
