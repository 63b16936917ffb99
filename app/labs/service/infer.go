package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/counter"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

const DefaultInferSample = 100

// FieldTypes is what was seen at one dotted path. Array elements use the path suffix "[]".
type FieldTypes struct {
	Path  string         `json:"path"`
	Seen  int            `json:"seen"`
	Types map[string]int `json:"types"`
}

// Ranked returns the observed types, most frequent first.
func (f FieldTypes) Ranked() []counter.Entry[string] {
	return counter.Counter[string](f.Types).Ranked(func(a, b string) bool { return a < b })
}

type InferredSchema struct {
	Collection string       `json:"collection"`
	Sampled    int          `json:"sampled"`
	Fields     []FieldTypes `json:"fields"`
}

// InferSchema samples up to sample documents with $sample and tallies field types.
func InferSchema(ctx context.Context, coll *mongo.Collection, sample int) (*InferredSchema, error) {
	if sample <= 0 {
		sample = DefaultInferSample
	}
	pipeline := mongo.Pipeline{{{Key: "$sample", Value: bson.D{{Key: "size", Value: sample}}}}}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return nil, err
	}
	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return nil, err
	}
	inferred := InferFromDocuments(docs)
	inferred.Collection = coll.Name()
	return inferred, nil
}

func InferFromDocuments(docs []bson.D) *InferredSchema {
	types := make(map[string]counter.Counter[string])
	var observe func(path string, v interface{})
	observe = func(path string, v interface{}) {
		if types[path] == nil {
			types[path] = counter.Counter[string]{}
		}
		types[path].Inc(BSONTypeOf(v), 1)
		switch value := v.(type) {
		case bson.D:
			for _, e := range value {
				observe(path+"."+e.Key, e.Value)
			}
		case bson.A:
			for _, item := range value {
				observe(path+"[]", item)
			}
		}
	}
	for _, doc := range docs {
		for _, e := range doc {
			observe(e.Key, e.Value)
		}
	}
	paths := util.SortedKeys(types)
	inferred := &InferredSchema{Sampled: len(docs), Fields: make([]FieldTypes, 0, len(paths))}
	for _, path := range paths {
		inferred.Fields = append(inferred.Fields, FieldTypes{Path: path, Seen: types[path].Total(), Types: types[path]})
	}
	return inferred
}

// Draft turns the tallies into a starting $jsonSchema: top-level fields seen in every
// sampled document are required, and every observed type is allowed.
func (s *InferredSchema) Draft() *model.Schema {
	root := &model.Schema{BSONType: model.TypeList{"object"}, Properties: map[string]*model.Schema{}}
	for _, f := range s.Fields {
		if !isTopLevel(f.Path) {
			continue
		}
		prop := &model.Schema{}
		for _, entry := range f.Ranked() {
			prop.BSONType = append(prop.BSONType, entry.Key)
		}
		root.Properties[f.Path] = prop
		if f.Seen == s.Sampled {
			root.Required = append(root.Required, f.Path)
		}
	}
	return root
}

func isTopLevel(path string) bool {
	for _, c := range path {
		if c == '.' || c == '[' {
			return false
		}
	}
	return true
}
