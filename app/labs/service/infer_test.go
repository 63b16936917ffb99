package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"nosql-labs/app/labs/model"
)

func TestInferFromDocuments(t *testing.T) {
	docs := []bson.D{
		{{Key: "name", Value: "Tasca"}, {Key: "rating", Value: int32(4)}, {Key: "tags", Value: bson.A{"grill", "wine"}}},
		{{Key: "name", Value: "Bar"}, {Key: "rating", Value: 3.5}, {Key: "address", Value: bson.D{{Key: "city", Value: "Porto"}}}},
	}
	inferred := InferFromDocuments(docs)
	assert.Equal(t, 2, inferred.Sampled)

	paths := make([]string, 0, len(inferred.Fields))
	byPath := map[string]FieldTypes{}
	for _, f := range inferred.Fields {
		paths = append(paths, f.Path)
		byPath[f.Path] = f
	}
	assert.Equal(t, []string{"address", "address.city", "name", "rating", "tags", "tags[]"}, paths)
	assert.Equal(t, map[string]int{"int": 1, "double": 1}, byPath["rating"].Types)
	assert.Equal(t, 2, byPath["tags[]"].Seen)
	assert.Equal(t, map[string]int{"object": 1}, byPath["address"].Types)

	draft := inferred.Draft()
	assert.Equal(t, []string{"name", "rating"}, draft.Required)
	require.Contains(t, draft.Properties, "rating")
	assert.Equal(t, model.TypeList{"double", "int"}, draft.Properties["rating"].BSONType)
	assert.NotContains(t, draft.Properties, "address.city")
	assert.Empty(t, ValidateDocument(docs[0], draft))
	assert.Empty(t, ValidateDocument(docs[1], draft))
}
