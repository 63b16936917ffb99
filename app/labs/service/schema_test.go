package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nosql-labs/app/labs/model"
)

const vendorSchemas = `
vendors:
  collection: vendors
  $jsonSchema:
    bsonType: object
    required: [name, category]
    properties:
      name: {bsonType: string, minLength: 2, maxLength: 10}
      category: {enum: [food, drinks, merch]}
      rating: {bsonType: number, minimum: 0, maximum: 5}
      code: {bsonType: string, pattern: '^V[0-9]{3}$'}
      tags:
        bsonType: array
        maxItems: 2
        items: {bsonType: string}
      address:
        bsonType: object
        required: [city]
        properties:
          zip: {bsonType: string}
`

func vendorSchema(t *testing.T) *model.Schema {
	t.Helper()
	set, err := model.ParseSchemas([]byte(vendorSchemas))
	require.NoError(t, err)
	entry, err := set.Get("vendors")
	require.NoError(t, err)
	return entry.Schema
}

func TestBSONTypeOf(t *testing.T) {
	tests := []struct {
		v    interface{}
		want string
	}{
		{nil, "null"},
		{int32(1), "int"},
		{int64(1), "long"},
		{1.5, "double"},
		{"x", "string"},
		{true, "bool"},
		{primitive.NewDateTimeFromTime(time.Now()), "date"},
		{primitive.NewObjectID(), "objectId"},
		{bson.A{1}, "array"},
		{bson.D{}, "object"},
		{primitive.Decimal128{}, "decimal"},
	}
	for _, tt := range tests {
		if got := BSONTypeOf(tt.v); got != tt.want {
			t.Errorf("%T: want %s got %s", tt.v, tt.want, got)
		}
	}
}

func TestValidateDocument(t *testing.T) {
	schema := vendorSchema(t)
	tests := []struct {
		name string
		doc  bson.D
		want []string
	}{
		{
			name: "valid",
			doc: bson.D{
				{Key: "name", Value: "Tasca"},
				{Key: "category", Value: "food"},
				{Key: "rating", Value: int32(4)},
				{Key: "code", Value: "V001"},
				{Key: "tags", Value: bson.A{"grill"}},
				{Key: "address", Value: bson.D{{Key: "city", Value: "Porto"}}},
			},
			want: []string{},
		},
		{
			name: "missing required",
			doc:  bson.D{{Key: "name", Value: "Tasca"}},
			want: []string{"Missing required field: category"},
		},
		{
			name: "wrong type",
			doc:  bson.D{{Key: "name", Value: int32(3)}, {Key: "category", Value: "food"}},
			want: []string{"Field 'name' should be string, got int"},
		},
		{
			name: "lengths and pattern",
			doc: bson.D{
				{Key: "name", Value: "T"},
				{Key: "category", Value: "food"},
				{Key: "code", Value: "X1"},
			},
			want: []string{
				"Field 'name' length 1 is less than minimum 2",
				"Field 'code' doesn't match pattern ^V[0-9]{3}$",
			},
		},
		{
			name: "range and enum",
			doc: bson.D{
				{Key: "name", Value: "Tasca"},
				{Key: "category", Value: "tools"},
				{Key: "rating", Value: 7.5},
			},
			want: []string{
				"Field 'category' value 'tools' not in allowed values: food, drinks, merch",
				"Field 'rating' value 7.5 exceeds maximum 5",
			},
		},
		{
			name: "array and nested",
			doc: bson.D{
				{Key: "name", Value: "Tasca"},
				{Key: "category", Value: "food"},
				{Key: "tags", Value: bson.A{"a", int32(1), "c"}},
				{Key: "address", Value: bson.D{{Key: "zip", Value: int32(4000)}}},
			},
			want: []string{
				"Field 'tags' array length 3 exceeds maximum 2",
				"Field 'tags[1]' should be string, got int",
				"Missing required field: address.city",
				"Field 'address.zip' should be string, got int",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDocument(tt.doc, schema))
		})
	}
}

func TestValidateDocumentNameIsMultibyte(t *testing.T) {
	schema := vendorSchema(t)
	doc := bson.D{{Key: "name", Value: "Açaí Café"}, {Key: "category", Value: "food"}}
	assert.Empty(t, ValidateDocument(doc, schema))
}

func TestInEnumComparesNumbersByValue(t *testing.T) {
	enum := []interface{}{1, 2.5, "x"}
	assert.True(t, inEnum(int32(1), enum))
	assert.True(t, inEnum(int64(1), enum))
	assert.True(t, inEnum(2.5, enum))
	assert.True(t, inEnum("x", enum))
	assert.False(t, inEnum(int32(3), enum))
	assert.False(t, inEnum("1", enum))
}

func TestValidateFile(t *testing.T) {
	schema := vendorSchema(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "vendors.json", []byte(`[
  {"_id": 1, "name": "Tasca", "category": "food"},
  {"_id": 2, "name": "T", "category": "food"},
  {"_id": 3, "name": "Bar", "category": "tools"}
]`))
	result, err := ValidateFile(path, "", "vendors", schema)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Valid)
	assert.Equal(t, 2, result.Invalid)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, int32(2), result.Errors[0].ID)

	single := writeFile(t, dir, "one.json", []byte(`{"name": "Tasca", "category": "food"}`))
	result, err = ValidateFile(single, "", "vendors", schema)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Valid)
}

func TestValidateFileKeepsFirstFiveFailures(t *testing.T) {
	schema := vendorSchema(t)
	lines := ""
	for i := 0; i < 8; i++ {
		lines += "{\"name\": \"x\"}\n"
	}
	path := writeFile(t, t.TempDir(), "vendors.ndjson", []byte(lines))
	result, err := ValidateFile(path, "", "vendors", schema)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Invalid)
	assert.Len(t, result.Errors, fileErrorSample)
}
