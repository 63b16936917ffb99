package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

const (
	collectionErrorSample = 10
	fileErrorSample       = 5
)

// BSONTypeOf names the $jsonSchema bsonType of a decoded value.
func BSONTypeOf(v interface{}) string {
	switch v.(type) {
	case nil, primitive.Null:
		return "null"
	case int32:
		return "int"
	case int64, int:
		return "long"
	case float64, float32:
		return "double"
	case primitive.Decimal128:
		return "decimal"
	case string:
		return "string"
	case bool:
		return "bool"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.ObjectID:
		return "objectId"
	case bson.A, []interface{}:
		return "array"
	case bson.D, bson.M, map[string]interface{}:
		return "object"
	case primitive.Binary:
		return "binData"
	case primitive.Regex:
		return "regex"
	case primitive.Timestamp:
		return "timestamp"
	case primitive.JavaScript:
		return "javascript"
	case primitive.MinKey:
		return "minKey"
	case primitive.MaxKey:
		return "maxKey"
	case primitive.Undefined:
		return "undefined"
	}
	return "unknown"
}

func isNumberType(t string) bool {
	switch t {
	case "int", "long", "double", "decimal":
		return true
	}
	return false
}

func typeMatches(types model.TypeList, actual string) bool {
	if types.Has(actual) {
		return true
	}
	return isNumberType(actual) && types.Has("number")
}

// ValidateDocument returns one message per rule the document breaks; none means valid.
func ValidateDocument(doc interface{}, schema *model.Schema) []string {
	return validateObject("", doc, schema)
}

func validateObject(prefix string, doc interface{}, schema *model.Schema) []string {
	errs := make([]string, 0)
	lookup := fieldsOf(doc)
	for _, field := range schema.Required {
		if _, ok := lookup(field); !ok {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", prefix+field))
		}
	}
	if len(schema.Properties) == 0 {
		return errs
	}
	for _, field := range keysOf(doc) {
		fieldSchema, ok := schema.Properties[field]
		if !ok || fieldSchema == nil {
			continue
		}
		value, _ := lookup(field)
		errs = append(errs, validateValue(prefix+field, value, fieldSchema)...)
	}
	return errs
}

func validateValue(path string, value interface{}, schema *model.Schema) []string {
	errs := make([]string, 0)
	valueType := BSONTypeOf(value)
	if len(schema.BSONType) > 0 && !typeMatches(schema.BSONType, valueType) {
		errs = append(errs, fmt.Sprintf("Field '%s' should be %s, got %s",
			path, strings.Join(schema.BSONType, " or "), valueType))
	}
	switch v := value.(type) {
	case string:
		length := int64(utf8.RuneCountInString(v))
		if schema.MinLength != nil && length < *schema.MinLength {
			errs = append(errs, fmt.Sprintf("Field '%s' length %d is less than minimum %d", path, length, *schema.MinLength))
		}
		if schema.MaxLength != nil && length > *schema.MaxLength {
			errs = append(errs, fmt.Sprintf("Field '%s' length %d exceeds maximum %d", path, length, *schema.MaxLength))
		}
		re, err := schema.Regexp()
		if err != nil {
			errs = append(errs, fmt.Sprintf("Field '%s' has an invalid pattern: %s", path, err.Error()))
		} else if re != nil && !re.MatchString(v) {
			errs = append(errs, fmt.Sprintf("Field '%s' doesn't match pattern %s", path, schema.Pattern))
		}
	case bson.A, []interface{}:
		items := toSlice(v)
		n := int64(len(items))
		if schema.MinItems != nil && n < *schema.MinItems {
			errs = append(errs, fmt.Sprintf("Field '%s' array length %d is less than minimum %d", path, n, *schema.MinItems))
		}
		if schema.MaxItems != nil && n > *schema.MaxItems {
			errs = append(errs, fmt.Sprintf("Field '%s' array length %d exceeds maximum %d", path, n, *schema.MaxItems))
		}
		if schema.Items != nil {
			for i, item := range items {
				errs = append(errs, validateValue(fmt.Sprintf("%s[%d]", path, i), item, schema.Items)...)
			}
		}
	case bson.D, bson.M, map[string]interface{}:
		if len(schema.Required) > 0 || len(schema.Properties) > 0 {
			errs = append(errs, validateObject(path+".", v, schema)...)
		}
	}
	if isNumberType(valueType) {
		n := toFloat64Value(value)
		if schema.Minimum != nil && n < *schema.Minimum {
			errs = append(errs, fmt.Sprintf("Field '%s' value %v is less than minimum %v", path, value, *schema.Minimum))
		}
		if schema.Maximum != nil && n > *schema.Maximum {
			errs = append(errs, fmt.Sprintf("Field '%s' value %v exceeds maximum %v", path, value, *schema.Maximum))
		}
	}
	if len(schema.Enum) > 0 && !inEnum(value, schema.Enum) {
		allowed := make([]string, len(schema.Enum))
		for i, e := range schema.Enum {
			allowed[i] = fmt.Sprint(e)
		}
		errs = append(errs, fmt.Sprintf("Field '%s' value '%v' not in allowed values: %s",
			path, value, strings.Join(allowed, ", ")))
	}
	return errs
}

func fieldsOf(doc interface{}) func(string) (interface{}, bool) {
	switch d := doc.(type) {
	case bson.D:
		return func(key string) (interface{}, bool) {
			for _, e := range d {
				if e.Key == key {
					return e.Value, true
				}
			}
			return nil, false
		}
	case bson.M:
		return func(key string) (interface{}, bool) {
			v, ok := d[key]
			return v, ok
		}
	case map[string]interface{}:
		return func(key string) (interface{}, bool) {
			v, ok := d[key]
			return v, ok
		}
	}
	return func(string) (interface{}, bool) { return nil, false }
}

func keysOf(doc interface{}) []string {
	switch d := doc.(type) {
	case bson.D:
		keys := make([]string, len(d))
		for i, e := range d {
			keys[i] = e.Key
		}
		return keys
	case bson.M:
		return util.SortedKeys(map[string]interface{}(d))
	case map[string]interface{}:
		return util.SortedKeys(d)
	}
	return nil
}

func toSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case bson.A:
		return s
	case []interface{}:
		return s
	}
	return nil
}

func toFloat64Value(v interface{}) float64 {
	switch n := v.(type) {
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case float32:
		return float64(n)
	}
	return toFloat64(v)
}

// inEnum compares numbers by value across int/long/double and everything else structurally.
func inEnum(value interface{}, enum []interface{}) bool {
	valueNumeric := isNumberType(BSONTypeOf(value))
	for _, e := range enum {
		if valueNumeric && isNumberType(BSONTypeOf(e)) {
			if toFloat64Value(value) == toFloat64Value(e) {
				return true
			}
			continue
		}
		if reflect.DeepEqual(value, e) {
			return true
		}
	}
	return false
}

// ApplySchema installs schema as the collection validator. Existing collections get
// collMod with moderate/warn so current data is not rejected; new ones are created strict/error.
func ApplySchema(ctx context.Context, db *mongo.Database, collection string, schema *model.Schema) (created bool, err error) {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return false, err
	}
	if len(names) > 0 {
		cmd := bson.D{
			{Key: "collMod", Value: collection},
			{Key: "validator", Value: schema.Validator()},
			{Key: "validationLevel", Value: "moderate"},
			{Key: "validationAction", Value: "warn"},
		}
		if err := db.RunCommand(ctx, cmd).Err(); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return false, err
		}
		return false, nil
	}
	opts := options.CreateCollection().
		SetValidator(schema.Validator()).
		SetValidationLevel("strict").
		SetValidationAction("error")
	if err := db.CreateCollection(ctx, collection, opts); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return false, err
	}
	return true, nil
}

// ValidateCollection checks every stored document, keeping the first ten failures.
func ValidateCollection(ctx context.Context, db *mongo.Database, collection, schemaName string, schema *model.Schema) (model.ValidationResult, error) {
	result := model.ValidationResult{Collection: collection, Schema: schemaName, Errors: []model.DocumentErrors{}}
	cursor, err := db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return result, err
	}
	defer cursor.Close(ctx)
	for index := 0; cursor.Next(ctx); index++ {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return result, err
		}
		record(&result, index, doc, ValidateDocument(doc, schema), collectionErrorSample)
	}
	if err := cursor.Err(); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return result, err
	}
	return result, nil
}

// ValidateFile checks a seed file: a JSON array or object by default, or any dataset format.
func ValidateFile(path, format, schemaName string, schema *model.Schema) (model.ValidationResult, error) {
	result := model.ValidationResult{File: path, Schema: schemaName, Errors: []model.DocumentErrors{}}
	index := 0
	visit := func(doc bson.D) error {
		record(&result, index, doc, ValidateDocument(doc, schema), fileErrorSample)
		index++
		return nil
	}
	var err error
	if format == "" && strings.EqualFold(filepath.Ext(path), ".json") {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return result, errors.WithStack(err)
		}
		defer f.Close()
		_, err = readJSON(f, true, visit)
	} else {
		_, err = ReadDataset(path, formatOrGuess(path, format), visit)
	}
	if err != nil {
		return result, errors.Wrap(err, path)
	}
	return result, nil
}

func formatOrGuess(path, format string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return model.FormatJSONArray
	case ".ndjson", ".jsonl":
		return model.FormatNDJSON
	case ".bson":
		return model.FormatBSON
	case ".xlsx":
		return model.FormatXLSX
	}
	return format
}

func record(result *model.ValidationResult, index int, doc bson.D, errs []string, sample int) {
	result.Total++
	if len(errs) == 0 {
		result.Valid++
		return
	}
	result.Invalid++
	if len(result.Errors) < sample {
		id, _ := fieldsOf(doc)("_id")
		result.Errors = append(result.Errors, model.DocumentErrors{Index: index, ID: id, Errors: errs})
	}
}
