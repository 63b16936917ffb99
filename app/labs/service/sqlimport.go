package service

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"nosql-labs/common/database"
	"nosql-labs/common/gormscope"
	"nosql-labs/common/log"
)

const DefaultImportBatchSize = 500

// TableImport copies one SQL table into a collection.
type TableImport struct {
	Table      string   `yaml:"table"`
	Collection string   `yaml:"collection"`
	KeyColumns []string `yaml:"keys"`
	// Columns, when set, must include the key columns.
	Columns []string `yaml:"columns"`
	Where   string   `yaml:"where"`
	// Since and Until bound TimeColumn, inclusive. Either may be empty.
	TimeColumn string `yaml:"timeColumn"`
	Since      string `yaml:"since"`
	Until      string `yaml:"until"`
	// IDColumn becomes the document _id.
	IDColumn string `yaml:"id"`
	Reset    bool   `yaml:"reset"`
}

func (t TableImport) CollectionName() string {
	if t.Collection != "" {
		return t.Collection
	}
	return t.Table
}

// ImportPlan is the file given to import-sql.
type ImportPlan struct {
	Database string        `yaml:"database"`
	Tables   []TableImport `yaml:"tables"`
}

func LoadImportPlan(path string) (*ImportPlan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	plan := &ImportPlan{}
	if err := yaml.Unmarshal(content, plan); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(plan.Tables) == 0 {
		return nil, errors.Errorf("%s: no tables", path)
	}
	for _, t := range plan.Tables {
		if t.Table == "" || len(t.KeyColumns) == 0 {
			return nil, errors.Errorf("%s: every table needs table and keys", path)
		}
	}
	return plan, nil
}

type ImportResult struct {
	Table      string
	Collection string
	Rows       int
	Error      string
}

// ImportTables pages through each table by its key columns and inserts every page.
// A failing table is recorded and the next one still runs.
func ImportTables(ctx context.Context, gormDB *gorm.DB, db *mongo.Database, tables []TableImport, batchSize int) ([]ImportResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}
	results := make([]ImportResult, 0, len(tables))
	failed := 0
	for _, t := range tables {
		result := ImportResult{Table: t.Table, Collection: t.CollectionName()}
		err := log.WithTracer(ctx, PackageName, "import "+t.Table, func(ctx context.Context) error {
			n, err := importTable(ctx, gormDB, db, t, batchSize)
			result.Rows = n
			return err
		})
		if err != nil {
			failed++
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	if failed > 0 {
		return results, errors.Errorf("%d of %d tables failed to import", failed, len(tables))
	}
	return results, nil
}

func importTable(ctx context.Context, gormDB *gorm.DB, db *mongo.Database, t TableImport, batchSize int) (int, error) {
	if len(t.KeyColumns) == 0 {
		return 0, errors.Errorf("table %s: keys are required", t.Table)
	}
	coll := db.Collection(t.CollectionName())
	if t.Reset {
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return 0, err
		}
	}
	cols := make([]database.OrderColumn, len(t.KeyColumns))
	for i, c := range t.KeyColumns {
		cols[i] = database.OrderColumn{ColumnName: c, Asc: true}
	}
	scopes := []gormscope.Scope{gormscope.Columns(t.Columns...), gormscope.Where(t.Where)}
	if t.TimeColumn != "" {
		scopes = append(scopes, gormscope.DateTimeRange(t.TimeColumn, t.Since, t.Until))
	}
	scoped := gormscope.Apply(gormDB.WithContext(ctx), scopes...)
	next := database.BatchQuery(scoped, t.Table, batchSize, cols)
	total := 0
	for {
		rows, err := next()
		if err != nil {
			Logger().WithContext(ctx).WithField("table", t.Table).Error(err.Error())
			return total, errors.Wrapf(err, "table %s", t.Table)
		}
		if len(rows) == 0 {
			return total, nil
		}
		docs := make([]interface{}, len(rows))
		for i, row := range rows {
			docs[i] = RowToDoc(row, t.IDColumn)
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return total, err
		}
		total += len(rows)
	}
}

// RowToDoc turns a SQL row into a document with columns in name order. []byte becomes
// string; times and nulls are kept.
func RowToDoc(row map[string]interface{}, idColumn string) bson.D {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(bson.D, 0, len(keys)+1)
	if v, ok := row[idColumn]; ok && idColumn != "" {
		doc = append(doc, bson.E{Key: "_id", Value: sqlValue(v)})
	}
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: sqlValue(row[k])})
	}
	return doc
}

func sqlValue(v interface{}) interface{} {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case *time.Time:
		if value == nil {
			return nil
		}
		return *value
	}
	return v
}
