package model

import (
	"github.com/pkg/errors"
)

const (
	OpFind           = "find"
	OpFindOne        = "findOne"
	OpCount          = "count"
	OpEstimatedCount = "estimatedCount"
	OpDistinct       = "distinct"
	OpAggregate      = "aggregate"
	OpInsertOne      = "insertOne"
	OpInsertMany     = "insertMany"
	OpUpdateOne      = "updateOne"
	OpUpdateMany     = "updateMany"
	OpReplaceOne     = "replaceOne"
	OpDeleteOne      = "deleteOne"
	OpDeleteMany     = "deleteMany"
	OpCreateIndex    = "createIndex"
	OpDropIndex      = "dropIndex"
	OpListIndexes    = "listIndexes"
	OpExplain        = "explain"
	OpStats          = "stats"
	OpDrop           = "drop"
)

const DefaultExplainVerbosity = "executionStats"

var (
	ErrUnknownOp = errors.New("unknown operation")
	ErrInvalid   = errors.New("invalid query")
)

// Ops lists every supported operation in documentation order.
var Ops = []string{
	OpFind, OpFindOne, OpCount, OpEstimatedCount, OpDistinct, OpAggregate,
	OpInsertOne, OpInsertMany, OpUpdateOne, OpUpdateMany, OpReplaceOne,
	OpDeleteOne, OpDeleteMany, OpCreateIndex, OpDropIndex, OpListIndexes,
	OpExplain, OpStats, OpDrop,
}

func IsOp(op string) bool {
	for _, o := range Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Query is one named operation against one collection.
type Query struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Database    string   `yaml:"database,omitempty" json:"database,omitempty"`
	Collection  string   `yaml:"collection" json:"collection"`
	Op          string   `yaml:"op" json:"op"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`

	Filter      Doc      `yaml:"filter,omitempty" json:"filter,omitempty"`
	Pipeline    Pipeline `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Document    Doc      `yaml:"document,omitempty" json:"document,omitempty"`
	Documents   Docs     `yaml:"documents,omitempty" json:"documents,omitempty"`
	Update      *Update  `yaml:"update,omitempty" json:"update,omitempty"`
	Replacement Doc      `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Projection  Doc      `yaml:"projection,omitempty" json:"projection,omitempty"`
	Sort        Doc      `yaml:"sort,omitempty" json:"sort,omitempty"`
	Keys        Doc      `yaml:"keys,omitempty" json:"keys,omitempty"`

	Limit              int64  `yaml:"limit,omitempty" json:"limit,omitempty"`
	Skip               int64  `yaml:"skip,omitempty" json:"skip,omitempty"`
	Upsert             bool   `yaml:"upsert,omitempty" json:"upsert,omitempty"`
	Unique             bool   `yaml:"unique,omitempty" json:"unique,omitempty"`
	Sparse             bool   `yaml:"sparse,omitempty" json:"sparse,omitempty"`
	IndexName          string `yaml:"indexName,omitempty" json:"indexName,omitempty"`
	ExpireAfterSeconds *int32 `yaml:"expireAfterSeconds,omitempty" json:"expireAfterSeconds,omitempty"`
	Field              string `yaml:"field,omitempty" json:"field,omitempty"`
	Verbosity          string `yaml:"verbosity,omitempty" json:"verbosity,omitempty"`
	Reset              bool   `yaml:"reset,omitempty" json:"reset,omitempty"`
}

// Target resolves the database the query runs against: its own, then the book's, then defaultDB.
func (q *Query) Target(bookDB, defaultDB string) string {
	if q.Database != "" {
		return q.Database
	}
	if bookDB != "" {
		return bookDB
	}
	return defaultDB
}

// Validate checks that the query names a known op and carries the bodies that op needs.
func (q *Query) Validate() error {
	if q.Name == "" {
		return errors.Wrap(ErrInvalid, "name is required")
	}
	if q.Op == "" {
		return errors.Wrapf(ErrInvalid, "%s: op is required", q.Name)
	}
	if !IsOp(q.Op) {
		return errors.Wrapf(ErrUnknownOp, "%s: %q", q.Name, q.Op)
	}
	if q.Collection == "" {
		return errors.Wrapf(ErrInvalid, "%s: collection is required", q.Name)
	}
	missing := func(field string) error {
		return errors.Wrapf(ErrInvalid, "%s: %s needs %s", q.Name, q.Op, field)
	}
	switch q.Op {
	case OpAggregate:
		if q.Pipeline == nil {
			return missing("pipeline")
		}
	case OpDistinct:
		if q.Field == "" {
			return missing("field")
		}
	case OpInsertOne:
		if q.Document == nil {
			return missing("document")
		}
	case OpInsertMany:
		if len(q.Documents) == 0 {
			return missing("documents")
		}
	case OpUpdateOne, OpUpdateMany:
		if q.Update.Value() == nil {
			return missing("update")
		}
	case OpReplaceOne:
		if q.Replacement == nil {
			return missing("replacement")
		}
	case OpCreateIndex:
		if len(q.Keys) == 0 {
			return missing("keys")
		}
	case OpDropIndex:
		if q.IndexName == "" && len(q.Keys) == 0 {
			return missing("indexName or keys")
		}
	case OpExplain:
		switch q.ExplainVerbosity() {
		case "queryPlanner", "executionStats", "allPlansExecution":
		default:
			return errors.Wrapf(ErrInvalid, "%s: unknown explain verbosity %q", q.Name, q.Verbosity)
		}
	}
	if q.Limit < 0 || q.Skip < 0 {
		return errors.Wrapf(ErrInvalid, "%s: limit and skip must not be negative", q.Name)
	}
	return nil
}

func (q *Query) ExplainVerbosity() string {
	if q.Verbosity == "" {
		return DefaultExplainVerbosity
	}
	return q.Verbosity
}

// IsWrite reports whether the op changes data or indexes.
func (q *Query) IsWrite() bool {
	switch q.Op {
	case OpInsertOne, OpInsertMany, OpUpdateOne, OpUpdateMany, OpReplaceOne,
		OpDeleteOne, OpDeleteMany, OpCreateIndex, OpDropIndex, OpDrop:
		return true
	}
	return false
}
