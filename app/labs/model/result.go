package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// QueryResult is what one query produced. Only the fields relevant to the op are set.
type QueryResult struct {
	Name       string        `json:"name" bson:"name"`
	Op         string        `json:"op" bson:"op"`
	Database   string        `json:"database" bson:"database"`
	Collection string        `json:"collection" bson:"collection"`
	Status     string        `json:"status" bson:"status"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt" bson:"startedAt"`
	Duration   time.Duration `json:"duration" bson:"duration"`

	Documents   []bson.D        `json:"-" bson:"-"`
	Count       *int64          `json:"count,omitempty" bson:"count,omitempty"`
	Values      []interface{}   `json:"-" bson:"-"`
	InsertedIDs []interface{}   `json:"-" bson:"-"`
	Matched     *int64          `json:"matched,omitempty" bson:"matched,omitempty"`
	Modified    *int64          `json:"modified,omitempty" bson:"modified,omitempty"`
	Upserted    *int64          `json:"upserted,omitempty" bson:"upserted,omitempty"`
	Deleted     *int64          `json:"deleted,omitempty" bson:"deleted,omitempty"`
	IndexName   string          `json:"indexName,omitempty" bson:"indexName,omitempty"`
	Explain     *ExplainSummary `json:"explain,omitempty" bson:"explain,omitempty"`
	Stats       *CollStats      `json:"stats,omitempty" bson:"stats,omitempty"`

	// Output holds documents, distinct values and inserted ids rendered as relaxed Extended JSON.
	Output []string `json:"output,omitempty" bson:"-"`
}

func (r *QueryResult) OK() bool {
	return r.Status == StatusOK
}

// ExplainSummary condenses the executionStats section of an explain plan.
type ExplainSummary struct {
	Verbosity           string   `json:"verbosity" bson:"verbosity"`
	WinningStage        string   `json:"winningStage,omitempty" bson:"winningStage,omitempty"`
	IndexesUsed         []string `json:"indexesUsed,omitempty" bson:"indexesUsed,omitempty"`
	NReturned           int64    `json:"nReturned" bson:"nReturned"`
	TotalKeysExamined   int64    `json:"totalKeysExamined" bson:"totalKeysExamined"`
	TotalDocsExamined   int64    `json:"totalDocsExamined" bson:"totalDocsExamined"`
	ExecutionTimeMillis int64    `json:"executionTimeMillis" bson:"executionTimeMillis"`
	HasExecutionStats   bool     `json:"hasExecutionStats" bson:"hasExecutionStats"`
}

// CollStats is the part of collStats worth printing.
type CollStats struct {
	Namespace   string           `json:"ns" bson:"ns"`
	Count       int64            `json:"count" bson:"count"`
	AvgObjSize  float64          `json:"avgObjSize" bson:"avgObjSize"`
	Size        int64            `json:"size" bson:"size"`
	StorageSize int64            `json:"storageSize" bson:"storageSize"`
	NIndexes    int64            `json:"nindexes" bson:"nindexes"`
	IndexSizes  map[string]int64 `json:"indexSizes,omitempty" bson:"indexSizes,omitempty"`
}

// RunReport is the outcome of running one book.
type RunReport struct {
	ID           string        `json:"id" bson:"_id"`
	Book         string        `json:"book" bson:"book"`
	Database     string        `json:"database" bson:"database"`
	StartedAt    time.Time     `json:"startedAt" bson:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt" bson:"finishedAt"`
	Precondition string        `json:"precondition,omitempty" bson:"precondition,omitempty"`
	Results      []QueryResult `json:"results" bson:"results"`
	Passed       int           `json:"passed" bson:"passed"`
	Failed       int           `json:"failed" bson:"failed"`
	Skipped      int           `json:"skipped" bson:"skipped"`
}

func (r *RunReport) OK() bool {
	return r.Precondition == "" && r.Failed == 0
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Tally recounts Passed and Failed from Results.
func (r *RunReport) Tally() {
	r.Passed, r.Failed = 0, 0
	for i := range r.Results {
		if r.Results[i].OK() {
			r.Passed++
		} else {
			r.Failed++
		}
	}
}
