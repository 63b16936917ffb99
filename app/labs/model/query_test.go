package model

import (
	"testing"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

func TestQueryValidate(t *testing.T) {
	doc := Doc{{Key: "a", Value: 1}}
	cases := []struct {
		name    string
		query   Query
		wantErr error
	}{
		{"find ok", Query{Name: "q", Collection: "c", Op: OpFind}, nil},
		{"no name", Query{Collection: "c", Op: OpFind}, ErrInvalid},
		{"no op", Query{Name: "q", Collection: "c"}, ErrInvalid},
		{"unknown op", Query{Name: "q", Collection: "c", Op: "mapReduce"}, ErrUnknownOp},
		{"no collection", Query{Name: "q", Op: OpFind}, ErrInvalid},
		{"aggregate without pipeline", Query{Name: "q", Collection: "c", Op: OpAggregate}, ErrInvalid},
		{"aggregate ok", Query{Name: "q", Collection: "c", Op: OpAggregate, Pipeline: Pipeline{}}, nil},
		{"distinct without field", Query{Name: "q", Collection: "c", Op: OpDistinct}, ErrInvalid},
		{"insertOne without document", Query{Name: "q", Collection: "c", Op: OpInsertOne}, ErrInvalid},
		{"insertMany without documents", Query{Name: "q", Collection: "c", Op: OpInsertMany, Documents: Docs{}}, ErrInvalid},
		{"insertMany ok", Query{Name: "q", Collection: "c", Op: OpInsertMany, Documents: Docs{bson.D(doc)}}, nil},
		{"updateOne without update", Query{Name: "q", Collection: "c", Op: OpUpdateOne}, ErrInvalid},
		{"updateMany ok", Query{Name: "q", Collection: "c", Op: OpUpdateMany, Update: &Update{Doc: bson.D(doc)}}, nil},
		{"replaceOne without replacement", Query{Name: "q", Collection: "c", Op: OpReplaceOne}, ErrInvalid},
		{"createIndex without keys", Query{Name: "q", Collection: "c", Op: OpCreateIndex}, ErrInvalid},
		{"createIndex ok", Query{Name: "q", Collection: "c", Op: OpCreateIndex, Keys: doc}, nil},
		{"dropIndex without name", Query{Name: "q", Collection: "c", Op: OpDropIndex}, ErrInvalid},
		{"dropIndex by name", Query{Name: "q", Collection: "c", Op: OpDropIndex, IndexName: "a_1"}, nil},
		{"explain bad verbosity", Query{Name: "q", Collection: "c", Op: OpExplain, Verbosity: "loud"}, ErrInvalid},
		{"negative limit", Query{Name: "q", Collection: "c", Op: OpFind, Limit: -1}, ErrInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.query.Validate()
			if c.wantErr == nil {
				if err != nil {
					t.Errorf("want nil got %v", err)
				}
				return
			}
			if errors.Cause(err) != c.wantErr {
				t.Errorf("want %v got %v", c.wantErr, err)
			}
		})
	}
}

func TestQueryTarget(t *testing.T) {
	q := Query{}
	if got := q.Target("book", "default"); got != "book" {
		t.Errorf("want book got %s", got)
	}
	if got := q.Target("", "default"); got != "default" {
		t.Errorf("want default got %s", got)
	}
	q.Database = "own"
	if got := q.Target("book", "default"); got != "own" {
		t.Errorf("want own got %s", got)
	}
}

func TestExplainVerbosity(t *testing.T) {
	q := Query{}
	if got := q.ExplainVerbosity(); got != DefaultExplainVerbosity {
		t.Errorf("want %s got %s", DefaultExplainVerbosity, got)
	}
	if !(&Query{Op: OpDeleteMany}).IsWrite() || (&Query{Op: OpFind}).IsWrite() {
		t.Errorf("unexpected IsWrite")
	}
}
