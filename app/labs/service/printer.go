package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/util"
)

// ConsoleReporter prints a run the way the mongo shell scripts did with print/printjson.
type ConsoleReporter struct {
	Out io.Writer
}

func (c *ConsoleReporter) Name() string {
	return "console"
}

func (c *ConsoleReporter) Report(_ context.Context, report *model.RunReport) error {
	_, err := io.WriteString(c.Out, FormatRun(report))
	return err
}

// FormatRun renders a whole run: one section per query, then an [OK]/[FAIL] tally.
func FormatRun(report *model.RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s (%s) ===\n", report.Book, report.Database)
	if report.Precondition != "" {
		fmt.Fprintf(&sb, "[FAIL] precondition: %s\n", report.Precondition)
	}
	for i := range report.Results {
		sb.WriteString("\n")
		sb.WriteString(FormatResult(&report.Results[i]))
	}
	sb.WriteString("\n")
	for i := range report.Results {
		r := &report.Results[i]
		if r.OK() {
			fmt.Fprintf(&sb, "[OK] %s\n", r.Name)
		} else {
			fmt.Fprintf(&sb, "[FAIL] %s: %s\n", r.Name, r.Error)
		}
	}
	fmt.Fprintf(&sb, "Total: %d, passed: %d, failed: %d, skipped: %d (%s)\n",
		len(report.Results)+report.Skipped, report.Passed, report.Failed, report.Skipped,
		report.Duration().Round(time.Millisecond))
	return sb.String()
}

// FormatResult renders one query: a header, its documents or summary line.
func FormatResult(r *model.QueryResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s [%s %s.%s] ---\n", r.Name, r.Op, r.Database, r.Collection)
	if !r.OK() {
		fmt.Fprintf(&sb, "error: %s\n", r.Error)
		return sb.String()
	}
	switch r.Op {
	case model.OpFind, model.OpAggregate, model.OpListIndexes:
		for _, d := range r.Documents {
			sb.WriteString(RenderDoc(d))
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s\n", plural(len(r.Documents), "document"))
	case model.OpFindOne:
		if len(r.Documents) == 0 {
			sb.WriteString("null\n")
		} else {
			sb.WriteString(RenderDoc(r.Documents[0]))
			sb.WriteString("\n")
		}
	case model.OpCount, model.OpEstimatedCount:
		fmt.Fprintf(&sb, "%d\n", deref(r.Count))
	case model.OpDistinct:
		sb.WriteString("[" + strings.Join(r.Output, ", ") + "]\n")
		fmt.Fprintf(&sb, "%s\n", plural(len(r.Output), "distinct value"))
	case model.OpInsertOne, model.OpInsertMany:
		fmt.Fprintf(&sb, "inserted: %d\n", deref(r.Count))
		if len(r.Output) > 0 {
			fmt.Fprintf(&sb, "insertedIds: [%s]\n", strings.Join(r.Output, ", "))
		}
	case model.OpUpdateOne, model.OpUpdateMany, model.OpReplaceOne:
		fmt.Fprintf(&sb, "matched: %d, modified: %d, upserted: %d\n",
			deref(r.Matched), deref(r.Modified), deref(r.Upserted))
		if len(r.Output) > 0 {
			fmt.Fprintf(&sb, "upsertedId: %s\n", r.Output[0])
		}
	case model.OpDeleteOne, model.OpDeleteMany:
		fmt.Fprintf(&sb, "deleted: %d\n", deref(r.Deleted))
	case model.OpCreateIndex:
		fmt.Fprintf(&sb, "index: %s\n", r.IndexName)
	case model.OpDropIndex:
		fmt.Fprintf(&sb, "dropped index: %s\n", r.IndexName)
	case model.OpExplain:
		sb.WriteString(FormatExplain(r.Explain))
	case model.OpStats:
		sb.WriteString(FormatStats(r.Stats))
	case model.OpDrop:
		sb.WriteString("dropped\n")
	}
	return sb.String()
}

func FormatExplain(e *model.ExplainSummary) string {
	if e == nil {
		return "no plan\n"
	}
	var sb strings.Builder
	indexes := "none (COLLSCAN)"
	if len(e.IndexesUsed) > 0 {
		indexes = strings.Join(e.IndexesUsed, ", ")
	}
	fmt.Fprintf(&sb, "winning stage: %s\n", e.WinningStage)
	fmt.Fprintf(&sb, "indexes used: %s\n", indexes)
	if e.HasExecutionStats {
		fmt.Fprintf(&sb, "nReturned: %d, totalKeysExamined: %d, totalDocsExamined: %d, executionTimeMillis: %d\n",
			e.NReturned, e.TotalKeysExamined, e.TotalDocsExamined, e.ExecutionTimeMillis)
	}
	return sb.String()
}

func FormatStats(s *model.CollStats) string {
	if s == nil {
		return "no stats\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ns: %s\n", s.Namespace)
	fmt.Fprintf(&sb, "count: %d, avgObjSize: %.0f, size: %d, storageSize: %d, nindexes: %d\n",
		s.Count, s.AvgObjSize, s.Size, s.StorageSize, s.NIndexes)
	for _, name := range util.SortedKeys(s.IndexSizes) {
		fmt.Fprintf(&sb, "  %s: %d\n", name, s.IndexSizes[name])
	}
	return sb.String()
}

// FormatChecks renders check results and their tally.
func FormatChecks(results []model.CheckResult) string {
	var sb strings.Builder
	passed := 0
	for _, r := range results {
		sb.WriteString(r.String())
		sb.WriteString("\n")
		if r.Passed {
			passed++
		}
	}
	fmt.Fprintf(&sb, "Total: %d, passed: %d, failed: %d\n", len(results), passed, len(results)-passed)
	return sb.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
