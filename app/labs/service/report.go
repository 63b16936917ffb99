package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

// Report formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatXLSX     = "xlsx"
)

const RedisReportKeyPrefix = "labctl:report:"

// RenderJSON renders a run report, documents included as relaxed Extended JSON strings.
func RenderJSON(report *model.RunReport) ([]byte, error) {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

func RenderMarkdown(report *model.RunReport) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", report.Book)
	fmt.Fprintf(&sb, "- **Run**: %s\n", report.ID)
	fmt.Fprintf(&sb, "- **Database**: %s\n", report.Database)
	fmt.Fprintf(&sb, "- **Started**: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration**: %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "- **Passed**: %d, **Failed**: %d, **Skipped**: %d\n", report.Passed, report.Failed, report.Skipped)
	if report.Precondition != "" {
		fmt.Fprintf(&sb, "\n**Precondition failed**: %s\n", report.Precondition)
	}
	sb.WriteString("\n| Query | Op | Collection | Status | Duration (ms) | Result |\n")
	sb.WriteString("|-------|----|------------|--------|---------------|--------|\n")
	for i := range report.Results {
		r := &report.Results[i]
		fmt.Fprintf(&sb, "| %s | %s | %s.%s | %s | %d | %s |\n",
			r.Name, r.Op, r.Database, r.Collection, r.Status, r.Duration.Milliseconds(),
			strings.ReplaceAll(summaryOf(r), "|", "\\|"))
	}
	for i := range report.Results {
		r := &report.Results[i]
		if len(r.Output) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n```json\n", r.Name)
		for _, line := range r.Output {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}
	return []byte(sb.String())
}

// RenderXLSX writes one row per query on the first sheet and the documents on "Output".
func RenderXLSX(report *model.RunReport) (*bytes.Buffer, error) {
	summary := make([][]interface{}, 0, len(report.Results))
	output := make([][]interface{}, 0)
	for i := range report.Results {
		r := &report.Results[i]
		summary = append(summary, []interface{}{
			r.Name, r.Op, r.Database, r.Collection, r.Status,
			r.Duration.Milliseconds(), summaryOf(r), r.Error,
		})
		for n, line := range r.Output {
			output = append(output, []interface{}{r.Name, n + 1, line})
		}
	}
	f := util.MakeExcelFromData(summary,
		[]string{"Query", "Op", "Database", "Collection", "Status", "Duration (ms)", "Result", "Error"})
	util.AddSheet(f, "Output", []string{"Query", "#", "Document"}, output)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

func summaryOf(r *model.QueryResult) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Explain != nil:
		return fmt.Sprintf("%s, %d returned, %d docs examined", r.Explain.WinningStage, r.Explain.NReturned, r.Explain.TotalDocsExamined)
	case r.Stats != nil:
		return fmt.Sprintf("%d documents, %d bytes", r.Stats.Count, r.Stats.Size)
	case r.Deleted != nil:
		return fmt.Sprintf("%d deleted", *r.Deleted)
	case r.Matched != nil:
		return fmt.Sprintf("%d matched, %d modified, %d upserted", deref(r.Matched), deref(r.Modified), deref(r.Upserted))
	case r.IndexName != "":
		return r.IndexName
	case r.Count != nil:
		return fmt.Sprintf("%d", *r.Count)
	}
	return plural(len(r.Output), "document")
}

// Render returns the report in format along with the file extension to store it under.
func Render(report *model.RunReport, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := RenderJSON(report)
		return b, ".json", err
	case FormatMarkdown:
		return RenderMarkdown(report), ".md", nil
	case FormatXLSX:
		buf, err := RenderXLSX(report)
		if err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ".xlsx", nil
	}
	return nil, "", errors.Errorf("unknown report format %q", format)
}

// ReportFileName is <book>-<startedAt>-<short id><ext>.
func ReportFileName(report *model.RunReport, ext string) string {
	id := report.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s%s", report.Book, report.StartedAt.Format("20060102150405"), id, ext)
}

// FileReporter writes the rendered report into Dir.
type FileReporter struct {
	Dir    string
	Format string
}

func (f *FileReporter) Name() string {
	return "file:" + f.Format
}

func (f *FileReporter) Report(ctx context.Context, report *model.RunReport) error {
	content, ext, err := Render(report, f.Format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	path := filepath.Join(f.Dir, ReportFileName(report, ext))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.WithStack(err)
	}
	Logger().WithContext(ctx).WithField("file", path).Info("report written")
	return nil
}

// MinIOReporter uploads the rendered report in every format to Bucket.
type MinIOReporter struct {
	Client  *minio.Client
	Bucket  string
	Formats []string
}

func (m *MinIOReporter) Name() string {
	return "minio"
}

func (m *MinIOReporter) Report(ctx context.Context, report *model.RunReport) error {
	for _, format := range m.Formats {
		content, ext, err := Render(report, format)
		if err != nil {
			return err
		}
		filename := report.Book + "/" + ReportFileName(report, ext)
		_, err = m.Client.PutObject(ctx, m.Bucket, filename, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{})
		if err != nil {
			log.Logger().WithContext(ctx).Error("minio save file: ", err.Error())
			return err
		}
	}
	return nil
}

// RedisReporter caches the latest JSON report of each book.
type RedisReporter struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

func RedisReportKey(book string) string {
	return RedisReportKeyPrefix + book
}

func (r *RedisReporter) Name() string {
	return "redis"
}

func (r *RedisReporter) Report(ctx context.Context, report *model.RunReport) error {
	content, err := RenderJSON(report)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, RedisReportKey(report.Book), content, r.TTL).Err(); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	return nil
}

// LatestReport returns the cached report JSON, or ErrNoDoc when nothing is cached.
func (r *RedisReporter) LatestReport(ctx context.Context, book string) ([]byte, error) {
	content, err := r.Client.Get(ctx, RedisReportKey(book)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoDoc
	}
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return nil, err
	}
	return content, nil
}

// HistoryRecord is one archived run. Report holds the full JSON report, gzip-compressed on disk.
type HistoryRecord struct {
	ID         string        `bson:"_id"`
	Book       string        `bson:"book"`
	Database   string        `bson:"database"`
	StartedAt  time.Time     `bson:"startedAt"`
	FinishedAt time.Time     `bson:"finishedAt"`
	Passed     int           `bson:"passed"`
	Failed     int           `bson:"failed"`
	Skipped    int           `bson:"skipped"`
	Report     util.GzipJSON `bson:"report"`
}

// MongoHistoryReporter archives every run into a collection.
type MongoHistoryReporter struct {
	Collection *mongo.Collection
}

// NewMongoHistoryReporter binds the history collection with the gzip JSON codec registered.
func NewMongoHistoryReporter(db *mongo.Database, collection string) *MongoHistoryReporter {
	return &MongoHistoryReporter{
		Collection: db.Collection(collection, options.Collection().SetRegistry(util.NewGzipJSONRegistry())),
	}
}

func (m *MongoHistoryReporter) Name() string {
	return "mongo"
}

func (m *MongoHistoryReporter) Report(ctx context.Context, report *model.RunReport) error {
	content, err := RenderJSON(report)
	if err != nil {
		return err
	}
	record := HistoryRecord{
		ID:         report.ID,
		Book:       report.Book,
		Database:   report.Database,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Passed:     report.Passed,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		Report:     content,
	}
	if _, err := m.Collection.InsertOne(ctx, record); err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	return nil
}

// Latest returns the most recent archived run of book, or ErrNoDoc.
func (m *MongoHistoryReporter) Latest(ctx context.Context, book string) (*HistoryRecord, error) {
	record := &HistoryRecord{}
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	err := m.Collection.FindOne(ctx, bson.D{{Key: "book", Value: book}}, opts).Decode(record)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoDoc
	}
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return nil, err
	}
	return record, nil
}

// LatestReport returns the report JSON of the most recent archived run of book.
func (m *MongoHistoryReporter) LatestReport(ctx context.Context, book string) ([]byte, error) {
	record, err := m.Latest(ctx, book)
	if err != nil {
		return nil, err
	}
	return record.Report, nil
}

// WebhookSummary is the body posted to the webhook.
type WebhookSummary struct {
	ID           string   `json:"id"`
	Book         string   `json:"book"`
	Database     string   `json:"database"`
	OK           bool     `json:"ok"`
	Precondition string   `json:"precondition,omitempty"`
	Passed       int      `json:"passed"`
	Failed       int      `json:"failed"`
	Skipped      int      `json:"skipped"`
	FailedNames  []string `json:"failedQueries,omitempty"`
	DurationMS   int64    `json:"durationMs"`
}

// WebhookReporter posts a summary of each run, or only of failed runs.
type WebhookReporter struct {
	Client       *resty.Client
	URL          string
	OnlyFailures bool
}

func NewWebhookReporter(url string, onlyFailures bool) *WebhookReporter {
	return &WebhookReporter{Client: resty.New(), URL: url, OnlyFailures: onlyFailures}
}

func (w *WebhookReporter) Name() string {
	return "webhook"
}

func Summarize(report *model.RunReport) WebhookSummary {
	summary := WebhookSummary{
		ID:           report.ID,
		Book:         report.Book,
		Database:     report.Database,
		OK:           report.OK(),
		Precondition: report.Precondition,
		Passed:       report.Passed,
		Failed:       report.Failed,
		Skipped:      report.Skipped,
		DurationMS:   report.Duration().Milliseconds(),
	}
	for i := range report.Results {
		if !report.Results[i].OK() {
			summary.FailedNames = append(summary.FailedNames, report.Results[i].Name)
		}
	}
	return summary
}

func (w *WebhookReporter) Report(ctx context.Context, report *model.RunReport) error {
	if w.OnlyFailures && report.OK() {
		return nil
	}
	resp, err := w.Client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Summarize(report)).
		Post(w.URL)
	if err != nil {
		log.Logger().WithContext(ctx).Error(err.Error())
		return err
	}
	if resp.IsError() {
		return errors.Errorf("webhook %s: %s", w.URL, resp.Status())
	}
	return nil
}

// ReporterDeps holds the clients reporters may need; nil clients disable their reporter.
type ReporterDeps struct {
	Dir          string
	Mongo        *mongo.Database
	History      string
	Redis        redis.UniversalClient
	RedisTTL     time.Duration
	MinIO        *minio.Client
	Bucket       string
	WebhookURL   string
	OnlyFailures bool
}

// NewReporters builds the reporters named in formats: json, markdown, xlsx, mongo, redis,
// minio and webhook. minio uploads the json and markdown renderings.
func NewReporters(formats []string, deps ReporterDeps) ([]Reporter, error) {
	reporters := make([]Reporter, 0, len(formats))
	for _, format := range formats {
		switch format {
		case FormatJSON, FormatMarkdown, FormatXLSX:
			reporters = append(reporters, &FileReporter{Dir: deps.Dir, Format: format})
		case "mongo":
			if deps.Mongo == nil {
				return nil, errors.New("mongo reporter needs a database")
			}
			reporters = append(reporters, NewMongoHistoryReporter(deps.Mongo, deps.History))
		case "redis":
			if deps.Redis == nil {
				return nil, errors.New("redis reporter needs redis.dsn")
			}
			reporters = append(reporters, &RedisReporter{Client: deps.Redis, TTL: deps.RedisTTL})
		case "minio":
			if deps.MinIO == nil {
				return nil, errors.New("minio reporter needs minio.endpoint")
			}
			reporters = append(reporters, &MinIOReporter{Client: deps.MinIO, Bucket: deps.Bucket,
				Formats: []string{FormatJSON, FormatMarkdown}})
		case "webhook":
			if deps.WebhookURL == "" {
				return nil, errors.New("webhook reporter needs webhook.url")
			}
			reporters = append(reporters, NewWebhookReporter(deps.WebhookURL, deps.OnlyFailures))
		default:
			return nil, errors.Errorf("unknown reporter %q", format)
		}
	}
	return reporters, nil
}
