package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nosql-labs/app/labs/model"
)

func TestRenderJSON(t *testing.T) {
	content, err := RenderJSON(sampleReport())
	require.NoError(t, err)
	var decoded struct {
		Book    string `json:"book"`
		Failed  int    `json:"failed"`
		Results []struct {
			Name   string   `json:"name"`
			Count  *int64   `json:"count"`
			Output []string `json:"output"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, "festival", decoded.Book)
	assert.Equal(t, 1, decoded.Failed)
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, []string{`{"code":"ROCK","capacity":1200}`}, decoded.Results[0].Output)
	assert.Equal(t, int64(7), *decoded.Results[1].Count)
}

func TestRenderMarkdown(t *testing.T) {
	md := string(RenderMarkdown(sampleReport()))
	assert.Contains(t, md, "# festival\n")
	assert.Contains(t, md, "- **Passed**: 2, **Failed**: 1, **Skipped**: 0\n")
	assert.Contains(t, md, "| top_events | find | festival_final.events | OK | 12 | 1 document |\n")
	assert.Contains(t, md, "| active_vendors | count | festival_final.vendors | OK | 0 | 7 |\n")
	assert.Contains(t, md, "## top_events\n\n```json\n{\"code\":\"ROCK\",\"capacity\":1200}\n```\n")
}

func TestRenderXLSX(t *testing.T) {
	buf, err := RenderXLSX(sampleReport())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Query", rows[0][0])
	assert.Equal(t, []string{"raise_prices", "updateMany", "festival_final", "orders", "FAIL", "0",
		"query raise_prices: boom", "query raise_prices: boom"}, rows[3])
	output, err := f.GetRows("Output")
	require.NoError(t, err)
	require.Len(t, output, 2)
	assert.Equal(t, []string{"top_events", "1", `{"code":"ROCK","capacity":1200}`}, output[1])
}

func TestFileReporter(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()
	for _, format := range []string{FormatJSON, FormatMarkdown, FormatXLSX} {
		r := &FileReporter{Dir: dir, Format: format}
		require.NoError(t, r.Report(context.Background(), report))
	}
	for _, ext := range []string{".json", ".md", ".xlsx"} {
		path := filepath.Join(dir, "festival-20240630120000-0b9d3e0c"+ext)
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
	bad := &FileReporter{Dir: dir, Format: "pdf"}
	assert.Error(t, bad.Report(context.Background(), report))
}

func TestWebhookReporter(t *testing.T) {
	var got []WebhookSummary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s WebhookSummary
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = append(got, s)
		if s.Book == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	passing := &model.RunReport{ID: "1", Book: "ok", Passed: 2}
	failing := sampleReport()

	onlyFailures := NewWebhookReporter(srv.URL, true)
	require.NoError(t, onlyFailures.Report(ctx, passing))
	require.NoError(t, onlyFailures.Report(ctx, failing))
	require.Len(t, got, 1)
	assert.Equal(t, "festival", got[0].Book)
	assert.False(t, got[0].OK)
	assert.Equal(t, []string{"raise_prices"}, got[0].FailedNames)
	assert.Equal(t, int64(1500), got[0].DurationMS)

	all := NewWebhookReporter(srv.URL, false)
	require.NoError(t, all.Report(ctx, passing))
	assert.Len(t, got, 2)
	assert.True(t, got[1].OK)

	err := all.Report(ctx, &model.RunReport{Book: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewReporters(t *testing.T) {
	reporters, err := NewReporters([]string{FormatJSON, FormatXLSX, "webhook"}, ReporterDeps{Dir: "reports", WebhookURL: "http://hooks.local"})
	require.NoError(t, err)
	names := make([]string, len(reporters))
	for i, r := range reporters {
		names[i] = r.Name()
	}
	assert.Equal(t, []string{"file:json", "file:xlsx", "webhook"}, names)

	for _, format := range []string{"mongo", "redis", "minio", "webhook", "pdf"} {
		_, err := NewReporters([]string{format}, ReporterDeps{})
		assert.Error(t, err, format)
	}
}
