package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
)

const testDB = "festival_final"

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(api *LabAPI) *gin.Engine {
	r := gin.New()
	r.Use(Secure())
	InitRouter(r, api)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func writeBooks(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "name: festival\ndatabase: " + testDB + "\nqueries:\n" +
		"  - {name: active_vendors, collection: vendors, op: count}\n" +
		"  - {name: top_events, collection: events, op: find, limit: 3}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "festival.yml"), []byte(content), 0o644))
	return dir
}

func TestBooks(t *testing.T) {
	api := NewLabAPI(service.NewLabService(nil, testDB), &service.BookStore{Dir: writeBooks(t)}, t.TempDir())
	r := newEngine(api)

	t.Run("list", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/api/v1/books", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 200, env.Code)
		var items []BookItem
		require.NoError(t, json.Unmarshal(env.Data, &items))
		require.Len(t, items, 1)
		assert.Equal(t, []string{"active_vendors", "top_events"}, items[0].Queries)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("get", func(t *testing.T) {
		_, env := do(t, r, http.MethodGet, "/api/v1/books/festival", "")
		assert.Equal(t, 200, env.Code)
		var book model.QueryBook
		require.NoError(t, json.Unmarshal(env.Data, &book))
		assert.Equal(t, testDB, book.Database)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, env := do(t, r, http.MethodGet, "/api/v1/books/sakila", "")
		assert.Equal(t, 404, env.Code)
	})

	t.Run("run with unknown query", func(t *testing.T) {
		_, env := do(t, r, http.MethodPost, "/api/v1/books/festival/run", `{"only": ["nope"]}`)
		assert.Equal(t, 400, env.Code)
	})
}

func TestRunBook(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("only one query", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".vendors", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(4)}},
		))
		api := NewLabAPI(service.NewLabService(mt.Client, testDB), &service.BookStore{Dir: writeBooks(mt.T)}, "")
		_, env := do(mt.T, newEngine(api), http.MethodPost, "/api/v1/books/festival/run",
			`{"only": ["active_vendors"], "failFast": true}`)
		assert.Equal(mt, 200, env.Code)
		var report model.RunReport
		require.NoError(mt, json.Unmarshal(env.Data, &report))
		assert.Equal(mt, 1, report.Passed)
		require.Len(mt, report.Results, 1)
		assert.Equal(mt, int64(4), *report.Results[0].Count)
	})

	mt.Run("empty body", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, testDB+".vendors", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(4)}}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}),
		)
		api := NewLabAPI(service.NewLabService(mt.Client, testDB), &service.BookStore{Dir: writeBooks(mt.T)}, "")
		_, env := do(mt.T, newEngine(api), http.MethodPost, "/api/v1/books/festival/run", "")
		assert.Equal(mt, 200, env.Code)
		var report model.RunReport
		require.NoError(mt, json.Unmarshal(env.Data, &report))
		assert.Equal(mt, 1, report.Passed)
		assert.Equal(mt, 1, report.Failed)
	})
}

type fakeSource struct {
	content []byte
	err     error
}

func (f fakeSource) LatestReport(_ context.Context, _ string) ([]byte, error) {
	return f.content, f.err
}

func TestLatestReport(t *testing.T) {
	cached := fakeSource{content: []byte(`{"book":"festival","passed":3}`)}
	empty := fakeSource{err: service.ErrNoDoc}

	t.Run("falls through to the next source", func(t *testing.T) {
		api := NewLabAPI(nil, nil, "", empty, cached)
		_, env := do(t, newEngine(api), http.MethodGet, "/api/v1/reports/festival", "")
		assert.Equal(t, 200, env.Code)
		assert.JSONEq(t, `{"book":"festival","passed":3}`, string(env.Data))
	})

	t.Run("nothing cached", func(t *testing.T) {
		api := NewLabAPI(nil, nil, "", empty)
		_, env := do(t, newEngine(api), http.MethodGet, "/api/v1/reports/festival", "")
		assert.Equal(t, 404, env.Code)
	})

	t.Run("source error", func(t *testing.T) {
		api := NewLabAPI(nil, nil, "", fakeSource{err: errors.New("connection refused")}, cached)
		_, env := do(t, newEngine(api), http.MethodGet, "/api/v1/reports/festival", "")
		assert.Equal(t, 500, env.Code)
	})
}

func TestRunChecks(t *testing.T) {
	root := t.TempDir()
	content := "database: " + testDB + "\nchecks:\n  - {label: vendors seeded, collection: vendors, expected: 4}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "checks.yml"), []byte(content), 0o644))

	t.Run("path outside the data root", func(t *testing.T) {
		api := NewLabAPI(service.NewLabService(nil, testDB), nil, root)
		_, env := do(t, newEngine(api), http.MethodPost, "/api/v1/checks/run", `{"path": "../etc/passwd"}`)
		assert.Equal(t, 400, env.Code)
	})

	t.Run("missing path", func(t *testing.T) {
		api := NewLabAPI(service.NewLabService(nil, testDB), nil, root)
		_, env := do(t, newEngine(api), http.MethodPost, "/api/v1/checks/run", `{}`)
		assert.Equal(t, 400, env.Code)
	})

	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()
	mt.Run("failing check is still a result", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".vendors", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}},
		))
		api := NewLabAPI(service.NewLabService(mt.Client, testDB), nil, root)
		_, env := do(mt.T, newEngine(api), http.MethodPost, "/api/v1/checks/run", `{"path": "checks.yml"}`)
		assert.Equal(mt, 200, env.Code)
		var resp RunChecksResp
		require.NoError(mt, json.Unmarshal(env.Data, &resp))
		assert.False(mt, resp.Passed)
		require.Len(mt, resp.Results, 1)
		assert.Equal(mt, int64(3), resp.Results[0].Actual)
	})
}

func TestVersion(t *testing.T) {
	_, env := do(t, newEngine(NewLabAPI(nil, nil, "")), http.MethodGet, "/api/v1/version", "")
	assert.Equal(t, 200, env.Code)
	assert.Contains(t, string(env.Data), `"version"`)
}
