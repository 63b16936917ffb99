package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBook = `
name: festival
database: group_xx_final
requires: [orders, events]
queries:
  - name: revenue_by_event
    collection: orders
    op: aggregate
    pipeline:
      - $group: {_id: $eventCode, revenue: {$sum: $totalAmount}}
      - $sort: {revenue: -1}
  - name: count_events
    collection: events
    op: count
    filter: {status: active}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBook(t *testing.T) {
	path := writeFile(t, t.TempDir(), "festival.yml", sampleBook)
	book, err := LoadBook(path)
	require.NoError(t, err)
	assert.Equal(t, "festival", book.Name)
	assert.Equal(t, path, book.Path)
	assert.Equal(t, []string{"orders", "events"}, book.Requires)
	require.Len(t, book.Queries, 2)
	q, ok := book.Query("count_events")
	require.True(t, ok)
	assert.Equal(t, OpCount, q.Op)
	assert.Equal(t, "status", q.Filter[0].Key)
	_, ok = book.Query("missing")
	assert.False(t, ok)
}

func TestLoadBookNameFallback(t *testing.T) {
	content := "queries:\n  - {name: a, collection: c, op: find}\n"
	book, err := LoadBook(writeFile(t, t.TempDir(), "group_07.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, "group_07", book.Name)
}

func TestLoadBookErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadBook(filepath.Join(dir, "none.yml"))
	assert.Equal(t, ErrBookNotFound, errors.Cause(err))

	dup := "name: d\nqueries:\n  - {name: a, collection: c, op: find}\n  - {name: a, collection: c, op: count}\n"
	_, err = LoadBook(writeFile(t, dir, "dup.yml", dup))
	assert.Equal(t, ErrInvalid, errors.Cause(err))

	bad := "name: b\nqueries:\n  - {name: a, collection: c, op: upsertAll}\n"
	_, err = LoadBook(writeFile(t, dir, "bad.yml", bad))
	assert.Equal(t, ErrUnknownOp, errors.Cause(err))
}

func TestLoadBooks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "name: beta\nqueries: []\n")
	writeFile(t, dir, "a.yaml", "name: alpha\nqueries: []\n")
	writeFile(t, dir, "notes.txt", "ignored")
	books, err := LoadBooks(dir)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "alpha", books[0].Name)
	assert.Equal(t, "beta", books[1].Name)

	books, err = LoadBooks(filepath.Join(dir, "b.*"))
	require.NoError(t, err)
	require.Len(t, books, 1)

	writeFile(t, dir, "c.yml", "name: beta\nqueries: []\n")
	_, err = LoadBooks(dir)
	assert.Equal(t, ErrInvalid, errors.Cause(err))
}
