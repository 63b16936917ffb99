package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nosql-labs/app/labs/model"
)

func TestBookStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "festival.yml", []byte("name: festival\nqueries:\n  - {name: a, collection: events, op: find}\n"))
	writeFile(t, dir, "group_07.yaml", []byte("name: sakila_review\nqueries: []\n"))
	writeFile(t, dir, "sakila.yml", []byte("name: sakila_final\nqueries: []\n"))
	store := &BookStore{Dir: dir}

	books, err := store.List()
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "festival", books[0].Name)

	t.Run("by file name", func(t *testing.T) {
		book, err := store.Get("festival")
		require.NoError(t, err)
		assert.Len(t, book.Queries, 1)
	})
	t.Run("by book name", func(t *testing.T) {
		book, err := store.Get("sakila_review")
		require.NoError(t, err)
		assert.Equal(t, "sakila_review", book.Name)
	})
	t.Run("file name differs from book name", func(t *testing.T) {
		book, err := store.Get("sakila_final")
		require.NoError(t, err)
		assert.Equal(t, "sakila_final", book.Name)

		_, err = store.Get("sakila")
		assert.Equal(t, model.ErrBookNotFound, errors.Cause(err))
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := store.Get("../festival")
		assert.Equal(t, model.ErrBookNotFound, errors.Cause(err))
	})
}
