package service

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"nosql-labs/app/labs/model"
)

// BookStore serves the query books found under Dir, reloading them on every call.
type BookStore struct {
	Dir string
}

func (s *BookStore) List() ([]*model.QueryBook, error) {
	return model.LoadBooks(s.Dir)
}

// Get finds a book by its declared name, trying <name>.yml and <name>.yaml before
// scanning Dir.
func (s *BookStore) Get(name string) (*model.QueryBook, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		if filepath.Base(name) != name {
			break
		}
		path := filepath.Join(s.Dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		book, err := model.LoadBook(path)
		if err != nil {
			return nil, err
		}
		if book.Name == name {
			return book, nil
		}
		break
	}
	books, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, errors.Wrap(model.ErrBookNotFound, name)
}
