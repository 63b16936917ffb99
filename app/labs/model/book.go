package model

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrBookNotFound = errors.New("query book not found")

// QueryBook is a named list of queries sharing a database.
type QueryBook struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Database    string   `yaml:"database,omitempty" json:"database,omitempty"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	Queries     []Query  `yaml:"queries" json:"queries"`

	Path string `yaml:"-" json:"path,omitempty"`
}

func (b *QueryBook) Validate() error {
	if b.Name == "" {
		return errors.Wrap(ErrInvalid, "book name is required")
	}
	seen := make(map[string]bool, len(b.Queries))
	for i := range b.Queries {
		q := &b.Queries[i]
		if err := q.Validate(); err != nil {
			return errors.Wrapf(err, "book %s, query #%d", b.Name, i+1)
		}
		if seen[q.Name] {
			return errors.Wrapf(ErrInvalid, "book %s: duplicate query name %s", b.Name, q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

// Query returns the query called name, if present.
func (b *QueryBook) Query(name string) (*Query, bool) {
	for i := range b.Queries {
		if b.Queries[i].Name == name {
			return &b.Queries[i], true
		}
	}
	return nil, false
}

// ParseBook decodes and validates a book. A missing name falls back to fallbackName.
func ParseBook(content []byte, fallbackName string) (*QueryBook, error) {
	var book QueryBook
	if err := yaml.Unmarshal(content, &book); err != nil {
		return nil, errors.Wrap(err, "parse query book")
	}
	if book.Name == "" {
		book.Name = fallbackName
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return &book, nil
}

func LoadBook(path string) (*QueryBook, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrBookNotFound, path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	book, err := ParseBook(content, baseName(path))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	book.Path = path
	return book, nil
}

// LoadBooks loads every *.yml / *.yaml in a directory, or every file matching a glob.
// Books come back sorted by name; duplicate names are an error.
func LoadBooks(pattern string) ([]*QueryBook, error) {
	var paths []string
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		for _, ext := range []string{"*.yml", "*.yaml"} {
			matches, err := filepath.Glob(filepath.Join(pattern, ext))
			if err != nil {
				return nil, errors.WithStack(err)
			}
			paths = append(paths, matches...)
		}
	} else {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %s", pattern)
		}
		paths = matches
	}
	books := make([]*QueryBook, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		book, err := LoadBook(p)
		if err != nil {
			return nil, err
		}
		if other, ok := names[book.Name]; ok {
			return nil, errors.Wrapf(ErrInvalid, "book %s defined in %s and %s", book.Name, other, p)
		}
		names[book.Name] = p
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Name < books[j].Name })
	return books, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
