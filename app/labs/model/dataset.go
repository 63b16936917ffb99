package model

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSONArray = "json-array"
	FormatNDJSON    = "ndjson"
	FormatBSON      = "bson"
	FormatXLSX      = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// Dataset is one seed file. Path is relative to the manifest's root.
type Dataset struct {
	Path          string `yaml:"path" json:"path"`
	Format        string `yaml:"format" json:"format"`
	ExpectedCount *int64 `yaml:"expectedCount,omitempty" json:"expectedCount,omitempty"`
	Database      string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection    string `yaml:"collection,omitempty" json:"collection,omitempty"`
	Reset         bool   `yaml:"reset,omitempty" json:"reset,omitempty"`
	BatchSize     int    `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
}

// CollectionName defaults to the file name without extension.
func (d *Dataset) CollectionName() string {
	if d.Collection != "" {
		return d.Collection
	}
	return baseName(d.Path)
}

type Manifest struct {
	Root     string    `yaml:"root,omitempty" json:"root,omitempty"`
	Datasets []Dataset `yaml:"datasets" json:"datasets"`
}

// Resolve joins a dataset path to the manifest root.
func (m *Manifest) Resolve(d Dataset) string {
	if filepath.IsAbs(d.Path) {
		return d.Path
	}
	return filepath.Join(m.Root, d.Path)
}

// LoadManifest reads a YAML or JSON manifest. An empty root means the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if m.Root == "" {
		m.Root = filepath.Dir(path)
	} else if !filepath.IsAbs(m.Root) {
		m.Root = filepath.Join(filepath.Dir(path), m.Root)
	}
	for i, d := range m.Datasets {
		if d.Path == "" {
			return nil, errors.Wrapf(ErrInvalid, "%s: dataset #%d has no path", path, i+1)
		}
	}
	return &m, nil
}
