package model

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Check is a count expectation. Either Filter counts matching documents, or the
// reference form counts documents whose Field is not among the distinct
// ForeignField values of ForeignCollection (dangling references).
type Check struct {
	Label             string `yaml:"label" json:"label"`
	Collection        string `yaml:"collection" json:"collection"`
	Filter            Doc    `yaml:"filter,omitempty" json:"filter,omitempty"`
	Field             string `yaml:"field,omitempty" json:"field,omitempty"`
	ForeignCollection string `yaml:"foreignCollection,omitempty" json:"foreignCollection,omitempty"`
	ForeignField      string `yaml:"foreignField,omitempty" json:"foreignField,omitempty"`
	Expected          int64  `yaml:"expected" json:"expected"`
}

func (c *Check) IsReference() bool {
	return c.ForeignCollection != ""
}

func (c *Check) Validate() error {
	if c.Label == "" {
		return errors.Wrap(ErrInvalid, "check label is required")
	}
	if c.Collection == "" {
		return errors.Wrapf(ErrInvalid, "check %s: collection is required", c.Label)
	}
	if c.IsReference() && c.Field == "" {
		return errors.Wrapf(ErrInvalid, "check %s: reference check needs field", c.Label)
	}
	if c.IsReference() && c.Filter != nil {
		return errors.Wrapf(ErrInvalid, "check %s: filter and foreignCollection are exclusive", c.Label)
	}
	return nil
}

type CheckFile struct {
	Database string  `yaml:"database" json:"database"`
	Checks   []Check `yaml:"checks" json:"checks"`
}

type CheckResult struct {
	Label    string `json:"label"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

func (r CheckResult) String() string {
	if r.Error != "" {
		return fmt.Sprintf("[FAIL] %s -> %s", r.Label, r.Error)
	}
	status := StatusOK
	if !r.Passed {
		status = StatusFail
	}
	return fmt.Sprintf("[%s] %s -> expected %d, got %d", status, r.Label, r.Expected, r.Actual)
}

func LoadChecks(path string) (*CheckFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var file CheckFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for i := range file.Checks {
		if err := file.Checks[i].Validate(); err != nil {
			return nil, errors.Wrap(err, path)
		}
	}
	return &file, nil
}
