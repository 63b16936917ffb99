package model

import (
	"os"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"gopkg.in/yaml.v3"

	"nosql-labs/common/util"
)

var ErrSchemaNotFound = errors.New("schema not found")

// TypeList is a bsonType keyword: one type name or a list of alternatives.
type TypeList []string

func (t *TypeList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = TypeList{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*t = list
	return nil
}

func (t TypeList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if len(t) == 1 {
		return bson.MarshalValue(t[0])
	}
	return bson.MarshalValue([]string(t))
}

func (t TypeList) Has(name string) bool {
	for _, v := range t {
		if v == name {
			return true
		}
	}
	return false
}

// Schema is the subset of MongoDB's $jsonSchema that documents are validated against locally.
type Schema struct {
	BSONType             TypeList           `yaml:"bsonType,omitempty" bson:"bsonType,omitempty" json:"bsonType,omitempty"`
	Description          string             `yaml:"description,omitempty" bson:"description,omitempty" json:"description,omitempty"`
	Required             []string           `yaml:"required,omitempty" bson:"required,omitempty" json:"required,omitempty"`
	Properties           map[string]*Schema `yaml:"properties,omitempty" bson:"properties,omitempty" json:"properties,omitempty"`
	AdditionalProperties *bool              `yaml:"additionalProperties,omitempty" bson:"additionalProperties,omitempty" json:"additionalProperties,omitempty"`
	Items                *Schema            `yaml:"items,omitempty" bson:"items,omitempty" json:"items,omitempty"`
	MinLength            *int64             `yaml:"minLength,omitempty" bson:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength            *int64             `yaml:"maxLength,omitempty" bson:"maxLength,omitempty" json:"maxLength,omitempty"`
	Pattern              string             `yaml:"pattern,omitempty" bson:"pattern,omitempty" json:"pattern,omitempty"`
	Minimum              *float64           `yaml:"minimum,omitempty" bson:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum              *float64           `yaml:"maximum,omitempty" bson:"maximum,omitempty" json:"maximum,omitempty"`
	Enum                 []interface{}      `yaml:"enum,omitempty" bson:"enum,omitempty" json:"enum,omitempty"`
	MinItems             *int64             `yaml:"minItems,omitempty" bson:"minItems,omitempty" json:"minItems,omitempty"`
	MaxItems             *int64             `yaml:"maxItems,omitempty" bson:"maxItems,omitempty" json:"maxItems,omitempty"`

	re *regexp.Regexp
}

// Compile prepares every pattern in the tree.
func (s *Schema) Compile() error {
	if s == nil {
		return nil
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return errors.Wrapf(err, "pattern %q", s.Pattern)
		}
		s.re = re
	}
	for name, p := range s.Properties {
		if err := p.Compile(); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return s.Items.Compile()
}

// Regexp returns the compiled pattern, compiling on first use. Nil when there is no pattern.
func (s *Schema) Regexp() (*regexp.Regexp, error) {
	if s.Pattern == "" {
		return nil, nil
	}
	if s.re == nil {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", s.Pattern)
		}
		s.re = re
	}
	return s.re, nil
}

// Validator wraps the schema for createCollection / collMod.
func (s *Schema) Validator() bson.D {
	return bson.D{{Key: "$jsonSchema", Value: s}}
}

// SchemaEntry binds a schema to the collection and seed file it describes.
type SchemaEntry struct {
	Name       string  `yaml:"-" json:"name"`
	Collection string  `yaml:"collection,omitempty" json:"collection,omitempty"`
	File       string  `yaml:"file,omitempty" json:"file,omitempty"`
	Schema     *Schema `yaml:"$jsonSchema" json:"$jsonSchema"`
}

func (e *SchemaEntry) CollectionName() string {
	if e.Collection != "" {
		return e.Collection
	}
	return e.Name
}

type SchemaSet map[string]*SchemaEntry

func (s SchemaSet) Get(name string) (*SchemaEntry, error) {
	entry, ok := s[name]
	if !ok {
		return nil, errors.Wrap(ErrSchemaNotFound, name)
	}
	return entry, nil
}

func (s SchemaSet) Names() []string {
	return util.SortedKeys(map[string]*SchemaEntry(s))
}

func ParseSchemas(content []byte) (SchemaSet, error) {
	set := make(SchemaSet)
	if err := yaml.Unmarshal(content, &set); err != nil {
		return nil, errors.Wrap(err, "parse schemas")
	}
	for name, entry := range set {
		if entry == nil || entry.Schema == nil {
			return nil, errors.Wrapf(ErrInvalid, "schema %s has no $jsonSchema", name)
		}
		entry.Name = name
		if err := entry.Schema.Compile(); err != nil {
			return nil, errors.Wrapf(err, "schema %s", name)
		}
	}
	return set, nil
}

func LoadSchemas(path string) (SchemaSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	set, err := ParseSchemas(content)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return set, nil
}
