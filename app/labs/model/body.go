package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"
)

// Doc is a single BSON document written in YAML or as an Extended JSON string.
// Key order of the YAML mapping is kept.
type Doc bson.D

// Docs is a list of documents, e.g. the body of insertMany.
type Docs []bson.D

// Pipeline is an aggregation pipeline.
type Pipeline mongo.Pipeline

// Update is either an update document ({$set: ...}) or an update pipeline.
type Update struct {
	Doc      bson.D
	Pipeline mongo.Pipeline
}

func (d *Doc) UnmarshalYAML(node *yaml.Node) error {
	text, err := extJSON(node)
	if err != nil {
		return err
	}
	var out bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &out); err != nil {
		return errors.Wrapf(err, "line %d: document", node.Line)
	}
	if out == nil {
		out = bson.D{}
	}
	*d = Doc(out)
	return nil
}

func (d *Docs) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeList(node, "documents")
	if err != nil {
		return err
	}
	*d = out
	return nil
}

func (p *Pipeline) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeList(node, "pipeline")
	if err != nil {
		return err
	}
	*p = Pipeline(out)
	return nil
}

func (u *Update) UnmarshalYAML(node *yaml.Node) error {
	resolved := resolve(node)
	if resolved.Kind == yaml.SequenceNode || (resolved.Kind == yaml.ScalarNode &&
		strings.HasPrefix(strings.TrimSpace(resolved.Value), "[")) {
		out, err := decodeList(node, "update")
		if err != nil {
			return err
		}
		u.Pipeline = out
		return nil
	}
	var d Doc
	if err := d.UnmarshalYAML(node); err != nil {
		return err
	}
	u.Doc = bson.D(d)
	return nil
}

// Value returns what the driver expects as the update argument, or nil.
func (u *Update) Value() interface{} {
	switch {
	case u == nil:
		return nil
	case u.Pipeline != nil:
		return u.Pipeline
	case u.Doc != nil:
		return u.Doc
	}
	return nil
}

func (d Doc) MarshalJSON() ([]byte, error) {
	return bson.MarshalExtJSON(bson.D(d), false, false)
}

func (d Docs) MarshalJSON() ([]byte, error) {
	return marshalList([]bson.D(d))
}

func (p Pipeline) MarshalJSON() ([]byte, error) {
	return marshalList([]bson.D(p))
}

func (u Update) MarshalJSON() ([]byte, error) {
	if u.Pipeline != nil {
		return marshalList([]bson.D(u.Pipeline))
	}
	if u.Doc == nil {
		return []byte("null"), nil
	}
	return bson.MarshalExtJSON(u.Doc, false, false)
}

// ParseDoc reads Extended JSON text into an ordered document.
func ParseDoc(text string) (bson.D, error) {
	var out bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &out); err != nil {
		return nil, errors.Wrap(err, "parse extended json")
	}
	return out, nil
}

func marshalList(docs []bson.D) ([]byte, error) {
	parts := make([]string, len(docs))
	for i, d := range docs {
		b, err := bson.MarshalExtJSON(d, false, false)
		if err != nil {
			return nil, err
		}
		parts[i] = string(b)
	}
	return []byte("[" + strings.Join(parts, ",") + "]"), nil
}

func decodeList(node *yaml.Node, what string) ([]bson.D, error) {
	text, err := extJSON(node)
	if err != nil {
		return nil, err
	}
	var holder struct {
		V []bson.D `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+text+`}`), false, &holder); err != nil {
		return nil, errors.Wrapf(err, "line %d: %s", node.Line, what)
	}
	if holder.V == nil {
		holder.V = []bson.D{}
	}
	return holder.V, nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return node
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return node
}

// extJSON renders a body node as relaxed Extended JSON text.
// A string scalar at the top is taken to be Extended JSON already.
func extJSON(node *yaml.Node) (string, error) {
	node = resolve(node)
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		return node.Value, nil
	}
	var sb strings.Builder
	if err := writeNode(&sb, node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeNode(sb *strings.Builder, node *yaml.Node) error {
	node = resolve(node)
	switch node.Kind {
	case yaml.MappingNode:
		sb.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				sb.WriteByte(',')
			}
			key := resolve(node.Content[i])
			if key.Kind != yaml.ScalarNode {
				return errors.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			writeString(sb, key.Value)
			sb.WriteByte(':')
			value := resolve(node.Content[i+1])
			if key.Value == "$date" && value.Tag == "!!timestamp" {
				var t time.Time
				if err := value.Decode(&t); err != nil {
					return errors.Wrapf(err, "line %d", value.Line)
				}
				writeString(sb, t.UTC().Format(time.RFC3339Nano))
				continue
			}
			if err := writeNode(sb, value); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case yaml.SequenceNode:
		sb.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeNode(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case yaml.ScalarNode:
		return writeScalar(sb, node)
	default:
		return errors.Errorf("line %d: unsupported yaml node", node.Line)
	}
	return nil
}

func writeScalar(sb *strings.Builder, node *yaml.Node) error {
	switch node.Tag {
	case "!!null":
		sb.WriteString("null")
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		sb.WriteString(strconv.FormatBool(b))
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			var f float64
			if err := node.Decode(&f); err != nil {
				return errors.Wrapf(err, "line %d", node.Line)
			}
			writeFloat(sb, f)
			return nil
		}
		sb.WriteString(strconv.FormatInt(i, 10))
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		writeFloat(sb, f)
	case "!!timestamp":
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		sb.WriteString(`{"$date":`)
		writeString(sb, t.UTC().Format(time.RFC3339Nano))
		sb.WriteByte('}')
	default:
		writeString(sb, node.Value)
	}
	return nil
}

// writeFloat always emits a double, never an integer literal.
func writeFloat(sb *strings.Builder, f float64) {
	switch {
	case math.IsInf(f, 1):
		sb.WriteString(`{"$numberDouble":"Infinity"}`)
	case math.IsInf(f, -1):
		sb.WriteString(`{"$numberDouble":"-Infinity"}`)
	case math.IsNaN(f):
		sb.WriteString(`{"$numberDouble":"NaN"}`)
	default:
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		sb.WriteString(s)
	}
}

func writeString(sb *strings.Builder, s string) {
	b, _ := json.Marshal(s)
	sb.Write(b)
}
