package service

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const valueKey = "v"

// RenderDoc prints a document the way printjson does, as two-space indented relaxed Extended JSON.
func RenderDoc(doc interface{}) string {
	b, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}

// RenderValue prints any BSON value, including scalars, as compact relaxed Extended JSON.
func RenderValue(v interface{}) string {
	b, err := bson.MarshalExtJSON(bson.D{{Key: valueKey, Value: v}}, false, false)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	s := strings.TrimPrefix(string(b), `{"`+valueKey+`":`)
	return strings.TrimSuffix(s, "}")
}
