package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/klauspost/compress/gzip"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// GzipJSON is a JSON payload stored in MongoDB as gzip-compressed binary.
type GzipJSON []byte

func (gj GzipJSON) MarshalJSON() ([]byte, error) {
	if gj == nil {
		return []byte("null"), nil
	}
	return gj, nil
}

func (gj *GzipJSON) UnmarshalJSON(data []byte) error {
	*gj = append((*gj)[:0], data...)
	return nil
}

type JSONCodec struct{}

var (
	GzipJSONType = reflect.TypeOf(GzipJSON{})
)

// NewGzipJSONRegistry returns the default registry extended with the GzipJSON codec.
func NewGzipJSONRegistry() *bsoncodec.Registry {
	codec := &JSONCodec{}
	return bson.NewRegistryBuilder().
		RegisterTypeEncoder(GzipJSONType, codec).
		RegisterTypeDecoder(GzipJSONType, codec).
		Build()
}

func (jc *JSONCodec) DecodeValue(dc bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != GzipJSONType {
		return bsoncodec.ValueDecoderError{Name: "GzipJSONDecodeValue", Types: []reflect.Type{GzipJSONType}, Received: val}
	}
	switch vrType := vr.Type(); vrType {
	case bsontype.EmbeddedDocument:
		// documents written before compression was enabled
		var m bson.M
		dec, err := bson.NewDecoder(vr)
		if err != nil {
			return err
		}
		if err := dec.Decode(&m); err != nil {
			return err
		}
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		val.Set(reflect.ValueOf(GzipJSON(b)))
	case bsontype.Binary:
		b, _, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		gzipReader, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		decompressed, err := io.ReadAll(gzipReader)
		if err != nil {
			return err
		}
		val.Set(reflect.ValueOf(GzipJSON(decompressed)))
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		val.Set(reflect.Zero(GzipJSONType))
	default:
		return fmt.Errorf("cannot decode %v into GzipJSON", vrType)
	}
	return nil
}

func (jc *JSONCodec) EncodeValue(ec bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != GzipJSONType {
		return bsoncodec.ValueEncoderError{Name: "GzipJSONEncodeValue", Types: []reflect.Type{GzipJSONType}, Received: val}
	}
	if val.IsNil() {
		return vw.WriteNull()
	}
	compressed := new(bytes.Buffer)
	gzipWriter := gzip.NewWriter(compressed)
	if _, err := gzipWriter.Write(val.Interface().(GzipJSON)); err != nil {
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	return vw.WriteBinary(compressed.Bytes())
}
