package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"nosql-labs/app/labs/model"
	"nosql-labs/common/log"
	"nosql-labs/common/util"
)

const DefaultSeedBatchSize = 1000

// ReadDataset streams every document of the file to fn and returns how many it saw.
func ReadDataset(path, format string, fn func(doc bson.D) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.New("file is missing")
		}
		return 0, errors.WithStack(err)
	}
	defer f.Close()
	switch format {
	case model.FormatJSONArray:
		return readJSON(f, false, fn)
	case model.FormatNDJSON:
		return readNDJSON(f, fn)
	case model.FormatBSON:
		return readBSON(f, fn)
	case model.FormatXLSX:
		return readXLSX(f, fn)
	}
	return 0, errors.Wrapf(model.ErrUnsupportedFormat, "%q", format)
}

// CountDataset validates and counts a file without inserting anything.
func CountDataset(path, format string) (int, error) {
	return ReadDataset(path, format, func(bson.D) error { return nil })
}

// readJSON decodes a top-level array; allowObject also accepts a single object.
func readJSON(r io.Reader, allowObject bool, fn func(doc bson.D) error) (int, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	content = bytes.TrimSpace(content)
	if len(content) == 0 || content[0] != '[' {
		if allowObject && len(content) > 0 && content[0] == '{' {
			doc, err := model.ParseDoc(string(content))
			if err != nil {
				return 0, errors.Wrap(err, "invalid JSON object")
			}
			return 1, fn(doc)
		}
		return 0, errors.New("JSON file does not contain an array at the top level")
	}
	var holder struct {
		V []bson.D `bson:"v"`
	}
	wrapped := make([]byte, 0, len(content)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, content...)
	wrapped = append(wrapped, '}')
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return 0, errors.Wrap(err, "invalid JSON array")
	}
	for i, doc := range holder.V {
		if err := fn(doc); err != nil {
			return i, err
		}
	}
	return len(holder.V), nil
}

func readNDJSON(r io.Reader, fn func(doc bson.D) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	count, line := 0, 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		doc, err := model.ParseDoc(text)
		if err != nil {
			return count, errors.Wrapf(err, "invalid JSON on line %d", line)
		}
		if err := fn(doc); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, errors.Wrap(err, "read failure")
	}
	return count, nil
}

// maxBSONDocumentSize is the server's limit on a single document.
const maxBSONDocumentSize = 16 * 1024 * 1024

// readBSON walks a mongodump-style stream of length-prefixed documents.
func readBSON(r io.Reader, fn func(doc bson.D) error) (int, error) {
	reader := bufio.NewReader(r)
	offset, count := 0, 0
	header := make([]byte, 4)
	for {
		n, err := io.ReadFull(reader, header)
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			if n > 0 {
				return count, errors.New("unexpected EOF while reading BSON document size")
			}
			return count, errors.WithStack(err)
		}
		size := int32(binary.LittleEndian.Uint32(header))
		if size <= 4 || size > maxBSONDocumentSize {
			return count, errors.Errorf("invalid BSON document size (%d)", size)
		}
		raw := make([]byte, size)
		copy(raw, header)
		got, err := io.ReadFull(reader, raw[4:])
		if err != nil {
			return count, errors.Errorf("truncated BSON document: expected %d bytes but only %d remaining", size, got+4)
		}
		if err := bson.Raw(raw).Validate(); err != nil {
			return count, errors.Wrapf(err, "failed to deserialize BSON document at offset %d", offset)
		}
		var doc bson.D
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return count, errors.Wrapf(err, "failed to deserialize BSON document at offset %d", offset)
		}
		if err := fn(doc); err != nil {
			return count, err
		}
		count++
		offset += int(size)
	}
}

// readXLSX takes the first row of the first sheet as field names. Empty cells are left out.
func readXLSX(r io.Reader, fn func(doc bson.D) error) (int, error) {
	rows, err := util.ReadFirstSheet(r)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	header := rows[0]
	count := 0
	for _, row := range rows[1:] {
		cells := util.DefaultSlice[string](row)
		doc := make(bson.D, 0, len(header))
		for i, field := range header {
			if field == "" {
				continue
			}
			if cell := cells.At(i); cell != "" {
				doc = append(doc, bson.E{Key: field, Value: CellValue(cell)})
			}
		}
		if len(doc) == 0 {
			continue
		}
		if err := fn(doc); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// CellValue types a spreadsheet cell: integers, then floats, then booleans, else the string.
func CellValue(cell string) interface{} {
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		if int64(int32(i)) == i {
			return int32(i)
		}
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

type SmokeResult struct {
	Dataset model.Dataset `json:"dataset"`
	Count   int           `json:"count"`
	Error   string        `json:"error,omitempty"`
}

func (r SmokeResult) String() string {
	if r.Error != "" {
		return fmt.Sprintf("ERR %s: %s", r.Dataset.Path, r.Error)
	}
	return fmt.Sprintf("OK  %s (%s) -> %d documents", r.Dataset.Path, r.Dataset.Format, r.Count)
}

// SmokeTest counts every dataset of the manifest and compares with expectedCount.
func SmokeTest(manifest *model.Manifest, out io.Writer) ([]SmokeResult, error) {
	_, _ = fmt.Fprintln(out, "Running dataset smoke tests...")
	results := make([]SmokeResult, 0, len(manifest.Datasets))
	failed := 0
	for _, d := range manifest.Datasets {
		result := SmokeResult{Dataset: d}
		count, err := CountDataset(manifest.Resolve(d), d.Format)
		result.Count = count
		if err == nil && d.ExpectedCount != nil && int64(count) != *d.ExpectedCount {
			err = errors.Errorf("expected %d docs but found %d", *d.ExpectedCount, count)
		}
		if err != nil {
			failed++
			result.Error = err.Error()
		}
		_, _ = fmt.Fprintln(out, result.String())
		results = append(results, result)
	}
	if failed > 0 {
		return results, errors.Wrapf(ErrSmokeFailed, "%d of %d", failed, len(results))
	}
	_, _ = fmt.Fprintln(out, "All dataset smoke tests passed.")
	return results, nil
}

// Seed loads a dataset into its collection in batches, emptying the collection first when Reset is set.
func Seed(ctx context.Context, db *mongo.Database, path string, d model.Dataset) (int, error) {
	coll := db.Collection(d.CollectionName())
	if d.Reset {
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return 0, err
		}
	}
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultSeedBatchSize
	}
	inserted := 0
	batch := make([]interface{}, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := coll.InsertMany(ctx, batch)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		inserted += len(res.InsertedIDs)
		batch = batch[:0]
		return nil
	}
	_, err := ReadDataset(path, d.Format, func(doc bson.D) error {
		batch = append(batch, doc)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return inserted, errors.Wrap(err, path)
	}
	if err := flush(); err != nil {
		return inserted, errors.Wrap(err, path)
	}
	return inserted, nil
}
