// Package rowbatch turns the bytes of a JSON object into a typed row batch.
package rowbatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"slices"
	"strconv"

	"lake-loader/internal/domain"
)

// Build decodes data as a JSON array of objects or as newline-delimited
// JSON objects, infers a schema by widening every field across all records
// and injects partitions as string columns.
func Build(data []byte, partitions []domain.Partition) (*domain.RowBatch, error) {
	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrContent(nil, "no records")
	}

	var schema domain.Schema
	for _, rec := range records {
		if schema, err = schema.Merge(recordSchema(rec)); err != nil {
			return nil, err
		}
	}
	if schema, err = injectPartitions(schema, partitions); err != nil {
		return nil, err
	}

	types := schema.Types()
	values := domain.PartitionValues(partitions)
	rows := make([]domain.Row, len(records))
	for i, rec := range records {
		row := make(domain.Row, len(rec)+len(values))
		for name, raw := range rec {
			v, err := normalize(raw, types[name])
			if err != nil {
				return nil, err
			}
			row[name] = v
		}
		for name, v := range values {
			row[name] = v
		}
		rows[i] = row
	}
	return &domain.RowBatch{Schema: schema, Rows: rows}, nil
}

func decodeRecords(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil, domain.ErrContent(err, "decode json array")
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, domain.ErrContent(err, "trailing data after json array")
		}
		out := make([]map[string]any, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, domain.ErrContent(nil, "record %d is not an object", i)
			}
			out = append(out, obj)
		}
		return out, nil
	}

	// NDJSON. The decoder skips blank lines between values.
	var out []map[string]any
	for i := 0; ; i++ {
		var item any
		err := dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, domain.ErrContent(err, "decode record %d", i)
		}
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, domain.ErrContent(nil, "record %d is not an object", i)
		}
		out = append(out, obj)
	}
}

// typeOf classifies one decoded JSON value.
func typeOf(v any) domain.FieldType {
	switch x := v.(type) {
	case nil:
		return domain.TypeNull
	case bool:
		return domain.TypeBoolean
	case json.Number:
		if _, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return domain.TypeInteger
		}
		return domain.TypeFloat
	case string:
		return domain.TypeString
	default:
		return domain.TypeNested
	}
}

// normalize converts a decoded value to the Go representation of its column
// type: int64, float64, bool, string, or canonical JSON text for nested values.
func normalize(v any, t domain.FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case domain.TypeInteger:
		return v.(json.Number).Int64()
	case domain.TypeFloat:
		f, err := v.(json.Number).Float64()
		if err != nil {
			return nil, domain.ErrContent(err, "number %s", v)
		}
		return f, nil
	case domain.TypeNested:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, domain.ErrContent(err, "encode nested value")
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// recordSchema types the fields of one record. The decoder does not keep
// object key order, so fields are sorted by name.
func recordSchema(rec map[string]any) domain.Schema {
	fields := make([]domain.Field, 0, len(rec))
	for _, name := range slices.Sorted(maps.Keys(rec)) {
		fields = append(fields, domain.Field{Name: name, Type: typeOf(rec[name])})
	}
	return domain.Schema{Fields: fields}
}

// injectPartitions adds each partition as a string field. A record field of
// the same name must be string or null.
func injectPartitions(s domain.Schema, partitions []domain.Partition) (domain.Schema, error) {
	for _, p := range partitions {
		i := s.Index(p.Name)
		if i < 0 {
			s.Fields = append(s.Fields, domain.Field{Name: p.Name, Type: domain.TypeString})
			continue
		}
		if cur := s.Fields[i].Type; cur != domain.TypeString && cur != domain.TypeNull {
			return domain.Schema{}, &domain.SchemaConflictError{Field: p.Name, Existing: cur, Incoming: domain.TypeString}
		}
		s.Fields[i].Type = domain.TypeString
	}
	return s, nil
}
