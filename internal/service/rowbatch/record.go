package rowbatch

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"lake-loader/internal/domain"
)

// NestedMetadataKey marks string columns that hold JSON text.
const NestedMetadataKey = "lake_loader.nested"

// ArrowType maps an inferred field type to its Arrow column type.
func ArrowType(t domain.FieldType) arrow.DataType {
	switch t {
	case domain.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case domain.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case domain.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case domain.TypeString, domain.TypeNested:
		return arrow.BinaryTypes.String
	default:
		return arrow.Null
	}
}

// ArrowSchema converts a schema to an Arrow schema. Every column is nullable.
func ArrowSchema(s domain.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: ArrowType(f.Type), Nullable: true}
		if f.Type == domain.TypeNested {
			fields[i].Metadata = arrow.NewMetadata([]string{NestedMetadataKey}, []string{"true"})
		}
	}
	return arrow.NewSchema(fields, nil)
}

// Record converts batch to a columnar Arrow record laid out by schema, which
// must be the batch schema or a widening of it. Fields missing from a row
// become nulls. The caller releases the returned record.
func Record(mem memory.Allocator, batch *domain.RowBatch, schema domain.Schema) (arrow.RecordBatch, error) {
	b := array.NewRecordBuilder(mem, ArrowSchema(schema))
	defer b.Release()

	for col, f := range schema.Fields {
		fb := b.Field(col)
		fb.Reserve(len(batch.Rows))
		for _, row := range batch.Rows {
			if err := appendValue(fb, row[f.Name]); err != nil {
				return nil, fmt.Errorf("column %q: %w", f.Name, err)
			}
		}
	}
	return b.NewRecordBatch(), nil
}

func appendValue(fb array.Builder, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	switch bld := fb.(type) {
	case *array.NullBuilder:
		bld.AppendNull()
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want boolean, got %T", v)
		}
		bld.Append(x)
	case *array.Int64Builder:
		x, ok := v.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", v)
		}
		bld.Append(x)
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			bld.Append(x)
		case int64:
			bld.Append(float64(x))
		default:
			return fmt.Errorf("want float, got %T", v)
		}
	case *array.StringBuilder:
		x, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		bld.Append(x)
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}
