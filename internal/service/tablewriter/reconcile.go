package tablewriter

import (
	"lake-loader/internal/domain"
)

// Reconcile computes the table schema after appending a batch with schema
// batch to a table with schema table. Existing fields keep their position
// and type; a batch may only narrow into them. A null table field takes the
// batch type. Batch-only fields are appended in batch order.
func Reconcile(table, batch domain.Schema, tablePath string) (domain.Schema, error) {
	out := domain.Schema{Fields: make([]domain.Field, len(table.Fields), len(table.Fields)+len(batch.Fields))}
	copy(out.Fields, table.Fields)

	pos := make(map[string]int, len(out.Fields))
	for i, f := range out.Fields {
		pos[f.Name] = i
	}

	for _, f := range batch.Fields {
		i, ok := pos[f.Name]
		if !ok {
			pos[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
			continue
		}
		existing := out.Fields[i].Type
		wide, ok := domain.Widen(existing, f.Type)
		if !ok || (existing != domain.TypeNull && wide != existing) {
			return domain.Schema{}, &domain.SchemaConflictError{
				Field:    f.Name,
				Existing: existing,
				Incoming: f.Type,
				Table:    tablePath,
			}
		}
		out.Fields[i].Type = wide
	}
	return out, nil
}
