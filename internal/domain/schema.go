package domain

// FieldType is the inferred type of a JSON field.
type FieldType string

// Field types, from the bottom of the widening order up.
const (
	TypeNull    FieldType = "null"
	TypeBoolean FieldType = "boolean"
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeString  FieldType = "string"
	TypeNested  FieldType = "nested"
)

// Widen returns the narrowest type able to represent values of both a and b.
// null widens to anything and integer widens to float. Any other pair of
// distinct types has no common supertype and ok is false.
func Widen(a, b FieldType) (t FieldType, ok bool) {
	switch {
	case a == b:
		return a, true
	case a == TypeNull:
		return b, true
	case b == TypeNull:
		return a, true
	case a == TypeInteger && b == TypeFloat, a == TypeFloat && b == TypeInteger:
		return TypeFloat, true
	}
	return "", false
}

// Field is a named, typed column.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is an ordered list of fields. Field names are unique.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Index returns the position of name in the schema, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the type of the named field.
func (s Schema) Lookup(name string) (FieldType, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Fields[i].Type, true
	}
	return "", false
}

// Types returns the schema as a name → type map, ignoring field order.
func (s Schema) Types() map[string]FieldType {
	out := make(map[string]FieldType, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Type
	}
	return out
}

// Equal reports whether both schemas have the same fields in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != o.Fields[i] {
			return false
		}
	}
	return true
}

// Merge widens s with o. Fields of s keep their position; fields only in o
// are appended in o's order. A field without a common supertype yields a
// *SchemaConflictError.
func (s Schema) Merge(o Schema) (Schema, error) {
	out := Schema{Fields: make([]Field, len(s.Fields), len(s.Fields)+len(o.Fields))}
	copy(out.Fields, s.Fields)
	pos := make(map[string]int, len(out.Fields))
	for i, f := range out.Fields {
		pos[f.Name] = i
	}
	for _, f := range o.Fields {
		i, ok := pos[f.Name]
		if !ok {
			pos[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
			continue
		}
		wide, ok := Widen(out.Fields[i].Type, f.Type)
		if !ok {
			return Schema{}, &SchemaConflictError{Field: f.Name, Existing: out.Fields[i].Type, Incoming: f.Type}
		}
		out.Fields[i].Type = wide
	}
	return out, nil
}

// Row is one record; keys are a subset of the batch schema.
type Row map[string]any

// RowBatch is a set of rows sharing one schema.
type RowBatch struct {
	Schema Schema
	Rows   []Row
}
