package rowbatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
)

func TestBuild_JSONArray(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"a":1,"b":"x"},{"a":2,"c":true}]`), nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.Field{
		{Name: "a", Type: domain.TypeInteger},
		{Name: "b", Type: domain.TypeString},
		{Name: "c", Type: domain.TypeBoolean},
	}, batch.Schema.Fields)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, domain.Row{"a": int64(1), "b": "x"}, batch.Rows[0])
	assert.Equal(t, domain.Row{"a": int64(2), "c": true}, batch.Rows[1])
}

func TestBuild_NDJSON(t *testing.T) {
	t.Parallel()

	data := "{\"a\":1}\n\n  {\"a\":2.5}\r\n{\"a\":null}\n"
	batch, err := Build([]byte(data), nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.Field{{Name: "a", Type: domain.TypeFloat}}, batch.Schema.Fields)
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, 1.0, batch.Rows[0]["a"])
	assert.Equal(t, 2.5, batch.Rows[1]["a"])
	assert.Nil(t, batch.Rows[2]["a"])
}

func TestBuild_SingleObject(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`{"id": "x"}`), nil)
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 1)
}

func TestBuild_TypeConflict(t *testing.T) {
	t.Parallel()

	_, err := Build([]byte(`[{"a":1},{"a":"x"}]`), nil)

	var sc *domain.SchemaConflictError
	require.True(t, errors.As(err, &sc), "got %v", err)
	assert.Equal(t, "a", sc.Field)
	assert.Equal(t, domain.TypeInteger, sc.Existing)
	assert.Equal(t, domain.TypeString, sc.Incoming)
}

func TestBuild_NullableAndAbsentFields(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"a":null},{"b":1},{"a":"s"}]`), nil)
	require.NoError(t, err)

	types := batch.Schema.Types()
	assert.Equal(t, domain.TypeString, types["a"])
	assert.Equal(t, domain.TypeInteger, types["b"])
	_, present := batch.Rows[1]["a"]
	assert.False(t, present)
}

func TestBuild_NullOnlyColumn(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"a":null},{"a":null}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.Field{{Name: "a", Type: domain.TypeNull}}, batch.Schema.Fields)
}

func TestBuild_Nested(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"n":{"z":1,"a":[1,2]}},{"n":[true]}]`), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TypeNested, batch.Schema.Fields[0].Type)
	assert.Equal(t, `{"a":[1,2],"z":1}`, batch.Rows[0]["n"])
	assert.Equal(t, `[true]`, batch.Rows[1]["n"])
}

func TestBuild_LargeIntegerIsFloat(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"a":18446744073709551615}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeFloat, batch.Schema.Fields[0].Type)
}

func TestBuild_Partitions(t *testing.T) {
	t.Parallel()

	parts := []domain.Partition{{Name: "date", Value: "2021-04-16"}}

	t.Run("injected", func(t *testing.T) {
		t.Parallel()
		batch, err := Build([]byte(`[{"a":1},{"a":2}]`), parts)
		require.NoError(t, err)
		typ, ok := batch.Schema.Lookup("date")
		require.True(t, ok)
		assert.Equal(t, domain.TypeString, typ)
		for _, row := range batch.Rows {
			assert.Equal(t, "2021-04-16", row["date"])
		}
	})

	t.Run("overwrites string field", func(t *testing.T) {
		t.Parallel()
		batch, err := Build([]byte(`[{"date":"yesterday"},{"date":null}]`), parts)
		require.NoError(t, err)
		assert.Equal(t, "2021-04-16", batch.Rows[0]["date"])
		assert.Equal(t, "2021-04-16", batch.Rows[1]["date"])
		assert.Len(t, batch.Schema.Fields, 1)
	})

	t.Run("conflicts with non-string field", func(t *testing.T) {
		t.Parallel()
		_, err := Build([]byte(`[{"date":20210416}]`), parts)
		var sc *domain.SchemaConflictError
		require.True(t, errors.As(err, &sc))
		assert.Equal(t, "date", sc.Field)
	})
}

func TestBuild_ContentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"whitespace", " \n\t "},
		{"empty array", "[]"},
		{"not json", "hello"},
		{"array of scalars", "[1,2]"},
		{"ndjson scalar", "{\"a\":1}\n42\n"},
		{"truncated", `[{"a":1}`},
		{"trailing data", `[{"a":1}] {"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build([]byte(tt.data), nil)
			var ce *domain.ContentError
			require.True(t, errors.As(err, &ce), "got %v", err)
		})
	}
}

// Inferring a batch in two halves and merging gives the same schema as
// inferring it in one pass.
func TestBuild_IncrementalInference(t *testing.T) {
	t.Parallel()

	whole, err := Build([]byte(`[{"a":1},{"b":null},{"a":2.5,"b":"x"},{"c":{"k":1}}]`), nil)
	require.NoError(t, err)

	first, err := Build([]byte(`[{"a":1},{"b":null}]`), nil)
	require.NoError(t, err)
	second, err := Build([]byte(`[{"a":2.5,"b":"x"},{"c":{"k":1}}]`), nil)
	require.NoError(t, err)

	merged, err := first.Schema.Merge(second.Schema)
	require.NoError(t, err)
	assert.Equal(t, whole.Schema, merged)

	reversed, err := second.Schema.Merge(first.Schema)
	require.NoError(t, err)
	assert.Equal(t, whole.Schema.Types(), reversed.Types())
}
