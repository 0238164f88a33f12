package rowbatch

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
)

func TestRecord_BatchSchema(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	batch, err := Build([]byte(`[{"a":1,"s":"x","n":{"k":1},"z":null},{"a":2,"b":true}]`),
		[]domain.Partition{{Name: "date", Value: "d1"}})
	require.NoError(t, err)

	rec, err := Record(mem, batch, batch.Schema)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(len(batch.Schema.Fields)), rec.NumCols())

	sc := rec.Schema()
	idx := sc.FieldIndices("a")
	require.Len(t, idx, 1)
	ints := rec.Column(idx[0]).(*array.Int64)
	assert.Equal(t, []int64{1, 2}, ints.Int64Values())

	idx = sc.FieldIndices("b")
	bools := rec.Column(idx[0]).(*array.Boolean)
	assert.True(t, bools.IsNull(0))
	assert.True(t, bools.Value(1))

	idx = sc.FieldIndices("z")
	assert.Equal(t, arrow.NULL, sc.Field(idx[0]).Type.ID())

	idx = sc.FieldIndices("n")
	nested := sc.Field(idx[0])
	assert.True(t, nested.HasMetadata())
	assert.Equal(t, `{"k":1}`, rec.Column(idx[0]).(*array.String).Value(0))

	idx = sc.FieldIndices("date")
	dates := rec.Column(idx[0]).(*array.String)
	assert.Equal(t, "d1", dates.Value(0))
	assert.Equal(t, "d1", dates.Value(1))
}

func TestRecord_WidenedSchema(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	batch, err := Build([]byte(`[{"a":1,"b":null}]`), nil)
	require.NoError(t, err)

	table := domain.Schema{Fields: []domain.Field{
		{Name: "old", Type: domain.TypeString},
		{Name: "a", Type: domain.TypeFloat},
		{Name: "b", Type: domain.TypeString},
	}}
	rec, err := Record(mem, batch, table)
	require.NoError(t, err)
	defer rec.Release()

	assert.True(t, rec.Column(0).IsNull(0))
	assert.Equal(t, 1.0, rec.Column(1).(*array.Float64).Value(0))
	assert.True(t, rec.Column(2).IsNull(0))
}

func TestRecord_IncompatibleSchema(t *testing.T) {
	t.Parallel()

	batch, err := Build([]byte(`[{"a":"x"}]`), nil)
	require.NoError(t, err)

	_, err = Record(memory.DefaultAllocator, batch,
		domain.Schema{Fields: []domain.Field{{Name: "a", Type: domain.TypeInteger}}})
	require.Error(t, err)
}
