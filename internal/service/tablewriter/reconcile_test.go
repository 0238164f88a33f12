package tablewriter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-loader/internal/domain"
)

func schemaOf(fields ...domain.Field) domain.Schema {
	return domain.Schema{Fields: fields}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		table    domain.Schema
		batch    domain.Schema
		want     domain.Schema
		conflict bool
	}{
		{
			name:  "empty table",
			table: schemaOf(),
			batch: schemaOf(domain.Field{Name: "a", Type: domain.TypeInteger}),
			want:  schemaOf(domain.Field{Name: "a", Type: domain.TypeInteger}),
		},
		{
			name:  "integer into float column",
			table: schemaOf(domain.Field{Name: "a", Type: domain.TypeFloat}),
			batch: schemaOf(domain.Field{Name: "a", Type: domain.TypeInteger}),
			want:  schemaOf(domain.Field{Name: "a", Type: domain.TypeFloat}),
		},
		{
			name:     "float into integer column",
			table:    schemaOf(domain.Field{Name: "a", Type: domain.TypeInteger}),
			batch:    schemaOf(domain.Field{Name: "a", Type: domain.TypeFloat}),
			conflict: true,
		},
		{
			name:     "string into integer column",
			table:    schemaOf(domain.Field{Name: "a", Type: domain.TypeInteger}),
			batch:    schemaOf(domain.Field{Name: "a", Type: domain.TypeString}),
			conflict: true,
		},
		{
			name:  "null batch field",
			table: schemaOf(domain.Field{Name: "a", Type: domain.TypeBoolean}),
			batch: schemaOf(domain.Field{Name: "a", Type: domain.TypeNull}),
			want:  schemaOf(domain.Field{Name: "a", Type: domain.TypeBoolean}),
		},
		{
			name:  "null table field resolves",
			table: schemaOf(domain.Field{Name: "a", Type: domain.TypeNull}),
			batch: schemaOf(domain.Field{Name: "a", Type: domain.TypeNested}),
			want:  schemaOf(domain.Field{Name: "a", Type: domain.TypeNested}),
		},
		{
			name: "additive fields keep table order",
			table: schemaOf(
				domain.Field{Name: "x", Type: domain.TypeString},
				domain.Field{Name: "y", Type: domain.TypeString},
			),
			batch: schemaOf(
				domain.Field{Name: "z", Type: domain.TypeInteger},
				domain.Field{Name: "y", Type: domain.TypeString},
				domain.Field{Name: "w", Type: domain.TypeBoolean},
			),
			want: schemaOf(
				domain.Field{Name: "x", Type: domain.TypeString},
				domain.Field{Name: "y", Type: domain.TypeString},
				domain.Field{Name: "z", Type: domain.TypeInteger},
				domain.Field{Name: "w", Type: domain.TypeBoolean},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Reconcile(tt.table, tt.batch, "s3://lake/t")
			if tt.conflict {
				var sc *domain.SchemaConflictError
				require.True(t, errors.As(err, &sc))
				assert.Equal(t, "s3://lake/t", sc.Table)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
