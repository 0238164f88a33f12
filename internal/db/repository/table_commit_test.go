package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "lake-loader/internal/db"
	"lake-loader/internal/domain"
)

func setupTableCommitRepo(t *testing.T) *TableCommitRepo {
	t.Helper()
	return NewTableCommitRepo(internaldb.OpenTestCommitLog(t))
}

func commitReq(expected domain.TableVersion, key string) domain.CommitRequest {
	return domain.CommitRequest{
		Expected:   expected,
		Artifact:   domain.ArtifactRef{Path: "s3://lake/t/data/part-" + key + ".parquet", RowCount: 2, SizeBytes: 512},
		Partitions: []domain.Partition{{Name: "date", Value: "2021-04-16"}},
		DedupeKey:  key,
		Schema: domain.Schema{Fields: []domain.Field{
			{Name: "a", Type: domain.TypeInteger},
			{Name: "date", Type: domain.TypeString},
		}},
	}
}

func TestTableCommitRepo_EmptyTable(t *testing.T) {
	repo := setupTableCommitRepo(t)

	st, err := repo.Read(context.Background(), "s3://lake/t")
	require.NoError(t, err)
	assert.Equal(t, domain.TableVersion(0), st.Version)
	assert.Empty(t, st.DedupeKeys)
	assert.Empty(t, st.Schema.Fields)
}

func TestTableCommitRepo_AppendAndRead(t *testing.T) {
	repo := setupTableCommitRepo(t)
	ctx := context.Background()

	v, err := repo.Append(ctx, "s3://lake/t", commitReq(0, "k1"))
	require.NoError(t, err)
	assert.Equal(t, domain.TableVersion(1), v)

	v, err = repo.Append(ctx, "s3://lake/t", commitReq(1, "k2"))
	require.NoError(t, err)
	assert.Equal(t, domain.TableVersion(2), v)

	st, err := repo.Read(ctx, "s3://lake/t")
	require.NoError(t, err)
	assert.Equal(t, domain.TableVersion(2), st.Version)
	assert.True(t, st.HasDedupeKey("k1"))
	assert.True(t, st.HasDedupeKey("k2"))
	assert.Equal(t, commitReq(0, "x").Schema, st.Schema)

	// Tables are independent.
	other, err := repo.Read(ctx, "s3://lake/other")
	require.NoError(t, err)
	assert.Equal(t, domain.TableVersion(0), other.Version)
}

func TestTableCommitRepo_StaleExpectedVersion(t *testing.T) {
	repo := setupTableCommitRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "t", commitReq(0, "k1"))
	require.NoError(t, err)

	_, err = repo.Append(ctx, "t", commitReq(0, "k2"))
	require.Error(t, err)
	assert.True(t, domain.IsVersionConflict(err))
}

func TestTableCommitRepo_DuplicateDedupeKey(t *testing.T) {
	repo := setupTableCommitRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "t", commitReq(0, "k1"))
	require.NoError(t, err)

	_, err = repo.Append(ctx, "t", commitReq(1, "k1"))
	require.Error(t, err)
	assert.True(t, domain.IsVersionConflict(err))

	// Empty dedupe keys never collide.
	_, err = repo.Append(ctx, "t", commitReq(1, ""))
	require.NoError(t, err)
	_, err = repo.Append(ctx, "t", commitReq(2, ""))
	require.NoError(t, err)
}

func TestTableCommitRepo_ConcurrentAppend(t *testing.T) {
	repo := setupTableCommitRepo(t)
	ctx := context.Background()

	const writers = 6
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = repo.Append(ctx, "t", commitReq(0, fmt.Sprintf("k%d", i)))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, domain.IsVersionConflict(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestTableCommitRepo_List(t *testing.T) {
	repo := setupTableCommitRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "t", commitReq(0, "k1"))
	require.NoError(t, err)
	_, err = repo.Append(ctx, "t", domain.CommitRequest{Expected: 1, Artifact: domain.ArtifactRef{Path: "p2"}, DedupeKey: "k2"})
	require.NoError(t, err)

	commits, err := repo.List(ctx, "t")
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, domain.TableVersion(1), commits[0].Version)
	assert.Equal(t, "s3://lake/t/data/part-k1.parquet", commits[0].Artifact.Path)
	assert.Equal(t, int64(2), commits[0].Artifact.RowCount)
	assert.Equal(t, []domain.Partition{{Name: "date", Value: "2021-04-16"}}, commits[0].Partitions)
	assert.False(t, commits[0].CommittedAt.IsZero())

	assert.Equal(t, domain.TableVersion(2), commits[1].Version)
	assert.Empty(t, commits[1].Partitions)
}
