package lakehouse

import (
	"context"

	"lake-loader/internal/domain"
)

var _ domain.TableStore = (*Table)(nil)

// Table joins an ArtifactWriter and a CommitLog into a domain.TableStore.
type Table struct {
	artifacts *ArtifactWriter
	log       domain.CommitLog
}

// NewTable creates a Table.
func NewTable(artifacts *ArtifactWriter, log domain.CommitLog) *Table {
	return &Table{artifacts: artifacts, log: log}
}

// ReadVersion implements domain.TableStore.
func (t *Table) ReadVersion(ctx context.Context, tablePath string) (*domain.TableState, error) {
	return t.log.Read(ctx, tablePath)
}

// WriteArtifact implements domain.TableStore.
func (t *Table) WriteArtifact(ctx context.Context, tablePath string, batch *domain.RowBatch, partitions []domain.Partition) (domain.ArtifactRef, error) {
	return t.artifacts.Write(ctx, tablePath, batch, partitions)
}

// Commit implements domain.TableStore.
func (t *Table) Commit(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error) {
	return t.log.Append(ctx, tablePath, req)
}

// History returns the commits of tablePath in version order.
func (t *Table) History(ctx context.Context, tablePath string) ([]domain.Commit, error) {
	return t.log.List(ctx, tablePath)
}
