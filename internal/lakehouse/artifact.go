// Package lakehouse stores versioned tables as Parquet data files plus a
// transaction log of commits.
package lakehouse

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"lake-loader/internal/domain"
	"lake-loader/internal/service/rowbatch"
	"lake-loader/internal/storage/objectstore"
)

// DataDir is the directory under a table holding its data files.
const DataDir = "data"

// ArtifactWriter writes row batches as Snappy-compressed Parquet files at
// <table>/data/<name=value/...>/part-<uuid>.parquet.
type ArtifactWriter struct {
	stores *objectstore.Registry
	mem    memory.Allocator
}

// NewArtifactWriter creates an ArtifactWriter.
func NewArtifactWriter(stores *objectstore.Registry) *ArtifactWriter {
	return &ArtifactWriter{stores: stores, mem: memory.DefaultAllocator}
}

// Write encodes batch in its own schema and uploads it.
func (w *ArtifactWriter) Write(ctx context.Context, tablePath string, batch *domain.RowBatch, partitions []domain.Partition) (domain.ArtifactRef, error) {
	loc, err := objectstore.ParseLocation(tablePath)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	store, err := w.stores.StoreFor(ctx, loc)
	if err != nil {
		return domain.ArtifactRef{}, err
	}

	data, err := w.encode(batch)
	if err != nil {
		return domain.ArtifactRef{}, err
	}

	elems := []string{DataDir}
	elems = append(elems, PartitionDirs(partitions)...)
	elems = append(elems, "part-"+domain.NewID()+".parquet")
	dst := loc.Join(elems...)

	if err := store.Put(ctx, dst.Bucket, dst.Key, data); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("upload artifact: %w", err)
	}
	return domain.ArtifactRef{
		Path:      dst.String(),
		RowCount:  int64(len(batch.Rows)),
		SizeBytes: int64(len(data)),
	}, nil
}

func (w *ArtifactWriter) encode(batch *domain.RowBatch) ([]byte, error) {
	rec, err := rowbatch.Record(w.mem, batch, batch.Schema)
	if err != nil {
		return nil, fmt.Errorf("build record: %w", err)
	}
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(w.mem),
	)
	fw, err := pqarrow.NewFileWriter(rec.Schema(), &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// PartitionDirs renders partitions as Hive-style name=value directories.
func PartitionDirs(partitions []domain.Partition) []string {
	dirs := make([]string, len(partitions))
	for i, p := range partitions {
		dirs[i] = url.PathEscape(p.Name) + "=" + url.PathEscape(p.Value)
	}
	return dirs
}
