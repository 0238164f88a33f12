package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"lake-loader/internal/domain"
)

var _ Store = (*AzureStore)(nil)

// AzureConfig holds shared-key credentials for a storage account.
type AzureConfig struct {
	AccountName string
	AccountKey  string
}

// AzureStore stores objects in Azure Blob Storage. Buckets are containers.
type AzureStore struct {
	client *azblob.Client
}

// NewAzureStore creates an AzureStore authenticated with the account key.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

// Get implements Store.
func (s *AzureStore) Get(ctx context.Context, container, key string) (*domain.Object, error) {
	resp, err := s.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, notFound(container, key)
		}
		return nil, fmt.Errorf("get az://%s/%s: %w", container, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read az://%s/%s: %w", container, key, err)
	}
	obj := &domain.Object{Data: data}
	if resp.ETag != nil {
		obj.ETag = strings.Trim(string(*resp.ETag), `"`)
	}
	return obj, nil
}

// Put implements Store.
func (s *AzureStore) Put(ctx context.Context, container, key string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, container, key, data, nil); err != nil {
		return fmt.Errorf("put az://%s/%s: %w", container, key, err)
	}
	return nil
}

// PutIfAbsent implements Store with an If-None-Match: * access condition.
func (s *AzureStore) PutIfAbsent(ctx context.Context, container, key string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, container, key, data, &azblob.UploadBufferOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return exists(container, key)
		}
		return fmt.Errorf("conditional put az://%s/%s: %w", container, key, err)
	}
	return nil
}

// List implements Store.
func (s *AzureStore) List(ctx context.Context, container, prefix string) ([]string, error) {
	var keys []string
	pager := s.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list az://%s/%s: %w", container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}
