package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type azureProvider struct {
	cfg    Config
	client *container.Client
}

func newAzureProvider(cfg Config) (Provider, error) {
	containerURL, err := azureContainerURL(cfg)
	if err != nil {
		return nil, err
	}

	var client *container.Client
	switch {
	case strings.TrimSpace(cfg.AzureSASToken) != "":
		client, err = container.NewClientWithNoCredential(containerURL, nil)
	case strings.TrimSpace(cfg.AzureKey) != "":
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return nil, fmt.Errorf("azure account name is required for shared key auth")
		}
		credential, credErr := azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.AzureKey)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", credErr)
		}
		client, err = container.NewClientWithSharedKeyCredential(containerURL, credential, nil)
	default:
		credential, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", credErr)
		}
		client, err = container.NewClient(containerURL, credential, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	return &azureProvider{cfg: cfg, client: client}, nil
}

func azureContainerURL(cfg Config) (string, error) {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.AzureEndpoint), "/")
	if serviceURL == "" {
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return "", fmt.Errorf("azure endpoint or account name is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccount)
	}
	containerURL := serviceURL + "/" + cfg.Bucket
	if token := strings.TrimPrefix(strings.TrimSpace(cfg.AzureSASToken), "?"); token != "" {
		containerURL += "?" + token
	}
	return containerURL, nil
}

func (p *azureProvider) Upload(ctx context.Context, key, localPath string) (Object, error) {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	file, err := os.Open(localPath)
	if err != nil {
		return Object{}, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return Object{}, err
	}

	ct := contentType(localPath)
	_, err = p.client.NewBlockBlobClient(remoteKey).UploadFile(ctx, file, &blockblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", remoteKey, err)
	}
	return Object{Key: remoteKey, Size: stat.Size(), LastModified: stat.ModTime()}, nil
}

func (p *azureProvider) List(ctx context.Context, prefix string) ([]Object, error) {
	options := &container.ListBlobsFlatOptions{}
	if remotePrefix := ResolveKey(p.cfg.Prefix, prefix); remotePrefix != "" {
		options.Prefix = &remotePrefix
	}

	var objects []Object
	pager := p.client.NewListBlobsFlatPager(options)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			o := Object{Key: *item.Name}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					o.Size = *item.Properties.ContentLength
				}
				if item.Properties.LastModified != nil {
					o.LastModified = *item.Properties.LastModified
				}
			}
			objects = append(objects, o)
		}
	}
	return objects, nil
}

func (p *azureProvider) Close() error {
	return nil
}
