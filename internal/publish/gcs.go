package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcsProvider struct {
	cfg    Config
	client *storage.Client
}

func newGCSProvider(ctx context.Context, cfg Config) (Provider, error) {
	var options []option.ClientOption
	if strings.TrimSpace(cfg.GCPCredentialsJSON) != "" {
		options = append(options, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	} else if strings.TrimSpace(cfg.GCPCredentialsFile) != "" {
		options = append(options, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &gcsProvider{cfg: cfg, client: client}, nil
}

func (p *gcsProvider) Upload(ctx context.Context, key, localPath string) (Object, error) {
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

	writer := p.client.Bucket(p.cfg.Bucket).Object(remoteKey).NewWriter(ctx)
	writer.ContentType = contentType(localPath)
	if _, err := io.Copy(writer, file); err != nil {
		return Object{}, errors.Join(fmt.Errorf("failed to upload %s: %w", remoteKey, err), writer.Close())
	}
	if err := writer.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", remoteKey, err)
	}
	return Object{Key: remoteKey, Size: stat.Size(), LastModified: stat.ModTime()}, nil
}

func (p *gcsProvider) List(ctx context.Context, prefix string) ([]Object, error) {
	it := p.client.Bucket(p.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: ResolveKey(p.cfg.Prefix, prefix)})
	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, Object{Key: attrs.Name, Size: attrs.Size, LastModified: attrs.Updated})
	}
	return objects, nil
}

func (p *gcsProvider) Close() error {
	return p.client.Close()
}
