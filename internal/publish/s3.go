package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

type s3Provider struct {
	cfg      Config
	client   *s3.Client
	uploader *manager.Uploader
}

func newS3Provider(ctx context.Context, cfg Config) (Provider, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}
	options := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})
	return &s3Provider{cfg: cfg, client: client, uploader: manager.NewUploader(client)}, nil
}

func (p *s3Provider) Upload(ctx context.Context, key, localPath string) (Object, error) {
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
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(remoteKey),
		Body:        file,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", remoteKey, err)
	}
	return Object{Key: remoteKey, Size: stat.Size(), LastModified: stat.ModTime()}, nil
}

func (p *s3Provider) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(p.cfg.Bucket)}
	if remotePrefix := ResolveKey(p.cfg.Prefix, prefix); remotePrefix != "" {
		input.Prefix = aws.String(remotePrefix)
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			o := Object{Key: *obj.Key}
			if obj.Size != nil {
				o.Size = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}
	return objects, nil
}

func (p *s3Provider) Close() error {
	return nil
}
