package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sokoni/server/internal/infra/config"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
)

// objectPutter is the subset of the S3 client the archive uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CallbackArchive stores raw provider callbacks in an S3-compatible bucket.
type CallbackArchive struct {
	client objectPutter
	bucket string
	prefix string
}

// NewClient creates an S3 client for an S3-compatible endpoint such as R2 or MinIO.
func NewClient(ctx context.Context, cfg *config.StorageConfig) (*s3.Client, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("incomplete storage configuration")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewCallbackArchive creates a callback archive writing under prefix.
func NewCallbackArchive(client objectPutter, bucket, prefix string) *CallbackArchive {
	return &CallbackArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for a callback: prefix/provider/YYYY/MM/DD/id.json.
func (a *CallbackArchive) Key(event *model.CallbackEvent) string {
	return path.Join(
		a.prefix,
		event.Provider,
		event.CreatedAt.UTC().Format("2006/01/02"),
		event.ID.String()+".json",
	)
}

// Archive uploads the raw callback body.
func (a *CallbackArchive) Archive(ctx context.Context, event *model.CallbackEvent) error {
	metadata := map[string]string{"provider": event.Provider}
	if event.CorrelationID != "" {
		metadata["correlation-id"] = event.CorrelationID
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(event)),
		Body:        strings.NewReader(event.Data),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("archive callback %s: %w", event.ID, err)
	}
	return nil
}

// Compile-time check
var _ outbound.CallbackArchivePort = (*CallbackArchive)(nil)
