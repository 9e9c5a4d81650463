package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/abhibansal60/led-catalog/internal/config"
	"github.com/abhibansal60/led-catalog/internal/exchange"
)

// S3Mirror stores the slot manifest as a single S3 object.
type S3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	key      string
}

// NewS3Mirror creates an S3Mirror from configuration. Credentials come
// from the config's static pair when set, otherwise from the default
// AWS credential chain.
func NewS3Mirror(cfg config.MirrorConfig) (*S3Mirror, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		key:      path.Join(cfg.S3Prefix, cfg.Slot, "catalog.json"),
	}, nil
}

func (m *S3Mirror) Publish(ctx context.Context, manifest *exchange.Manifest) error {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading manifest to s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return nil
}

func (m *S3Mirror) Fetch(ctx context.Context) (*exchange.Manifest, error) {
	resp, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil // Empty slot
		}
		return nil, fmt.Errorf("fetching manifest from s3://%s/%s: %w", m.bucket, m.key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading mirrored manifest: %w", err)
	}
	var manifest exchange.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decoding mirrored manifest: %w", err)
	}
	return &manifest, nil
}

var _ exchange.Mirror = (*S3Mirror)(nil)
