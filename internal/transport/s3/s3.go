// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName = "feedagg:transport:s3"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
)

// Config holds the S3 connection settings. Credentials fall back to the default AWS chain
// when the access key is not set.
type Config struct {
	Region          string `env:"AWS_REGION"`
	Endpoint        string `env:"FEEDAGG_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"FEEDAGG_S3_PATH_STYLE"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

func (c Config) validate() error {
	if c.Region == "" {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AWS_REGION")
	}
	if c.AccessKeyID != "" && c.SecretAccessKey == "" {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AWS_SECRET_ACCESS_KEY")
	}
	return nil
}

// store lists and downloads objects.
type store interface {
	newest(ctx context.Context, bucket, prefix string) (string, bool, error)
	download(ctx context.Context, bucket, key string) ([]byte, error)
}

var _ transport.Fetcher = &Fetcher{}

// Fetcher downloads the most recently modified object matching a "bucket/prefix" locator.
type Fetcher struct {
	store store
}

// NewFromEnv returns a Fetcher configured from the environment.
func NewFromEnv(ctx context.Context) (*Fetcher, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New returns a Fetcher for the given configuration.
func New(ctx context.Context, cfg Config) (*Fetcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Fetcher{store: &clientStore{client: client}}, nil
}

// Fetch implements transport.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*transport.File, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	bucket, prefix := transport.SplitLocator(locator)
	if bucket == "" {
		return nil, fmt.Errorf("invalid s3 locator %q: missing bucket", locator)
	}

	key, found, err := f.store.newest(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing bucket %s: %w", bucket, err)
	}
	if !found {
		log.Warn("no object matching prefix", "bucket", bucket, "prefix", prefix)
		return nil, fmt.Errorf("%w: no object starting with %q in %s", transport.ErrNoData, prefix, bucket)
	}

	content, err := f.store.download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("downloading object %s: %w", key, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: object %s is empty", transport.ErrNoData, key)
	}

	log.Debug("object downloaded", "bucket", bucket, "key", key, "size", len(content))
	return &transport.File{Name: key, Content: content}, nil
}

type clientStore struct {
	client *s3.Client
}

func (s *clientStore) newest(ctx context.Context, bucket, prefix string) (string, bool, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var newestKey string
	var newestTime time.Time
	found := false
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", false, err
		}

		for _, object := range page.Contents {
			if object.Key == nil {
				continue
			}

			modified := aws.ToTime(object.LastModified)
			if !found || modified.After(newestTime) {
				newestKey, newestTime, found = *object.Key, modified, true
			}
		}
	}

	return newestKey, found, nil
}

func (s *clientStore) download(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}
