// Package archive uploads kept output directories to S3-compatible
// storage so failures on CI machines can be inspected after the fact.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/torture/iox"
	"github.com/pithecene-io/torture/log"
)

// Config holds configuration for the S3 archive.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// PutObjectAPI is the subset of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies directories into the bucket.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *log.Logger
}

// NewUploader creates an uploader around an existing client.
func NewUploader(client PutObjectAPI, cfg Config, logger *log.Logger) *Uploader {
	if logger == nil {
		logger = log.Nop()
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}
}

// NewS3Uploader creates an uploader backed by the AWS SDK.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func NewS3Uploader(ctx context.Context, cfg Config, logger *log.Logger) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewUploader(s3.NewFromConfig(awsConfig, s3Opts...), cfg, logger), nil
}

// Key returns the object key for a file of a suite's directory.
func (u *Uploader) Key(runID, suiteName, rel string) string {
	return path.Join(u.prefix, runID, suiteName, filepath.ToSlash(rel))
}

// UploadDir uploads every regular file under dir to
// <prefix>/<run id>/<suite name>/<relative path> and returns the number
// of objects written. The first failure stops the upload.
func (u *Uploader) UploadDir(ctx context.Context, runID, suiteName, dir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := u.Key(runID, suiteName, rel)
		if err := u.put(ctx, key, p); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}

	u.logger.Info("archived output directory", map[string]any{
		"suite":   suiteName,
		"bucket":  u.bucket,
		"prefix":  u.Key(runID, suiteName, ""),
		"objects": uploaded,
	})
	return uploaded, nil
}

func (u *Uploader) put(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	return err
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".js":
		return "text/javascript"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
