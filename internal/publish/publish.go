// Package publish uploads a finished promo video to object storage.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher makes a local file available elsewhere and returns its location.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// S3Config selects the destination bucket. Empty fields fall back to the
// standard AWS configuration chain.
type S3Config struct {
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Profile      string `toml:"profile"`
	UsePathStyle bool   `toml:"use_path_style"`
	CacheControl string `toml:"cache_control"`
}

// putter is the slice of the S3 client the publisher needs.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads videos with PutObject.
type S3Publisher struct {
	cfg    S3Config
	client putter
}

func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Publisher{cfg: cfg, client: client}, nil
}

// Key is the object key a local file is stored under.
func (p *S3Publisher) Key(localPath string) string {
	return path.Join(p.cfg.Prefix, filepath.Base(localPath))
}

func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := p.Key(localPath)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	}
	if p.cfg.CacheControl != "" {
		in.CacheControl = aws.String(p.cfg.CacheControl)
	}

	if _, err := p.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", p.cfg.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, key), nil
}
