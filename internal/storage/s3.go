package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps blobs in one bucket of AWS S3 or an S3-compatible server
// such as MinIO. Keys map to object keys directly.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

type S3Config struct {
	Bucket    string
	Region    string // default us-east-1
	Endpoint  string // optional, enables a custom endpoint
	PathStyle bool
}

// NewS3Store uses the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  15 * time.Minute,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &s.bucket, Key: &k, Body: r})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", k, err)
	}
	return k, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &k})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", k, err)
	}
	return out.Body, nil
}

func (s *S3Store) SignedURL(ctx context.Context, key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &k},
		s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
