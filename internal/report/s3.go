package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket and endpoint reports are uploaded to.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint is optional and enables S3-compatible stores such as MinIO.
	Endpoint  string
	PathStyle bool
}

// Environment variables read by S3ConfigFromEnv:
//
//	PSMFEATS_REPORT_S3_BUCKET (required)
//	PSMFEATS_REPORT_S3_PREFIX
//	PSMFEATS_REPORT_S3_REGION (default us-east-1)
//	PSMFEATS_REPORT_S3_ENDPOINT
//	PSMFEATS_REPORT_S3_PATH_STYLE=true|false
func S3ConfigFromEnv() (S3Config, error) {
	bucket := os.Getenv("PSMFEATS_REPORT_S3_BUCKET")
	if bucket == "" {
		return S3Config{}, fmt.Errorf("PSMFEATS_REPORT_S3_BUCKET required for s3 reports")
	}
	return S3Config{
		Bucket:    bucket,
		Prefix:    os.Getenv("PSMFEATS_REPORT_S3_PREFIX"),
		Region:    os.Getenv("PSMFEATS_REPORT_S3_REGION"),
		Endpoint:  os.Getenv("PSMFEATS_REPORT_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PSMFEATS_REPORT_S3_PATH_STYLE"), "true"),
	}, nil
}

// S3Sink uploads reports as objects of a single bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Sink(ctx context.Context, cfg S3Config, optFns ...func(*config.LoadOptions) error) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, optFns...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("report name is required")
	}
	key := s.Key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".png") {
		return "image/png"
	}
	return "text/plain"
}
