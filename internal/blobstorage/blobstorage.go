package blobstorage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Config configures S3-compatible blob storage for raw message content.
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// ErrNotFound is returned by Get for a key the bucket does not hold.
var ErrNotFound = errors.New("blob not found")

// S3BlobStorage stores message bodies in an S3-compatible bucket, keyed by
// owner and content hash so identical messages of one user (copies,
// redeliveries) share one object. Keys are scoped per owner because each
// user's database refcounts only its own rows; a key shared across users
// could be deleted while another user still references it.
type S3BlobStorage struct {
	client *s3.Client
	bucket string
}

// NewS3BlobStorage builds a client for the configured endpoint. MinIO and
// other S3-compatible stores need force_path_style.
func NewS3BlobStorage(cfg Config) (*S3BlobStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob storage requires a bucket name")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3BlobStorage{client: client, bucket: cfg.Bucket}, nil
}

// Key derives the content-addressed object key for owner's data.
func (s *S3BlobStorage) Key(owner string, data []byte) string {
	sum := sha256.Sum256(data)
	return "blobs/" + owner + "/" + hex.EncodeToString(sum[:])
}

// Put uploads data under key. Re-uploading an existing key is harmless:
// content addressing guarantees the body is identical.
func (s *S3BlobStorage) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %v", key, err)
	}
	return nil
}

// Get downloads the blob stored under key.
func (s *S3BlobStorage) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch blob %s: %v", key, err)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			log.Printf("Error closing blob body for %s: %v", key, err)
		}
	}()

	return io.ReadAll(out.Body)
}

// Delete removes the blob stored under key. Deleting a missing key is not
// an error.
func (s *S3BlobStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %v", key, err)
	}
	return nil
}
