// Package archive keeps copies of generated documents in S3-compatible
// object storage (AWS S3, MinIO).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

// LinkTTL is how long a returned download link stays valid.
const LinkTTL = 15 * time.Minute

// Archiver stores a document and returns a time-limited download link.
type Archiver interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Key is the object key of a record's document.
func Key(r *models.Reimbursement) string {
	return fmt.Sprintf("reimbursements/%s/%s.pdf", r.UserID, r.Protocolo)
}

// Noop is used when no bucket is configured.
type Noop struct{}

func (Noop) Store(context.Context, string, []byte, string) (string, error) { return "", nil }

type Config struct {
	Region       string
	User         string
	Password     string
	BaseEndpoint string
	Bucket       string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// seams for tests
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) getPresigner { return s3.NewPresignClient(c) }
)

type S3Archiver struct {
	bucket    string
	client    objectPutter
	presigner getPresigner
}

// NewS3Archiver builds the client once. Static credentials are used when a
// user is configured, otherwise the default AWS credential chain applies.
func NewS3Archiver(ctx context.Context, cfg Config) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.User != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.User, cfg.Password, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		bucket:    cfg.Bucket,
		client:    client,
		presigner: newS3PresignClient(client),
	}, nil
}

func (a *S3Archiver) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(LinkTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	return req.URL, nil
}
