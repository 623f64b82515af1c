package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/kevinaaaquil/bookdash/models"
)

// objectStore is the part of the S3 client the publisher uses.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Published describes an export written to the bucket.
type Published struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Publisher uploads view exports to S3 and hands out presigned download links.
type Publisher struct {
	client  objectStore
	presign func(ctx context.Context, in *s3.GetObjectInput, expiry time.Duration) (string, error)
	bucket  string
	prefix  string
	expiry  time.Duration
}

func NewPublisher(ctx context.Context, bucket, region, accessKeyID, secretAccessKey, prefix string) (*Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(client)
	return &Publisher{
		client: client,
		presign: func(ctx context.Context, in *s3.GetObjectInput, expiry time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, in, func(o *s3.PresignOptions) {
				o.Expires = expiry
			})
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket: bucket,
		prefix: normalizePrefix(prefix),
		expiry: 15 * time.Minute,
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Publish encodes books, stores them under <prefix><uuid>.<ext> and returns a
// presigned GET link that downloads as a friendly file name.
func (p *Publisher) Publish(ctx context.Context, f Format, books []models.Book) (Published, error) {
	var buf bytes.Buffer
	if err := Export(&buf, f, books); err != nil {
		return Published{}, err
	}
	key := p.prefix + uuid.New().String() + f.Ext()
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(f.ContentType()),
	})
	if err != nil {
		return Published{}, fmt.Errorf("upload %s: %w", key, err)
	}

	filename := "books-" + time.Now().UTC().Format("20060102-150405") + f.Ext()
	url, err := p.presign(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(p.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(`attachment; filename="` + filename + `"`),
	}, p.expiry)
	if err != nil {
		return Published{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return Published{Key: key, URL: url, ExpiresAt: time.Now().Add(p.expiry)}, nil
}
