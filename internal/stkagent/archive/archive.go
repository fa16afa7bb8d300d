// Package archive stores raw upstream payloads in an S3 compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/log"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// bucket is the subset of the minio client the archive needs.
type bucket interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive writes one object per fetched payload: raw/<vin>/<unix>.json|html.
type Archive struct {
	client     bucket
	bucketName string
	region     string
}

func New(opts *options.S3Options) (*Archive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Archive{client: client, bucketName: opts.BucketName, region: opts.Region}, nil
}

// CheckBucket creates the bucket when it does not exist yet.
func (a *Archive) CheckBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", a.bucketName)
		if err := a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (a *Archive) Archive(ctx context.Context, vin string, raw *core.RawRecord, at time.Time) error {
	if raw == nil || len(raw.Body) == 0 {
		return nil
	}
	key, contentType := ObjectKey(vin, raw.Source, at)
	_, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(raw.Body), int64(len(raw.Body)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"source": string(raw.Source),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the object name and content type for a payload.
func ObjectKey(vin string, source core.Source, at time.Time) (key, contentType string) {
	ext, contentType := "json", "application/json"
	if source == core.SourceScrape {
		ext, contentType = "html", "text/html; charset=utf-8"
	}
	return fmt.Sprintf("raw/%s/%d.%s", strings.ToUpper(vin), at.Unix(), ext), contentType
}
