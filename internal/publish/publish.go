// Package publish copies run outputs to S3.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Uploader puts report files under s3://bucket/prefix/<timestamp>/.
type Uploader struct {
	client    s3iface.S3API
	bucket    string
	prefix    string
	scholarID string
}

// NewUploader creates an uploader using the default AWS credential chain.
func NewUploader(bucket, prefix, region, scholarID string) (*Uploader, error) {
	if region == "" {
		region = DefaultRegion
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return newUploader(s3.New(sess), bucket, prefix, scholarID), nil
}

func newUploader(client s3iface.S3API, bucket, prefix, scholarID string) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		scholarID: scholarID,
	}
}

// Upload puts each file and returns the object keys in order. It stops at
// the first failure.
func (u *Uploader) Upload(ctx context.Context, at time.Time, files ...string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return keys, fmt.Errorf("reading %s: %w", f, err)
		}

		key := u.objectKey(at, filepath.Base(f))
		_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType(f)),
			Metadata: map[string]*string{
				"scholar-id":   aws.String(u.scholarID),
				"generated-at": aws.String(at.UTC().Format(time.RFC3339)),
			},
		})
		if err != nil {
			return keys, fmt.Errorf("failed to upload %s to s3://%s/%s: %w", f, u.bucket, key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// objectKey formats prefix/20060102T150405Z/name.
func (u *Uploader) objectKey(at time.Time, name string) string {
	stamp := at.UTC().Format("20060102T150405Z")
	if u.prefix == "" {
		return path.Join(stamp, name)
	}
	return path.Join(u.prefix, stamp, name)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
