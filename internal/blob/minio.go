// Package blob archives generated invoice PDFs in S3-compatible object
// storage so that finance can pull them later without re-rendering.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores rendered documents in a MinIO (or any S3-compatible) bucket.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to the object store and makes sure the bucket exists.
func NewArchive(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Archive{client: client, bucket: bucket}, nil
}

// StoreInvoice uploads a rendered invoice PDF and returns the object key.
func (a *Archive) StoreInvoice(ctx context.Context, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("invoices/%s/%s", time.Now().UTC().Format("2006/01"), filename)

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload invoice %s: %w", filename, err)
	}
	return key, nil
}
