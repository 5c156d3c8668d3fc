package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// CompletedPart is one finished part as reported back by the store.
type CompletedPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

// NormalizeETag strips the quote characters some stores wrap part tags in,
// so comparison and submission work regardless of backend.
func NormalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"'`)
}

// SortParts orders parts ascending by part number in place. The store
// rejects completion calls with out-of-order part lists no matter the order
// the uploads actually finished in.
func SortParts(parts []CompletedPart) {
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})
}

func (c *Client) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	resp, err := c.C.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      c.Bucket,
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload, %w", err)
	}

	if resp.UploadId == nil || *resp.UploadId == "" {
		return "", errors.New("no upload id in store response")
	}

	return *resp.UploadId, nil
}

// UploadPart pushes one part. Retrying with the same part number is safe and
// simply overwrites that part on the store side.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	resp, err := c.C.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        c.Bucket,
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload part %d, %w", partNumber, err)
	}

	if resp.ETag == nil || *resp.ETag == "" {
		return "", fmt.Errorf("no etag in store response for part %d", partNumber)
	}

	return NormalizeETag(*resp.ETag), nil
}

func (c *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("can't complete an upload with no parts")
	}

	cleaned := make([]CompletedPart, len(parts))
	for i, p := range parts {
		cleaned[i] = CompletedPart{
			PartNumber: p.PartNumber,
			ETag:       NormalizeETag(p.ETag),
		}
	}
	SortParts(cleaned)

	completed := make([]types.CompletedPart, len(cleaned))
	for i, p := range cleaned {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}

	resp, err := c.C.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   c.Bucket,
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete multipart upload, %w", err)
	}

	return aws.ToString(resp.Location), nil
}

func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.C.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   c.Bucket,
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("failed to abort multipart upload, %w", err)
	}

	return nil
}

// Exists probes for an object with a HeadObject call. A NotFound answer is
// not an error, it's the answer.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}

		return false, fmt.Errorf("failed to check if object exists, %w", err)
	}

	return true, nil
}

func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}

// Presign generates a time-bounded direct download URL so the server never
// has to proxy file bytes.
func (c *Client) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign download url, %w", err)
	}

	return req.URL, nil
}

// UniqueKey probes the store for baseKey and inserts a numeric suffix before
// the extension until it finds an unused key: name.ext, name(1).ext,
// name(2).ext and so on. Collisions are rare so the extra round trips don't
// matter, and the loop terminates at the first gap.
func (c *Client) UniqueKey(ctx context.Context, baseKey string) (string, error) {
	key := baseKey

	for counter := 1; ; counter++ {
		exists, err := c.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}

		ext := path.Ext(baseKey)
		key = fmt.Sprintf("%s(%d)%s", strings.TrimSuffix(baseKey, ext), counter, ext)
	}
}
