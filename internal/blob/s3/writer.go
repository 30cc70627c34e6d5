package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/preyanshu/verdict/internal/domain"
)

// partSize is the multipart chunk size; S3 requires at least 5 MiB.
const partSize int64 = 8 * 1024 * 1024

// Writer uploads objects through the multipart manager, which sends small
// bodies as a single PutObject and streams large ones in parts.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer for c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.s3, func(u *manager.Uploader) { u.PartSize = partSize }),
		bucket:   c.bucket,
	}
}

// Put uploads data to path.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
