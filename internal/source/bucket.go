package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
	"gocloud.dev/gcerrors"
)

// BucketSource reads monthly exports stored in an object bucket, either plain
// (.pgn) or zstd-compressed (.pgn.zst). Keys follow FileName under prefix.
type BucketSource struct {
	bucket  *blob.Bucket
	prefix  string
	decoder *zstd.Decoder
	logger  *slog.Logger
}

// NewBucketSource opens the bucket at bucketURL (gs://, s3://, file://, mem://).
// Uses Application Default Credentials for GCS and the default AWS chain for S3.
func NewBucketSource(ctx context.Context, bucketURL, prefix string) (*BucketSource, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	src, err := newBucketSource(bucket, prefix)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return src, nil
}

func newBucketSource(bucket *blob.Bucket, prefix string) (*BucketSource, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BucketSource{
		bucket:  bucket,
		prefix:  prefix,
		decoder: dec,
		logger:  slog.With("component", "source:bucket"),
	}, nil
}

// FetchMonth implements GameSource. A month with no object is empty.
func (s *BucketSource) FetchMonth(ctx context.Context, username string, m Month) (string, error) {
	base := s.prefix + FileName(username, m)

	data, err := s.readObject(ctx, base+".zst")
	if err == nil {
		raw, err := s.decoder.DecodeAll(data, nil)
		if err != nil {
			return "", fmt.Errorf("%w: zstd decompress %s: %v", ErrTransport, base+".zst", err)
		}
		return string(raw), nil
	}
	if gcerrors.Code(err) != gcerrors.NotFound {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	data, err = s.readObject(ctx, base)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			s.logger.Debug("no export for month", "key", base)
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return string(data), nil
}

func (s *BucketSource) readObject(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Close releases resources.
func (s *BucketSource) Close() error {
	if s.decoder != nil {
		s.decoder.Close()
	}
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
