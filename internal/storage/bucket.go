package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Bucket stores files in a blob bucket and exposes them below baseURL.
// URLs outside baseURL are fetched over HTTP when a fetcher is set.
type Bucket struct {
	bucket  *blob.Bucket
	baseURL string
	dir     string
	fetch   *Fetcher
}

// NewBucket wraps an open bucket.
func NewBucket(bucket *blob.Bucket, baseURL string, fetch *Fetcher) *Bucket {
	return &Bucket{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), fetch: fetch}
}

// NewFileBucket opens a directory-backed bucket, creating dir if needed.
func NewFileBucket(dir, baseURL string, fetch *Fetcher) (*Bucket, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	b := NewBucket(bucket, baseURL, fetch)
	b.dir = dir
	return b, nil
}

// OpenBucketURL opens any registered driver by URL, e.g. s3://bucket?region=eu-west-1.
func OpenBucketURL(ctx context.Context, bucketURL, baseURL string, fetch *Fetcher) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return NewBucket(bucket, baseURL, fetch), nil
}

// Dir returns the backing directory for file buckets, empty otherwise.
func (b *Bucket) Dir() string {
	return b.dir
}

// Close releases the bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func (b *Bucket) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if path.Ext(clean) == "" && contentType != "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			clean += exts[0]
		}
	}

	// Cancelling the writer context discards the partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := b.bucket.NewWriter(wctx, clean, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("open %s: %w", clean, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", clean, err)
	}
	return b.baseURL + "/" + clean, nil
}

func (b *Bucket) Download(ctx context.Context, url string) (Object, error) {
	if !strings.HasPrefix(url, b.baseURL+"/") {
		if b.fetch == nil {
			return Object{}, ErrOutsideStore
		}
		return b.fetch.Fetch(ctx, url)
	}
	clean, err := cleanKey(strings.TrimPrefix(url, b.baseURL+"/"))
	if err != nil {
		return Object{}, err
	}
	data, err := b.bucket.ReadAll(ctx, clean)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return Object{}, fmt.Errorf("%s: %w", clean, ErrOutsideStore)
		}
		return Object{}, err
	}

	contentType := ""
	if attrs, err := b.bucket.Attributes(ctx, clean); err == nil {
		contentType = attrs.ContentType
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(clean))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Object{Data: data, ContentType: contentType, Filename: path.Base(clean)}, nil
}
