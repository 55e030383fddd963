package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBucketRoundTrip(t *testing.T) {
	store, err := NewFileBucket(t.TempDir(), "http://files.test/uploads/", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	url, err := store.Upload(ctx, "claimy/u1/info-responses/r1/receipt.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://files.test/uploads/claimy/u1/info-responses/r1/receipt.txt" {
		t.Fatalf("unexpected url %s", url)
	}

	obj, err := store.Download(ctx, url)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(obj.Data) != "hello" || obj.Filename != "receipt.txt" || !strings.HasPrefix(obj.ContentType, "text/plain") {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestBucketKeepsKeysInside(t *testing.T) {
	store, _ := NewFileBucket(t.TempDir(), "http://files.test/uploads", nil)
	defer store.Close()
	ctx := context.Background()

	url, err := store.Upload(ctx, "../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://files.test/uploads/etc/passwd" {
		t.Fatalf("key escaped the store: %s", url)
	}

	if _, err := store.Download(ctx, "http://elsewhere.test/file.png"); !errors.Is(err, ErrOutsideStore) {
		t.Fatalf("expected ErrOutsideStore without a fetcher, got %v", err)
	}
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("connection reset")
	}
	r.sent = true
	return copy(p, "partial"), nil
}

func TestBucketFailedUploadLeavesNoObject(t *testing.T) {
	store, _ := NewFileBucket(t.TempDir(), "http://files.test/uploads", nil)
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Upload(ctx, "claimy/u1/cases/c1/product.png", "image/png", &failingReader{}); err == nil {
		t.Fatal("expected write error")
	}
	exists, err := store.bucket.Exists(ctx, "claimy/u1/cases/c1/product.png")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("partial upload was kept")
	}
}

func TestBucketFetchesExternalURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img/kettle.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "png-bytes")
	}))
	defer srv.Close()

	store, _ := NewFileBucket(t.TempDir(), "http://files.test/uploads", NewFetcher(5*time.Second, 1<<20))
	defer store.Close()
	ctx := context.Background()

	obj, err := store.Download(ctx, srv.URL+"/img/kettle.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(obj.Data) != "png-bytes" || obj.ContentType != "image/png" || obj.Filename != "kettle.png" {
		t.Fatalf("unexpected object %+v", obj)
	}

	if _, err := store.Download(ctx, srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetcherRejectsNonHTTP(t *testing.T) {
	f := NewFetcher(time.Second, 0)
	for _, raw := range []string{"file:///etc/passwd", "ftp://host/x", "not a url"} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrOutsideStore) {
			t.Fatalf("%s: expected ErrOutsideStore, got %v", raw, err)
		}
	}
}

func TestPublicIDDropsExtension(t *testing.T) {
	if got := publicID("claimy/u1/cases/c1/product.png"); got != "claimy/u1/cases/c1/product" {
		t.Fatalf("publicID = %q", got)
	}
	if got := publicID("claimy/u1/notes"); got != "claimy/u1/notes" {
		t.Fatalf("publicID = %q", got)
	}
}
