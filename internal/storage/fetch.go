package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultFetchTimeout = 15 * time.Second

// Fetcher downloads files that live outside the store, such as client-supplied image URLs.
type Fetcher struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewFetcher builds a fetcher. maxBytes bounds the response body.
func NewFetcher(timeout time.Duration, maxBytes int) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &fasthttp.Client{
			Name:                "case-service",
			MaxResponseBodySize: maxBytes,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		timeout: timeout,
	}
}

// Fetch GETs rawURL. Only http and https are allowed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Object{}, fmt.Errorf("%q: %w", rawURL, ErrOutsideStore)
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(f.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return Object{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return Object{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}

	data := append([]byte(nil), resp.Body()...)
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}
	contentType := string(resp.Header.ContentType())
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Object{Data: data, ContentType: contentType, Filename: name}, nil
}
