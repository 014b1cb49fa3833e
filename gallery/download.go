package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrDownloadFailed = errors.New("gallery: download failed")
	ErrImageTooLarge  = errors.New("gallery: image too large")
)

// Downloader fetches images from posted links.
type Downloader interface {
	Download(ctx context.Context, link string) ([]byte, error)
}

type httpDownloader struct {
	client  *nethttp.Client
	maxSize int64
}

// NewHTTPDownloader returns a Downloader whose requests are traced as
// children of the incoming request.
func NewHTTPDownloader(timeout time.Duration, maxSize int64) Downloader {
	return &httpDownloader{
		client: &nethttp.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(nethttp.DefaultTransport),
		},
		maxSize: maxSize,
	}
}

func (downloader *httpDownloader) Download(ctx context.Context, link string) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	res, err := downloader.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrDownloadFailed, link, res.Status)
	}
	if res.ContentLength > downloader.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, res.ContentLength)
	}

	content, err := io.ReadAll(io.LimitReader(res.Body, downloader.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if int64(len(content)) > downloader.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, downloader.maxSize)
	}
	return content, nil
}
