package gallery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/test"
)

type fakeDownloader struct {
	content []byte
	err     error
	calls   atomic.Int32
}

func (f *fakeDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	return f.content, f.err
}

func newTestGallery(t *testing.T, downloader Downloader) (*Gallery, string) {
	t.Helper()

	dir := t.TempDir()
	g, err := New(Options{
		Files:      filesystem.NewLocalFileSystem(dir),
		Downloader: downloader,
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatal(err)
	}
	return g, dir
}

func newCtx(method, uri, body string) *http.RequestCtx {
	ctx := &http.RequestCtx{}
	ctx.Request.Reset()
	ctx.Request.Method = method
	ctx.Request.URI = uri
	if body != "" {
		ctx.Request.Body = []byte(body)
	}
	return ctx
}

func TestLoad(t *testing.T) {
	g, dir := newTestGallery(t, nil)
	test.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("B"), 0644))
	test.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("A"), 0644))

	added, err := g.Load(context.Background())
	test.NoError(t, err)
	test.Equal(t, 2, added)

	added, err = g.Load(context.Background())
	test.NoError(t, err)
	test.Equal(t, 0, added)

	test.NoError(t, os.Remove(filepath.Join(dir, "a.jpg")))
	_, err = g.Load(context.Background())
	test.NoError(t, err)
	test.Equal(t, 1, g.Store().Len())
	test.True(t, !g.Store().Has("a.jpg"), "removed file still served")
}

func TestHomeRendersImagesInOrder(t *testing.T) {
	g, _ := newTestGallery(t, nil)
	g.Store().Add("b.png", []byte("B"))
	g.Store().Add("a.jpg", []byte("A"))

	ctx := newCtx("GET", "/home", "")
	g.home(ctx)

	body := string(ctx.Response.Body)
	a := strings.Index(body, `<img src="/image/a.jpg"`)
	b := strings.Index(body, `<img src="/image/b.png"`)
	test.True(t, a >= 0 && b >= 0, "images missing from the page")
	test.True(t, a < b, "images not in name order")
	test.True(t, strings.Contains(body, "max-width: 30%"), "escaped percent not rendered")
	test.True(t, strings.HasPrefix(body, "\r\n<!DOCTYPE html>"), "page does not start with a CRLF line")
}

func TestImage(t *testing.T) {
	g, _ := newTestGallery(t, nil)
	g.Store().Add("cat.png", []byte("png-bytes"))

	ctx := newCtx("GET", "/image/cat.png", "")
	g.image(ctx)
	test.Equal(t, "png-bytes", string(ctx.Response.Body))
	v, _ := ctx.Response.Headers.Get("Cache-Control")
	test.Equal(t, "public, max-age=604800, immutable", v)
	v, _ = ctx.Response.Headers.Get("Content-Type")
	test.Equal(t, "image/png", v)

	ctx = newCtx("GET", "/image/dog.png", "")
	g.image(ctx)
	test.Equal(t, http.StatusNotFound, ctx.Response.Status)
	test.Equal(t, "Not found", string(ctx.Response.Body))
}

func TestUpload(t *testing.T) {
	downloader := &fakeDownloader{content: []byte("new-image")}
	g, dir := newTestGallery(t, downloader)

	ctx := newCtx("POST", "/home", "link=https://example.com/pics/new.png\r\n")
	g.upload(ctx)

	test.Equal(t, 0, ctx.Response.Status)
	test.True(t, strings.Contains(string(ctx.Response.Body), "/image/new.png"), "uploaded image not rendered")

	stored, err := os.ReadFile(filepath.Join(dir, "new.png"))
	test.NoError(t, err)
	test.Equal(t, "new-image", string(stored))

	// the same name again is a bad request
	ctx = newCtx("POST", "/home", "link=https://other.example.com/new.png")
	g.upload(ctx)
	test.Equal(t, http.StatusBadRequest, ctx.Response.Status)
	test.Equal(t, int32(1), downloader.calls.Load())
}

func TestUploadRejectsInvalidLinks(t *testing.T) {
	downloader := &fakeDownloader{content: []byte("x")}
	g, _ := newTestGallery(t, downloader)

	for _, body := range []string{
		"",
		"link=",
		"link=https://example.com/cat.gif",
		"link=cat.png",
		"url=https://example.com/cat.png",
		"link=https://example.com/",
	} {
		ctx := newCtx("POST", "/home", body)
		g.upload(ctx)
		test.Equal(t, http.StatusBadRequest, ctx.Response.Status)
		test.Equal(t, "Bad request", ctx.Response.Reason)
	}
	test.Equal(t, int32(0), downloader.calls.Load())
}

func TestUploadDownloadFailure(t *testing.T) {
	g, _ := newTestGallery(t, &fakeDownloader{err: errors.New("unreachable")})

	ctx := newCtx("POST", "/home", "link=https://example.com/cat.png")
	g.upload(ctx)
	test.Equal(t, http.StatusBadGateway, ctx.Response.Status)
	test.True(t, !g.Store().Has("cat.png"), "failed download stored")
}

func TestHTTPDownloader(t *testing.T) {
	origin := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write([]byte("image"))
		case "/big.png":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			nethttp.NotFound(w, r)
		}
	}))
	defer origin.Close()

	downloader := NewHTTPDownloader(5*time.Second, 32)

	content, err := downloader.Download(context.Background(), origin.URL+"/ok.png")
	test.NoError(t, err)
	test.Equal(t, "image", string(content))

	_, err = downloader.Download(context.Background(), origin.URL+"/big.png")
	test.ErrorIs(t, err, ErrImageTooLarge)

	_, err = downloader.Download(context.Background(), origin.URL+"/missing.png")
	test.ErrorIs(t, err, ErrDownloadFailed)
}

func TestGalleryOverEmber(t *testing.T) {
	g, _ := newTestGallery(t, &fakeDownloader{content: []byte("img")})
	g.Store().Add("cat.png", []byte("meow"))

	router := http.NewRouter()
	g.Register(&router)

	srv := http.NewServer("gallery-test", http.Config{Host: "127.0.0.1", MaxWorkers: 2},
		router.Handler(), http.WithLogger(slog.New(slog.DiscardHandler)))
	test.NoError(t, srv.Listen())
	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		test.NoError(t, srv.Shutdown(ctx))
		test.ErrorIs(t, <-served, http.ErrServerClosed)
	}()

	conn, err := net.Dial("tcp", srv.Addr().String())
	test.NoError(t, err)
	defer conn.Close()
	br := bufio.NewReader(conn)

	send := func(raw string) *nethttp.Response {
		t.Helper()
		fmt.Fprint(conn, raw)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		res, err := nethttp.ReadResponse(br, nil)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	tests := []struct {
		raw    string
		status int
		body   string
	}{
		{"GET /image/cat.png HTTP/1.1\r\n\r\n", 200, "meow"},
		{"GET /image/dog.png HTTP/1.1\r\n\r\n", 404, "Not found"},
		{"GET /elsewhere HTTP/1.1\r\n\r\n", 404, "Not found"},
		{"POST /image/cat.png HTTP/1.1\r\n\r\n", 404, "Not found"},
		{"DELETE /home HTTP/1.1\r\n\r\n", 501, "Not implemented"},
		{"POST /home HTTP/1.1\r\nContent-Length: 13\r\n\r\nlink=bad.gif\n", 400, "Bad request"},
	}
	for _, tt := range tests {
		res := send(tt.raw)
		body, _ := io.ReadAll(res.Body)
		test.Equal(t, tt.status, res.StatusCode)
		test.Equal(t, tt.body, string(body))
	}

	res := send("GET /home/anything?page=2 HTTP/1.1\r\n\r\n")
	body, _ := io.ReadAll(res.Body)
	test.Equal(t, 200, res.StatusCode)
	test.True(t, strings.Contains(string(body), "/image/cat.png"), "gallery page missing below /home/")

	res = send("POST /home HTTP/1.1\r\nContent-Length: 35\r\n\r\nlink=https://example.com/a/bird.png")
	body, _ = io.ReadAll(res.Body)
	test.Equal(t, 200, res.StatusCode)
	test.True(t, strings.Contains(string(body), "/image/bird.png"), "uploaded image missing from page")

	res = send("GET /image/bird.png HTTP/1.1\r\nConnection: close\r\n\r\n")
	body, _ = io.ReadAll(res.Body)
	test.Equal(t, "img", string(body))
	test.Equal(t, "close", res.Header.Get("Connection"))
}
