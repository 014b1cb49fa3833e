// Package gallery is a small image gallery served by the ember HTTP server.
//
// GET /home lists every stored image, GET /image/<name> serves one, and
// POST /home with a body of link=<url> downloads a .jpg or .png into the
// gallery.
package gallery

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/template"
	"github.com/freekieb7/ember/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/freekieb7/ember/gallery"
	imageCacheControl   = "public, max-age=604800, immutable"
	galleryTemplate     = "gallery.html"
	imageTemplate       = "image.html"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

var linkRules = map[string][]string{
	"link": {"required", "max:2048", "url", "suffix:.jpg|.png", "basename"},
}

type Gallery struct {
	store      *Store
	files      filesystem.Filesystem
	downloader Downloader
	logger     *slog.Logger
	tracer     trace.Tracer

	page *template.Template // one placeholder: the rendered images
	tile *template.Template // two placeholders: images so far, image path

	uploads metric.Int64Counter
}

type Options struct {
	Files       filesystem.Filesystem
	Downloader  Downloader
	Logger      *slog.Logger
	TemplateDir string // empty for the embedded templates
}

func New(opts Options) (*Gallery, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	page, tile, err := loadTemplates(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	if page.Placeholders() != 1 || tile.Placeholders() != 2 {
		return nil, fmt.Errorf("gallery: %s needs 1 placeholder and %s needs 2", page.Name(), tile.Name())
	}

	g := &Gallery{
		store:      NewStore(),
		files:      opts.Files,
		downloader: opts.Downloader,
		logger:     opts.Logger.With("component", "gallery"),
		tracer:     otel.Tracer(instrumentationName),
		page:       page,
		tile:       tile,
	}

	meter := otel.Meter(instrumentationName)
	g.uploads, err = meter.Int64Counter("ember.gallery.uploads",
		metric.WithDescription("Posted image links, by result"),
		metric.WithUnit("{upload}"))
	if err != nil {
		return nil, err
	}
	if _, err := meter.Int64ObservableGauge("ember.gallery.images",
		metric.WithDescription("Images held in memory"),
		metric.WithUnit("{image}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(g.store.Len()))
			return nil
		}),
	); err != nil {
		return nil, err
	}

	return g, nil
}

func loadTemplates(dir string) (*template.Template, *template.Template, error) {
	read := func(name string) (*template.Template, error) {
		if dir != "" {
			return template.ParseFile(filepath.Join(dir, name))
		}
		content, err := defaultTemplates.ReadFile("templates/" + name)
		if err != nil {
			return nil, err
		}
		return template.Parse(name, string(content))
	}

	page, err := read(galleryTemplate)
	if err != nil {
		return nil, nil, err
	}
	tile, err := read(imageTemplate)
	if err != nil {
		return nil, nil, err
	}
	return page, tile, nil
}

func (g *Gallery) Store() *Store {
	return g.store
}

// Load reads every image in the image directory that is not in memory yet
// and forgets images whose file is gone. It returns the number added.
func (g *Gallery) Load(ctx context.Context) (int, error) {
	_, span := g.tracer.Start(ctx, "gallery.load")
	defer span.End()

	names, err := g.files.ListFiles()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	onDisk := make(map[string]struct{}, len(names))
	added := 0
	for _, name := range names {
		onDisk[name] = struct{}{}
		if g.store.Has(name) {
			continue
		}

		content, err := g.files.ReadFile(name)
		if err != nil {
			g.logger.Warn("skipping unreadable image", "image", name, "error", err)
			continue
		}
		if g.store.Add(name, content) {
			added++
		}
	}

	for _, name := range g.store.Names() {
		if _, ok := onDisk[name]; !ok {
			g.store.Delete(name)
			g.logger.Info("image removed from disk", "image", name)
		}
	}

	span.SetAttributes(attribute.Int("gallery.images.added", added), attribute.Int("gallery.images", g.store.Len()))
	return added, nil
}

// Register adds the gallery routes. Methods other than GET and POST are
// answered with 501.
func (g *Gallery) Register(router *http.Router) {
	router.Use(http.AllowMethods(http.MethodGet, http.MethodPost))

	router.GET("/home", g.home)
	router.POST("/home", g.upload)
	router.GET("/home/*", g.home)
	router.POST("/home/*", g.upload)
	router.GET("/image/*", g.image)
	router.POST("/image/*", http.NotFoundHandler)
}

func (g *Gallery) home(ctx *http.RequestCtx) {
	page, err := g.render()
	if err != nil {
		g.logger.Error("render gallery", "error", err)
		ctx.Response.WithStatus(http.StatusInternalServerError).WithText("Internal server error")
		return
	}
	ctx.Response.WithHTML(page)
}

func (g *Gallery) image(ctx *http.RequestCtx) {
	name := strings.TrimPrefix(ctx.Request.URI, "/image/")
	if i := strings.IndexAny(name, "?/"); i >= 0 {
		name = name[:i]
	}

	content, ok := g.store.Get(name)
	if !ok {
		http.NotFoundHandler(ctx)
		return
	}

	ctx.Response.SetHeader("Cache-Control", imageCacheControl)
	ctx.Response.WithBytes(contentType(name), content)
}

func (g *Gallery) upload(ctx *http.RequestCtx) {
	link, name, err := g.parseLink(ctx.Request.Body)
	if err != nil {
		g.logger.Debug("rejected image link", "request_id", ctx.RequestID(), "error", err)
		g.countUpload(ctx.Context(), "invalid")
		ctx.Response.WithStatus(http.StatusBadRequest, "Bad request").WithText("Bad request")
		return
	}

	content, err := g.downloader.Download(ctx.Context(), link)
	if err != nil {
		g.logger.Warn("image download failed", "request_id", ctx.RequestID(), "link", link, "error", err)
		g.countUpload(ctx.Context(), "download_failed")
		ctx.Response.WithStatus(http.StatusBadGateway).WithText("Bad gateway")
		return
	}

	if err := g.files.WriteFile(name, content); err != nil {
		if errors.Is(err, filesystem.ErrFileAlreadyExists) {
			g.countUpload(ctx.Context(), "invalid")
			ctx.Response.WithStatus(http.StatusBadRequest, "Bad request").WithText("Bad request")
			return
		}
		g.logger.Error("storing image", "image", name, "error", err)
		g.countUpload(ctx.Context(), "store_failed")
		ctx.Response.WithStatus(http.StatusInternalServerError).WithText("Internal server error")
		return
	}

	g.store.Add(name, content)
	g.countUpload(ctx.Context(), "stored")
	g.logger.Info("image added", "request_id", ctx.RequestID(), "image", name, "bytes", len(content))

	g.home(ctx)
}

// parseLink extracts and validates the link field of an upload body and
// derives the stored file name from it.
func (g *Gallery) parseLink(body []byte) (link, name string, err error) {
	form, err := url.ParseQuery(strings.TrimRight(string(body), "\r\n"))
	if err != nil {
		return "", "", err
	}

	data := map[string]string{}
	if form.Has("link") {
		data["link"] = form.Get("link")
	}
	if violations := validation.ValidateMap(data, linkRules); !violations.IsEmpty() {
		return "", "", violations
	}

	link = data["link"]
	name = link[strings.LastIndexByte(link, '/')+1:]
	if g.store.Has(name) {
		return "", "", fmt.Errorf("image %s already exists", name)
	}
	return link, name, nil
}

// render folds every image through the tile template, then wraps the
// result in the page template.
func (g *Gallery) render() (string, error) {
	images := ""
	for _, name := range g.store.Names() {
		var err error
		images, err = g.tile.Render(images, "image/"+name)
		if err != nil {
			return "", err
		}
	}
	return g.page.Render(images)
}

func (g *Gallery) countUpload(ctx context.Context, result string) {
	g.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func contentType(name string) string {
	switch strings.ToLower(filesystem.GetFileExtension(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image"
	}
}
