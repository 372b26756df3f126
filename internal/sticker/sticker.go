// Package sticker resolves sticker assets to bitmaps.
//
// Resolution is asynchronous: Cache.Resolve returns a Handle immediately and
// loads the bitmap on a background goroutine, at most once per asset id for
// the life of the cache. A Handle that is not ready, or whose load failed, is
// a valid state; the renderer draws a placeholder for it.
package sticker

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"image"
	"image/color"
	"sync"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/logging"
	"ortho-annotator/pkg/colorutil"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Bracket is the asset id of the orthodontic bracket sticker.
const Bracket = "bracket"

// Default on-screen size of a sticker in pixels.
const (
	Width  = 24
	Height = 24
)

// rasterScale oversamples the SVG so stickers stay sharp on HiDPI canvases.
const rasterScale = 2

//go:embed assets/*.svg
var assets embed.FS

// Asset returns the SVG source of a built-in sticker.
func Asset(id string) ([]byte, error) {
	data, err := assets.ReadFile("assets/" + id + ".svg")
	if err != nil {
		return nil, apperr.NewNotFound("read sticker asset", id)
	}
	return data, nil
}

// Loader produces the bitmap for an asset id.
type Loader interface {
	Load(ctx context.Context, assetID string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, assetID string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, assetID string) (image.Image, error) {
	return f(ctx, assetID)
}

// SVGLoader rasterizes the embedded SVG assets. The SVG keyword
// currentColor is replaced with Fill before parsing.
type SVGLoader struct {
	Fill color.Color
}

// NewSVGLoader returns a loader that fills stickers black, which is what an
// SVG with currentColor renders as when drawn as a standalone image.
func NewSVGLoader() *SVGLoader {
	return &SVGLoader{Fill: colorutil.Black}
}

func (l *SVGLoader) Load(ctx context.Context, assetID string) (image.Image, error) {
	src, err := Asset(assetID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Rasterize(src, l.Fill, Width*rasterScale, Height*rasterScale)
}

// Rasterize renders SVG source into a w x h RGBA image.
func Rasterize(src []byte, fill color.Color, w, h int) (*image.RGBA, error) {
	if fill == nil {
		fill = colorutil.Black
	}
	src = bytes.ReplaceAll(src, []byte("currentColor"), []byte(colorutil.Hex(fill)))

	icon, err := oksvg.ReadIconStream(bytes.NewReader(src))
	if err != nil {
		return nil, apperr.New(apperr.AssetFailed, "parse svg", "", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return rgba, nil
}

// Handle is the future result of resolving one asset.
type Handle struct {
	assetID string
	done    chan struct{}
	img     image.Image
	err     error
}

func newHandle(assetID string) *Handle {
	return &Handle{assetID: assetID, done: make(chan struct{})}
}

// NewReadyHandle returns a handle that is already resolved to img.
func NewReadyHandle(assetID string, img image.Image) *Handle {
	h := newHandle(assetID)
	h.finish(img, nil)
	return h
}

func (h *Handle) finish(img image.Image, err error) {
	h.img, h.err = img, err
	close(h.done)
}

// AssetID returns the asset this handle resolves.
func (h *Handle) AssetID() string {
	return h.assetID
}

// Ready reports whether the load has finished, successfully or not.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Image returns the bitmap, or nil while loading or after a failure.
func (h *Handle) Image() image.Image {
	if !h.Ready() {
		return nil
	}
	return h.img
}

// Err returns the load error, or nil while loading or after success.
func (h *Handle) Err() error {
	if !h.Ready() {
		return nil
	}
	return h.err
}

// Failed reports whether the load finished with an error.
func (h *Handle) Failed() bool {
	return h.Err() != nil
}

// Wait blocks until the load finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-h.done:
		return h.img, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolver hands out handles for asset ids.
type Resolver interface {
	Resolve(assetID string) *Handle
}

// Cache is a process-wide, get-or-load bitmap cache keyed by asset id.
type Cache struct {
	loader Loader

	mu      sync.Mutex
	entries map[string]*Handle
	onReady []func(assetID string)
}

// NewCache creates a cache backed by loader. A nil loader uses NewSVGLoader.
func NewCache(loader Loader) *Cache {
	if loader == nil {
		loader = NewSVGLoader()
	}
	return &Cache{loader: loader, entries: make(map[string]*Handle)}
}

// OnReady registers fn to be called, from the loading goroutine, whenever a
// load finishes. The GUI uses it to schedule a redraw.
func (c *Cache) OnReady(fn func(assetID string)) {
	c.mu.Lock()
	c.onReady = append(c.onReady, fn)
	c.mu.Unlock()
}

// Resolve returns the handle for assetID, starting a load the first time the
// id is seen. Failed loads are not retried.
func (c *Cache) Resolve(assetID string) *Handle {
	c.mu.Lock()
	if h, ok := c.entries[assetID]; ok {
		c.mu.Unlock()
		return h
	}
	h := newHandle(assetID)
	c.entries[assetID] = h
	c.mu.Unlock()

	go c.load(h)
	return h
}

func (c *Cache) load(h *Handle) {
	log := logging.For("sticker")

	img, err := c.loader.Load(context.Background(), h.assetID)
	if err == nil && img == nil {
		err = fmt.Errorf("loader returned no image")
	}
	if err != nil {
		log.Warn("sticker load failed", "asset", h.assetID, "error", err)
		img = nil
	} else {
		log.Debug("sticker loaded", "asset", h.assetID, "size", img.Bounds().Size())
	}
	h.finish(img, err)

	c.mu.Lock()
	callbacks := append([]func(string){}, c.onReady...)
	c.mu.Unlock()
	for _, fn := range callbacks {
		fn(h.assetID)
	}
}

// Len returns the number of asset ids seen.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
