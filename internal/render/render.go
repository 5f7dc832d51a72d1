// Package render composites certificate templates into raster images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

const (
	DefaultSupersample       = 2
	DefaultBackgroundTimeout = 5 * time.Second
	defaultTextColor         = "#111111"

	// MaxRenderPixels bounds the supersampled canvas.
	MaxRenderPixels = 64_000_000
)

type QREncoder interface {
	Encode(payload string, size int) (image.Image, error)
}

type Option func(*Renderer)

func WithSupersample(factor int) Option {
	return func(r *Renderer) {
		if factor > 0 {
			r.supersample = factor
		}
	}
}

func WithBackgroundTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.bgTimeout = d
		}
	}
}

func WithBackgroundFetcher(f BackgroundFetcher) Option {
	return func(r *Renderer) {
		r.bg = f
	}
}

type Renderer struct {
	qr          QREncoder
	bg          BackgroundFetcher
	supersample int
	bgTimeout   time.Duration
}

func NewRenderer(qr QREncoder, opts ...Option) *Renderer {
	r := &Renderer{
		qr:          qr,
		bg:          NewHTTPBackgroundFetcher(),
		supersample: DefaultSupersample,
		bgTimeout:   DefaultBackgroundTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Supersample() int {
	return r.supersample
}

// Render draws tpl for one participant and returns PNG bytes. An empty
// qrPayload draws a placeholder of the same size in place of every qr element,
// so layout is identical across the two generation passes.
func (r *Renderer) Render(ctx context.Context, tpl domain.Template, fields FieldResolver, qrPayload string) ([]byte, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	ss := float64(r.supersample)
	w, h := tpl.Width*r.supersample, tpl.Height*r.supersample
	if int64(w)*int64(h) > MaxRenderPixels {
		return nil, domain.NewValidationError("template %d renders at %dx%d, over %d pixels", tpl.ID, w, h, MaxRenderPixels)
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	r.drawBackground(ctx, dc, tpl.BackgroundImageRef)

	faces := newFaceSet()
	for i, el := range tpl.Elements {
		x := el.XPercent / 100 * float64(w)
		y := el.YPercent / 100 * float64(h)
		switch el.Kind {
		case domain.ElementText:
			drawText(dc, faces, el, el.Content, x, y, ss)
		case domain.ElementField:
			drawText(dc, faces, el, fields.Resolve(ParseFieldKey(el.Content)), x, y, ss)
		case domain.ElementQR:
			size := int(el.Size * ss)
			if qrPayload == "" {
				drawPlaceholder(dc, x, y, size)
				continue
			}
			img, err := r.qr.Encode(qrPayload, size)
			if err != nil {
				return nil, fmt.Errorf("element %d: r.qr.Encode -> %w", i, err)
			}
			dc.DrawImageAnchored(img, int(x), int(y), 0.5, 0.5)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("png.Encode -> %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawBackground(ctx context.Context, dc *gg.Context, ref string) {
	if ref == "" || r.bg == nil {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.bgTimeout)
	defer cancel()
	img, err := r.bg.Fetch(fetchCtx, ref)
	if err != nil {
		zap.L().Warn("background image unavailable, rendering on blank canvas",
			zap.String("ref", ref), zap.Error(err))
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, dc.Width(), dc.Height()))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	dc.DrawImage(dst, 0, 0)
}

func drawText(dc *gg.Context, faces *faceSet, el domain.Element, text string, x, y, ss float64) {
	if text == "" {
		return
	}
	size := el.Size
	if size <= 0 {
		size = 16
	}
	color := defaultTextColor
	bold := false
	ax := 0.5
	if st := el.Style; st != nil {
		if st.Color != "" {
			color = st.Color
		}
		bold = st.Bold
		switch st.Align {
		case "left":
			ax = 0
		case "right":
			ax = 1
		}
	}
	dc.SetFontFace(faces.face(size*ss, bold))
	dc.SetHexColor(color)
	dc.DrawStringAnchored(text, x, y, ax, 0.5)
}

// drawPlaceholder draws a neutral square with three finder-like corners.
func drawPlaceholder(dc *gg.Context, cx, cy float64, size int) {
	s := float64(size)
	x0, y0 := cx-s/2, cy-s/2
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x0, y0, s, s)
	dc.Fill()
	dc.SetRGB(0.75, 0.75, 0.75)
	dc.SetLineWidth(s / 40)
	dc.DrawRectangle(x0, y0, s, s)
	dc.Stroke()
	f := s / 4
	for _, p := range [][2]float64{{x0, y0}, {x0 + s - f, y0}, {x0, y0 + s - f}} {
		dc.DrawRectangle(p[0]+f/8, p[1]+f/8, f*3/4, f*3/4)
		dc.Fill()
	}
}

var (
	fontsOnce   sync.Once
	regularFont *truetype.Font
	boldFont    *truetype.Font
)

func loadFonts() {
	fontsOnce.Do(func() {
		regularFont, _ = truetype.Parse(goregular.TTF)
		boldFont, _ = truetype.Parse(gobold.TTF)
	})
}

// faceSet caches faces for one render call; truetype faces are not safe for
// concurrent use.
type faceSet struct {
	faces map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

func newFaceSet() *faceSet {
	loadFonts()
	return &faceSet{faces: make(map[faceKey]font.Face)}
}

func (s *faceSet) face(size float64, bold bool) font.Face {
	k := faceKey{size: size, bold: bold}
	if f, ok := s.faces[k]; ok {
		return f
	}
	ttf := regularFont
	if bold {
		ttf = boldFont
	}
	f := truetype.NewFace(ttf, &truetype.Options{Size: size})
	s.faces[k] = f
	return f
}
