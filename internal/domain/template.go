package domain

import "time"

type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementField ElementKind = "field"
	ElementQR    ElementKind = "qr"
)

type ElementStyle struct {
	Color      string `json:"color,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Align      string `json:"align,omitempty"` // "left", "center" or "right"
	FontFamily string `json:"font_family,omitempty"`
}

// Element is positioned by percentages of the canvas so a template renders the
// same at any resolution. Size is the font size for text/field elements and
// the edge length in logical pixels for qr elements.
type Element struct {
	Kind     ElementKind   `json:"kind"`
	XPercent float64       `json:"x_percent"`
	YPercent float64       `json:"y_percent"`
	Size     float64       `json:"size"`
	Style    *ElementStyle `json:"style,omitempty"`
	Content  string        `json:"content"`
}

type Template struct {
	ID                 uint      `json:"id"`
	OwnerID            uint      `json:"owner_id"`
	Name               string    `json:"name"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	BackgroundImageRef string    `json:"background_image_ref,omitempty"`
	Elements           []Element `json:"elements"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (t Template) HasQR() bool {
	for _, el := range t.Elements {
		if el.Kind == ElementQR {
			return true
		}
	}
	return false
}

// Bounds on a template, in logical pixels.
const (
	MaxCanvasPixels = 16_000_000
	MinQRSize       = 32
)

func (t Template) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return NewValidationError("template %d has invalid canvas %dx%d", t.ID, t.Width, t.Height)
	}
	if int64(t.Width)*int64(t.Height) > MaxCanvasPixels {
		return NewValidationError("template %d canvas %dx%d exceeds %d pixels", t.ID, t.Width, t.Height, MaxCanvasPixels)
	}
	for i, el := range t.Elements {
		switch el.Kind {
		case ElementText, ElementField, ElementQR:
		default:
			return NewValidationError("element %d has unknown kind %q", i, el.Kind)
		}
		if el.XPercent < 0 || el.XPercent > 100 || el.YPercent < 0 || el.YPercent > 100 {
			return NewValidationError("element %d is positioned outside the canvas", i)
		}
		if el.Kind == ElementQR && el.Size < MinQRSize {
			return NewValidationError("qr element %d needs a size of at least %d", i, MinQRSize)
		}
		if el.Kind == ElementQR && el.Size > float64(min(t.Width, t.Height)) {
			return NewValidationError("qr element %d does not fit the canvas", i)
		}
	}
	return nil
}
