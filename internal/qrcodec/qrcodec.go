// Package qrcodec encodes payload URLs into QR rasters and decodes camera
// frames back into payload strings.
package qrcodec

import (
	"errors"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	xdraw "golang.org/x/image/draw"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

// DefaultMargin is the quiet zone in modules around the symbol.
const DefaultMargin = 2

var ErrEmptyPayload = errors.New("qr payload is empty")

type Codec struct {
	margin int
}

func New() *Codec {
	return &Codec{margin: DefaultMargin}
}

// Encode returns a square black-on-white raster of exactly size x size pixels.
// The writer never renders below one pixel per module, so a symbol that does
// not fit is scaled down to the requested size.
func (c *Codec) Encode(payload string, size int) (image.Image, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: c.margin,
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, hints)
	if err != nil {
		return nil, err
	}
	if b := matrix.Bounds(); b.Dx() == size && b.Dy() == size {
		return matrix, nil
	}
	dst := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), matrix, matrix.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// Decode returns the payload carried by the first QR symbol found in img.
// Frames without a readable symbol yield a domain DecodeError.
func (c *Codec) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", domain.NewDecodeError(err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", domain.NewDecodeError(err)
	}
	text := strings.TrimSpace(result.GetText())
	if text == "" {
		return "", domain.NewDecodeError(ErrEmptyPayload)
	}
	return text, nil
}
