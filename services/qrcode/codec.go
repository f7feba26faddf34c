// Package qrsvc renders membership QR codes and reads them back from uploaded pictures.
package qrsvc

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/intigym/backoffice/core"
)

// MaxPixels bounds the dimensions of a picture Decode accepts.
const MaxPixels = 25_000_000

var ErrImageTooLarge = errors.New("image too large")

type codec struct {
	level qrcode.RecoveryLevel
}

var _ core.QRCodec = (*codec)(nil)

func NewCodec() core.QRCodec {
	return &codec{level: qrcode.Medium}
}

func (c *codec) Encode(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, c.level, size)
	return png, errors.Wrap(err, "encoding QR code")
}

// Decode reads the header first and refuses pictures over MaxPixels before decoding them.
func (c *codec) Decode(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decoding image header")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", ErrImageTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decoding image")
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", errors.Wrap(err, "binarizing image")
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	res, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", errors.Wrap(err, "reading QR code")
	}
	return res.GetText(), nil
}
