package core

import (
	"context"
	"io"
	"time"
)

type (
	// Cache is a byte oriented key/value cache with per entry TTL.
	Cache interface {
		// Get returns (nil, false, nil) on a miss.
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
		Delete(ctx context.Context, key string) error
	}

	// FileStorage stores uploaded files (member photos) and serves them from a public URL.
	FileStorage interface {
		Save(ctx context.Context, name string, r io.Reader) (url string, err error)
		// Delete removes the file published at url. Unknown urls are ignored.
		Delete(ctx context.Context, url string) error
	}

	// QRCodec renders and reads the QR codes printed on membership cards.
	QRCodec interface {
		// Encode returns a size x size PNG image of content.
		Encode(content string, size int) ([]byte, error)
		// Decode reads the first QR code found in a PNG, JPEG or GIF image.
		Decode(r io.Reader) (string, error)
	}
)
