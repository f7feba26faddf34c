package qrsvc

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	c := NewCodec()

	png, err := c.Encode("45871236", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	content, err := c.Decode(bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "45871236", content)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := NewCodec().Decode(strings.NewReader("not an image"))
	assert.Error(t, err)
}

// withDimensions rewrites the IHDR chunk of png to declare width x height.
func withDimensions(png []byte, width, height uint32) []byte {
	out := append([]byte(nil), png...)
	// signature (8) + length (4) + "IHDR" (4)
	binary.BigEndian.PutUint32(out[16:], width)
	binary.BigEndian.PutUint32(out[20:], height)
	binary.BigEndian.PutUint32(out[29:], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeTooLarge(t *testing.T) {
	c := NewCodec()
	png, err := c.Encode("45871236", 256)
	require.NoError(t, err)

	_, err = c.Decode(bytes.NewReader(withDimensions(png, 100000, 100000)))
	assert.Equal(t, ErrImageTooLarge, err)

	// same header rewrite within bounds still decodes
	content, err := c.Decode(bytes.NewReader(withDimensions(png, 256, 256)))
	require.NoError(t, err)
	assert.Equal(t, "45871236", content)
}
