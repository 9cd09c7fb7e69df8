package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripDataURI(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", StripDataURI("data:image/png;base64,aGVsbG8="))
	assert.Equal(t, "aGVsbG8=", StripDataURI("  aGVsbG8=\n"))
}

func TestMIMETypeAndFormat(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("data:image/png;base64,aGVsbG8="))
	assert.Equal(t, "image/jpeg", MIMEType("aGVsbG8="))
	assert.Equal(t, "png", ImageFormat("data:image/png;base64,aGVsbG8="))
	assert.Equal(t, "jpeg", ImageFormat("aGVsbG8="))
}

func TestDecodeImage(t *testing.T) {
	data, err := DecodeImage("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = DecodeImage("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = DecodeImage("not base64!")
	assert.Error(t, err)
}

func TestImageHashIgnoresPrefix(t *testing.T) {
	assert.Equal(t, ImageHash("aGVsbG8="), ImageHash("data:image/png;base64,aGVsbG8="))
	assert.NotEqual(t, ImageHash("aGVsbG8="), ImageHash("d29ybGQ="))
}

func TestEncodeImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.True(t, strings.HasPrefix(EncodeImage(png), "data:image/png;base64,"))
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", EncodeImage([]byte("hello")))
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", EncodeImage([]byte("data:image/png;base64,aGVsbG8=\n")))
}

func TestExtractJSON(t *testing.T) {
	tp := NewTextProcessor(nil)

	got, err := tp.ExtractJSON("```json\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	got, err = tp.ExtractJSON(`Sure! {"a":{"b":2}} hope that helps`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":2}}`, got)

	_, err = tp.ExtractJSON("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestTruncateKeepsRunes(t *testing.T) {
	tp := NewTextProcessor(nil)
	assert.Equal(t, "short", tp.Truncate("short", 10))
	assert.Equal(t, "h...", tp.Truncate("héllo", 2))
	assert.Equal(t, "ok", tp.ClipBody([]byte("  ok\xff "), 100))
}
