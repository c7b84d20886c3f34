package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageDataURL(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		input    string
		wantMIME string
	}{
		{"png data url", "data:image/png;base64," + encoded, "image/png"},
		{"webp data url", "data:image/webp;base64," + encoded, "image/webp"},
		{"missing mime falls back", "data:;base64," + encoded, DefaultImageMIMEType},
		{"bare base64 falls back", encoded, DefaultImageMIMEType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImageDataURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, img.MIMEType)
			assert.Equal(t, raw, img.Data)
		})
	}
}

func TestDecodeImageDataURL_Invalid(t *testing.T) {
	_, err := DecodeImageDataURL("data:image/png;base64,@@not-base64@@")
	require.Error(t, err)
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = DecodeImageDataURL("data:image/png;base64,")
	require.Error(t, err)
}
