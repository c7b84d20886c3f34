package service

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"github.com/mlecomte/homeworkai/internal/domain"
)

// =============================================================================
// Image Normalization
// =============================================================================

const (
	// NormalizeThresholdBytes is the upload size above which an image is
	// re-encoded before being sent to the completion provider. Phone
	// camera photos routinely exceed this; the model does not need them
	// at full resolution.
	NormalizeThresholdBytes = 4 * 1024 * 1024

	// NormalizeMaxDimension bounds the longest edge after downscaling.
	NormalizeMaxDimension = 2048

	// NormalizeJPEGQuality is the re-encode quality for downscaled uploads.
	NormalizeJPEGQuality = 85
)

// ImageNormalizer shrinks oversized uploads before they reach the
// completion provider.
type ImageNormalizer interface {
	// Normalize returns the attachment unchanged when it is already
	// small enough, or a downscaled JPEG re-encode otherwise.
	// Returns domain.EINVALID when an oversized payload cannot be
	// decoded as an image.
	Normalize(attachment *domain.ImageAttachment) (*domain.ImageAttachment, error)
}

// imagingNormalizer implements ImageNormalizer using the imaging library.
type imagingNormalizer struct{}

// NewImagingNormalizer creates the default image normalizer.
func NewImagingNormalizer() ImageNormalizer {
	return &imagingNormalizer{}
}

// Normalize downscales oversized uploads to fit within
// NormalizeMaxDimension on the longest edge, preserving aspect ratio,
// and re-encodes as JPEG.
func (n *imagingNormalizer) Normalize(attachment *domain.ImageAttachment) (*domain.ImageAttachment, error) {
	const op = "image.normalize"

	if attachment == nil || len(attachment.Data) <= NormalizeThresholdBytes {
		return attachment, nil
	}

	img, _, err := image.Decode(bytes.NewReader(attachment.Data))
	if err != nil {
		return nil, domain.Invalid(op, "image could not be decoded")
	}

	resized := imaging.Fit(img, NormalizeMaxDimension, NormalizeMaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(NormalizeJPEGQuality)); err != nil {
		return nil, domain.Internal(err, op, "failed to re-encode image")
	}

	return &domain.ImageAttachment{
		MIMEType: domain.DefaultImageMIMEType,
		Data:     buf.Bytes(),
	}, nil
}
