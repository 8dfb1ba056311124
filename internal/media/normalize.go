package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// Static errors for image normalization.
var (
	// ErrInvalidDimensions is returned when the target dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrUnsupportedImageType is returned for still images other than JPEG or PNG.
	ErrUnsupportedImageType = errors.New("unsupported image type")
	// ErrImageDecode matches every ImageDecodeError.
	ErrImageDecode = errors.New("image decode failed")
	// ErrEncode matches every EncodeError.
	ErrEncode = errors.New("image encode failed")
	// ErrImageTooLarge is reported when declared dimensions exceed the pixel budget.
	ErrImageTooLarge = errors.New("image exceeds pixel budget")
	// errEmptyImage is reported when a decoded image has no pixels.
	errEmptyImage = errors.New("image has zero size")
)

// ImageDecodeError is returned when the source image cannot be decoded.
type ImageDecodeError struct {
	Name string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Name, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Is reports ErrImageDecode as a match.
func (e *ImageDecodeError) Is(target error) bool { return target == ErrImageDecode }

// EncodeError is returned when the normalized raster cannot be encoded.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode image %q: %v", e.Name, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Is reports ErrEncode as a match.
func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// DefaultMaxPixels bounds the declared size of a source image (100 megapixels).
const DefaultMaxPixels int64 = 100_000_000

// ImageNormalizer implements Normalizer in pure Go.
type ImageNormalizer struct {
	jpegQuality int
	maxPixels   int64
	scaler      draw.Scaler
}

// NormalizerOption configures an ImageNormalizer.
type NormalizerOption func(*ImageNormalizer)

// WithJPEGQuality sets the quality used when re-encoding JPEG images (1-100).
func WithJPEGQuality(q int) NormalizerOption {
	return func(n *ImageNormalizer) {
		if q >= 1 && q <= 100 {
			n.jpegQuality = q
		}
	}
}

// WithMaxPixels bounds width*height of accepted source images.
// Non-positive values keep DefaultMaxPixels.
func WithMaxPixels(n int64) NormalizerOption {
	return func(in *ImageNormalizer) {
		if n > 0 {
			in.maxPixels = n
		}
	}
}

// WithScaler replaces the resampling kernel. Defaults to CatmullRom.
func WithScaler(s draw.Scaler) NormalizerOption {
	return func(n *ImageNormalizer) {
		if s != nil {
			n.scaler = s
		}
	}
}

// NewImageNormalizer creates a new ImageNormalizer.
func NewImageNormalizer(opts ...NormalizerOption) *ImageNormalizer {
	n := &ImageNormalizer{
		jpegQuality: 92,
		maxPixels:   DefaultMaxPixels,
		scaler:      draw.CatmullRom,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize crops src to the w:h aspect ratio around its center and scales
// the crop to fill exactly w x h. The result keeps the source name and MIME type.
func (n *ImageNormalizer) Normalize(ctx context.Context, src Asset, w, h int) (Asset, error) {
	if w <= 0 || h <= 0 {
		return Asset{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}
	if err := ctx.Err(); err != nil {
		return Asset{}, fmt.Errorf("normalize cancelled: %w", err)
	}

	var (
		decodeConfig func(io.Reader) (image.Config, error)
		decode       func(io.Reader) (image.Image, error)
	)
	switch src.MIMEType {
	case MIMEJPEG:
		decodeConfig, decode = jpeg.DecodeConfig, jpeg.Decode
	case MIMEPNG:
		decodeConfig, decode = png.DecodeConfig, png.Decode
	default:
		return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedImageType, src.MIMEType)
	}

	// The header is checked first: decoders allocate the declared raster up front.
	header, err := decodeConfig(bytes.NewReader(src.Data))
	if err != nil {
		return Asset{}, &ImageDecodeError{Name: src.Name, Err: err}
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > n.maxPixels {
		return Asset{}, &ImageDecodeError{
			Name: src.Name,
			Err:  fmt.Errorf("%w: %dx%d", ErrImageTooLarge, header.Width, header.Height),
		}
	}

	img, err := decode(bytes.NewReader(src.Data))
	if err != nil {
		return Asset{}, &ImageDecodeError{Name: src.Name, Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Asset{}, &ImageDecodeError{Name: src.Name, Err: errEmptyImage}
	}

	crop := CenterCrop(b.Dx(), b.Dy(), w, h).Add(b.Min)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	n.scaler.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	var buf bytes.Buffer
	switch src.MIMEType {
	case MIMEJPEG:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.jpegQuality})
	case MIMEPNG:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return Asset{}, &EncodeError{Name: src.Name, Err: err}
	}

	return Asset{
		Name:     src.Name,
		MIMEType: src.MIMEType,
		Data:     buf.Bytes(),
	}, nil
}

// CenterCrop returns the largest rectangle inside a srcW x srcH image,
// centered, whose aspect ratio matches dstW:dstH.
// Sources wider than the target keep their full height and lose columns
// on both sides; all others keep their full width and lose rows.
func CenterCrop(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}

	srcAspect := float64(srcW) / float64(srcH)
	targetAspect := float64(dstW) / float64(dstH)

	if srcAspect > targetAspect {
		cropW := clampInt(int(math.Round(float64(srcH)*targetAspect)), 1, srcW)
		x := (srcW - cropW) / 2
		return image.Rect(x, 0, x+cropW, srcH)
	}

	cropH := clampInt(int(math.Round(float64(srcW)/targetAspect)), 1, srcH)
	y := (srcH - cropH) / 2
	return image.Rect(0, y, srcW, y+cropH)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Verify interface implementation at compile time.
var _ Normalizer = (*ImageNormalizer)(nil)
