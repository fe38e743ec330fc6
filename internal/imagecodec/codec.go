// Package imagecodec converts between the base64 text used on the wire and the
// canonical PNG bytes submitted to the image-generation service.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"pandarelay/internal/domain"
)

// ErrEmptyImage is returned when no image bytes were supplied.
var ErrEmptyImage = errors.New("imagecodec: empty image")

// StripDataURL removes a "data:<mime>;base64," prefix and surrounding whitespace.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return strings.TrimSpace(s)
}

// DecodeBase64 decodes standard base64 text, tolerating a data URL prefix and
// embedded line breaks.
func DecodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, StripDataURL(s))
	if cleaned == "" {
		return nil, invalidImage(ErrEmptyImage)
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Some clients drop the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, invalidImage(fmt.Errorf("base64 decode: %w", err))
	}
	return data, nil
}

// EncodeBase64 is the inverse of DecodeBase64 without any prefix.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reads any supported still-image format, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, invalidImage(ErrEmptyImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, invalidImage(fmt.Errorf("decode image: %w", err))
	}
	return img, nil
}

// withAlpha reports itself as non-opaque so image/png always writes colour
// type 6 (RGBA), even when every pixel is opaque.
type withAlpha struct {
	*image.NRGBA
}

func (withAlpha) Opaque() bool { return false }

// Normalize converts data into a non-premultiplied RGBA image and re-encodes it
// as an RGBA PNG.
func Normalize(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	nrgba := withAlpha{NRGBA: imaging.Clone(img)}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, nrgba, imaging.PNG); err != nil {
		return nil, domain.NewError(domain.KindInternal, "Failed to encode image", fmt.Errorf("imagecodec: encode png: %w", err))
	}
	return buf.Bytes(), nil
}

func invalidImage(err error) error {
	return domain.NewError(domain.KindData, "Invalid image data: "+domain.Cause(err), err)
}
