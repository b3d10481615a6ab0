package extraction

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
)

// Image is one uploaded photograph of an inspection report
type Image struct {
	MediaType string
	Data      []byte
}

var mediaAliases = map[string]string{
	"image/jpeg":  MediaTypeJPEG,
	"image/jpg":   MediaTypeJPEG,
	"image/pjpeg": MediaTypeJPEG,
	"image/png":   MediaTypePNG,
	"image/x-png": MediaTypePNG,
}

// CanonicalMediaType maps a declared media type onto a supported one.
// Parameters are dropped; ok is false for anything but JPEG and PNG.
func CanonicalMediaType(declared string) (string, bool) {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil {
		return "", false
	}
	canon, ok := mediaAliases[strings.ToLower(mt)]
	return canon, ok
}

// DetectMediaType picks the declared type unless it is missing or generic,
// in which case the content is sniffed.
func DetectMediaType(declared string, data []byte) string {
	d := strings.TrimSpace(declared)
	if d != "" && !strings.HasPrefix(strings.ToLower(d), "application/octet-stream") {
		return d
	}
	if len(data) == 0 {
		return d
	}
	return http.DetectContentType(data)
}

// Validate checks the image before any network use. The returned image
// carries the canonical media type.
func Validate(img Image, maxBytes int) (Image, error) {
	canon, ok := CanonicalMediaType(img.MediaType)
	if !ok {
		return Image{}, fmt.Errorf("%w (got %q)", ErrUnsupportedMediaType, img.MediaType)
	}
	if len(img.Data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrUnsupportedMediaType)
	}
	if maxBytes > 0 && len(img.Data) > maxBytes {
		return Image{}, fmt.Errorf("%w: image is %d bytes, limit is %d", ErrUnsupportedMediaType, len(img.Data), maxBytes)
	}
	return Image{MediaType: canon, Data: img.Data}, nil
}

// DataURI encodes the image as data:<mediaType>;base64,<bytes>
func DataURI(img Image) string {
	return "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
