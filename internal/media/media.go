// Package media implements the §6 media association contract: persist a
// sighting's uploaded photo/video originals and produce thumbnail/web/preview
// variants synchronously, falling back to the original URL for all three
// variant fields when a file can't be processed (not an image, or a decode
// failure) rather than failing the whole attach call — the endpoint's job is
// to get the file stored, variants are best-effort.
//
// Grounded on pkg/infrastructure/storage/gcs.go's StorageAdapter (Write via
// cloud.google.com/go/storage, the teacher's one GCS call site, declared in
// go.mod but otherwise unused in this repository's domain until now). Variant
// resizing is stdlib nearest-neighbour sampling over image.Image: no image-processing
// library appears anywhere in the example pack, so this is one of the few
// ambient concerns this repository implements on the standard library alone.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"sync"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/ufobeep/beepnet/internal/model"
)

// Store persists one object and returns its public URL.
type Store interface {
	Write(ctx context.Context, objectPath string, data []byte, contentType string) (publicURL string, err error)
}

// GCSStore writes through to a single Cloud Storage bucket.
type GCSStore struct {
	Client *gcs.Client
	Bucket string
}

func (s *GCSStore) Write(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	w := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", objectPath, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, objectPath), nil
}

// MemStore is an in-memory Store fake for tests.
type MemStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{Objects: make(map[string][]byte)}
}

func (s *MemStore) Write(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Objects == nil {
		s.Objects = make(map[string][]byte)
	}
	s.Objects[objectPath] = data
	return "mem://" + objectPath, nil
}

// Upload is one multipart file from the media association request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// variantSpec is one derived image size, per §6's thumbnail/web/preview
// contract.
type variantSpec struct {
	field   string
	maxEdge int
}

var variantSpecs = []variantSpec{
	{field: "thumbnail", maxEdge: 200},
	{field: "web", maxEdge: 1600},
	{field: "preview", maxEdge: 800},
}

// Attach persists every upload's original bytes plus its derived variants
// (best-effort) and returns the resulting model.MediaFile rows in order.
func Attach(ctx context.Context, store Store, sightingID string, uploads []Upload) ([]model.MediaFile, error) {
	files := make([]model.MediaFile, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.NewString()
		kind := kindOf(u.ContentType)
		originalPath := fmt.Sprintf("sightings/%s/%s/original_%s", sightingID, id, u.Filename)
		originalURL, err := store.Write(ctx, originalPath, u.Data, u.ContentType)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", u.Filename, err)
		}

		file := model.MediaFile{
			ID: id, Kind: kind, Filename: u.Filename, URL: originalURL,
			ThumbnailURL: originalURL, WebURL: originalURL, PreviewURL: originalURL,
			SizeBytes: int64(len(u.Data)),
		}

		if variants, ok := generateVariants(u.ContentType, u.Data); ok {
			for _, spec := range variantSpecs {
				data, ok := variants[spec.field]
				if !ok {
					continue
				}
				path := fmt.Sprintf("sightings/%s/%s/%s_%s", sightingID, id, spec.field, u.Filename)
				url, err := store.Write(ctx, path, data, u.ContentType)
				if err != nil {
					// Variant write failure falls back to the original URL for
					// this field only, per §6's fallback contract.
					continue
				}
				switch spec.field {
				case "thumbnail":
					file.ThumbnailURL = url
				case "web":
					file.WebURL = url
				case "preview":
					file.PreviewURL = url
				}
			}
		}

		files = append(files, file)
	}
	return files, nil
}

func kindOf(contentType string) model.MediaKind {
	if len(contentType) >= 6 && contentType[:6] == "video/" {
		return model.MediaVideo
	}
	return model.MediaImage
}

// generateVariants decodes an image and produces a resized copy per
// variantSpec. Returns ok=false for anything that isn't a decodable still
// image (video, unsupported format, corrupt data) so the caller falls back to
// the original URL for every variant field.
func generateVariants(contentType string, data []byte) (map[string][]byte, bool) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}

	out := make(map[string][]byte, len(variantSpecs))
	for _, spec := range variantSpecs {
		resized := resizeToMaxEdge(src, spec.maxEdge)
		var buf bytes.Buffer
		if err := encode(&buf, resized, format); err != nil {
			continue
		}
		out[spec.field] = buf.Bytes()
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// resizeToMaxEdge nearest-neighbour samples src down so its longer edge is at most maxEdge
// pixels, preserving aspect ratio. Never upscales.
func resizeToMaxEdge(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	if longEdge <= maxEdge {
		return src
	}

	scale := float64(maxEdge) / float64(longEdge)
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		srcY := bounds.Min.Y + y*h/dstH
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + x*w/dstW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

func encode(buf *bytes.Buffer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(buf, img)
	case "gif":
		return gif.Encode(buf, img, nil)
	default:
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 85})
	}
}
