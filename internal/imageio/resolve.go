// Package imageio resolves image references from chat requests into decoded
// images and prepares them as pixel tensors.
package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"

	"vlmd/internal/common/fsutil"
)

// DefaultMaxBytes caps a single image payload.
const DefaultMaxBytes = 20 << 20

// ErrTooLarge is returned when an image exceeds the configured limit.
var ErrTooLarge = errors.New("image exceeds size limit")

// Resolver loads images from data: URIs, local paths, file://, http(s)://,
// s3:// and gs:// references.
type Resolver struct {
	fs       afs.Service
	maxBytes int64
}

// NewResolver returns a Resolver. maxBytes <= 0 uses DefaultMaxBytes.
func NewResolver(maxBytes int64) *Resolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Resolver{fs: afs.New(), maxBytes: maxBytes}
}

// Resolve fetches and decodes the image referenced by ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	b, err := r.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Fetch returns the raw bytes referenced by ref.
func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty image reference")
	}
	if strings.HasPrefix(ref, "data:") {
		return r.decodeDataURL(ref)
	}
	u, err := r.normalize(ref)
	if err != nil {
		return nil, err
	}
	rc, err := r.fs.OpenURL(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if int64(len(b)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	return b, nil
}

func (r *Resolver) normalize(ref string) (string, error) {
	if strings.Contains(ref, "://") {
		pu, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parse image url: %w", err)
		}
		switch pu.Scheme {
		case "http", "https", "file", "s3", "gs":
			return ref, nil
		}
		return "", fmt.Errorf("unsupported image url scheme %q", pu.Scheme)
	}
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// decodeDataURL handles data:[<mime>][;base64],<payload>.
func (r *Resolver) decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		b, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("data url: %w", err)
		}
		return r.limit([]byte(b))
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > r.maxBytes+3 {
		return nil, ErrTooLarge
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some clients strip padding
		if b2, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err2 == nil {
			return r.limit(b2)
		}
		return nil, fmt.Errorf("data url: %w", err)
	}
	return r.limit(b)
}

func (r *Resolver) limit(b []byte) ([]byte, error) {
	if int64(len(b)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	return b, nil
}
