package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
	"google.golang.org/api/option"
)

const defaultCacheControl = "public, max-age=31536000, immutable"

var (
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("storage: upload exceeds size limit")
	// ErrUnsupportedType is returned when the upload is not an accepted image type.
	ErrUnsupportedType = errors.New("storage: content type not allowed")
	// ErrEmpty is returned for zero-byte uploads.
	ErrEmpty = errors.New("storage: empty upload")

	errInvalidBucket = errors.New("storage: bucket name is required")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectWriter stores an object and returns once it is durable.
type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, name, contentType, cacheControl string, data io.Reader) error
}

// Upload describes an image submitted from the admin editor.
type Upload struct {
	SectionKey string
	Field      string
	Filename   string
	Body       io.Reader
}

// Result is the stored object and its public URL.
type Result struct {
	Object      string
	URL         string
	ContentType string
	Size        int64
}

// Uploader validates images and writes them to the images bucket.
type Uploader struct {
	writer  ObjectWriter
	bucket  string
	baseURL string
	maxSize int64
	now     func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// Option customises the uploader.
type Option func(*Uploader)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(u *Uploader) {
		if clock != nil {
			u.now = clock
		}
	}
}

// WithEntropy overrides the ulid entropy source.
func WithEntropy(r io.Reader) Option {
	return func(u *Uploader) {
		if r != nil {
			u.entropy = r
		}
	}
}

// NewUploader constructs an uploader writing through writer.
func NewUploader(writer ObjectWriter, bucket, publicBaseURL string, maxSize int64, opts ...Option) (*Uploader, error) {
	if writer == nil {
		return nil, errors.New("storage: object writer is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errInvalidBucket
	}
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	u := &Uploader{
		writer:  writer,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize: maxSize,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// MaxSize returns the per-upload byte limit.
func (u *Uploader) MaxSize() int64 {
	return u.maxSize
}

// Upload stores the image and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, upload Upload) (Result, error) {
	if upload.Body == nil {
		return Result{}, ErrEmpty
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, u.maxSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("storage: read upload: %w", err)
	}
	if len(data) == 0 {
		return Result{}, ErrEmpty
	}
	if int64(len(data)) > u.maxSize {
		return Result{}, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	name := u.objectName(upload, ext)
	if err := u.writer.WriteObject(ctx, u.bucket, name, contentType, defaultCacheControl, bytes.NewReader(data)); err != nil {
		return Result{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	return Result{
		Object:      name,
		URL:         u.baseURL + "/" + name,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (u *Uploader) objectName(upload Upload, ext string) string {
	u.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(u.now()), u.entropy)
	u.mu.Unlock()
	return path.Join("sections", segment(upload.SectionKey), segment(upload.Field), strings.ToLower(id.String())+ext)
}

func segment(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "misc"
	}
	return b.String()
}

// GCSWriter writes objects to Cloud Storage.
type GCSWriter struct {
	client *storage.Client
}

// NewGCSWriter dials Cloud Storage.
func NewGCSWriter(ctx context.Context, opts ...option.ClientOption) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: new client: %w", err)
	}
	return &GCSWriter{client: client}, nil
}

// WriteObject implements ObjectWriter.
func (g *GCSWriter) WriteObject(ctx context.Context, bucket, name, contentType, cacheControl string, data io.Reader) error {
	w := g.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close releases the underlying client.
func (g *GCSWriter) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
