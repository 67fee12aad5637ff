package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamframe/service/internal/config"
	"github.com/dreamframe/service/internal/imagemeta"
	"github.com/dreamframe/service/internal/storage"
)

const (
	// maxPromptMeta caps the prompt length recorded in object metadata.
	maxPromptMeta = 500
	// driftTolerance is the per-axis pixel difference between requested and
	// sniffed dimensions before a drift warning is logged.
	driftTolerance = 64
	// listBatch is the single fetch issued per gallery listing. Offset
	// pagination is emulated inside this batch; objects beyond it are not
	// reachable through the gallery.
	listBatch = 1000

	cacheControl = "public, max-age=31536000"

	// DefaultLimit and MaxLimit bound the gallery page size.
	DefaultLimit = 50
	MaxLimit     = 100
)

// Service contains the business logic for storing, listing and serving
// generated images. It holds no state of its own; the object store is the
// sole source of truth.
type Service struct {
	store storage.Storage
	log   *zap.Logger

	publicBaseURL string
	signedURLTTL  time.Duration

	// injected for deterministic tests
	now   func() time.Time
	newID func() string
}

// NewService creates a new image Service.
func NewService(store storage.Storage, cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		store:         store,
		log:           log,
		publicBaseURL: cfg.PublicBaseURL,
		signedURLTTL:  cfg.SignedURLTTL,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// IngestParams describes one generated image to persist. Width and height are
// the caller's generation hints; the sniffed values are authoritative.
type IngestParams struct {
	PayloadB64 string
	Prompt     string
	Model      string
	Seed       *int64
	ReqWidth   int
	ReqHeight  int
	Origin     string
}

// Ingest decodes the payload, sniffs its format, derives a storage key,
// writes bytes plus metadata to the store and returns the stored item with
// a resolved access URL.
func (s *Service) Ingest(ctx context.Context, p IngestParams) (*GeneratedItem, error) {
	if strings.TrimSpace(p.PayloadB64) == "" {
		return nil, ErrEmptyPayload
	}
	data, err := decodePayload(p.PayloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	info, err := imagemeta.Sniff(data)
	if err != nil {
		return nil, err
	}

	if drifted(info.Width, p.ReqWidth) || drifted(info.Height, p.ReqHeight) {
		s.log.Warn("generated dimensions drift from request",
			zap.Int("width", info.Width),
			zap.Int("height", info.Height),
			zap.Int("requestedWidth", p.ReqWidth),
			zap.Int("requestedHeight", p.ReqHeight))
	}

	key := s.deriveKey(p.Prompt, info.Ext())
	createdAt := s.now().UTC().Format(time.RFC3339)
	prompt := truncate(p.Prompt, maxPromptMeta)

	err = s.store.Put(ctx, key, data, storage.PutOptions{
		ContentType:  info.MIME,
		CacheControl: cacheControl,
		Metadata: map[string]string{
			"prompt":  prompt,
			"model":   p.Model,
			"seed":    seedString(p.Seed),
			"created": createdAt,
			"width":   strconv.Itoa(info.Width),
			"height":  strconv.Itoa(info.Height),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.log.Info("image stored",
		zap.String("key", key),
		zap.String("mime", info.MIME),
		zap.Int("size", len(data)))

	return &GeneratedItem{
		URL:    s.resolveURL(ctx, key, p.Origin),
		Key:    key,
		MIME:   info.MIME,
		Width:  info.Width,
		Height: info.Height,
		Meta: ItemMeta{
			Prompt:    prompt,
			Model:     p.Model,
			Seed:      p.Seed,
			CreatedAt: createdAt,
		},
	}, nil
}

// ListGallery returns one page of stored images, newest first. Offsets are
// resolved within a single store fetch of listBatch objects.
func (s *Service) ListGallery(ctx context.Context, limit, offset int, origin string) (*GalleryPage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	objects, err := s.store.List(ctx, keyPrefix, listBatch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Newest first; ties keep the store's listing order since upload
	// timestamps are not guaranteed unique at sub-second precision.
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Uploaded.After(objects[j].Uploaded)
	})

	page := &GalleryPage{Images: []GalleryImage{}, Limit: limit, Offset: offset}
	if offset >= len(objects) {
		return page, nil
	}
	end := offset + limit
	if end > len(objects) {
		end = len(objects)
	}

	for _, obj := range objects[offset:end] {
		page.Images = append(page.Images, GalleryImage{
			Key:      obj.Key,
			URL:      s.resolveURL(ctx, obj.Key, origin),
			Size:     obj.Size,
			Uploaded: obj.Uploaded,
			Metadata: obj.Metadata,
		})
	}
	return page, nil
}

// Fetch opens the stored object for key. It returns storage.ErrNotFound for
// a missing key and wraps every other failure as ErrStoreUnavailable.
func (s *Service) Fetch(ctx context.Context, key string) (*storage.ObjectBody, error) {
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return body, nil
}

// decodePayload decodes a base64 image payload, tolerating a data-URL prefix
// and missing padding.
func decodePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(payload)
	}
	return data, nil
}

func drifted(actual, requested int) bool {
	if requested <= 0 {
		return false
	}
	d := actual - requested
	if d < 0 {
		d = -d
	}
	return d > driftTolerance
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func seedString(seed *int64) string {
	if seed == nil {
		return ""
	}
	return strconv.FormatInt(*seed, 10)
}
