package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dreamframe/service/internal/config"
	"github.com/dreamframe/service/internal/imagemeta"
	"github.com/dreamframe/service/internal/storage"
)

// pngBytes builds the 24 leading bytes of a PNG with the given dimensions.
func pngBytes(width, height uint32) []byte {
	buf := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	buf = binary.BigEndian.AppendUint32(buf, width)
	buf = binary.BigEndian.AppendUint32(buf, height)
	return buf
}

func pngBase64(width, height uint32) string {
	return base64.StdEncoding.EncodeToString(pngBytes(width, height))
}

type storedObject struct {
	data     []byte
	opts     storage.PutOptions
	uploaded time.Time
}

// fakeStore is an in-memory Storage for tests. Uploads get monotonically
// increasing timestamps in insertion order.
type fakeStore struct {
	objects map[string]*storedObject
	order   []string
	clock   time.Time

	putErr  error
	listErr error
	getErr  error
	signErr error

	signCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string]*storedObject{},
		clock:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, opts storage.PutOptions) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.clock = f.clock.Add(time.Minute)
	f.objects[key] = &storedObject{data: data, opts: opts, uploaded: f.clock}
	f.order = append(f.order, key)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (*storage.ObjectBody, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.ObjectBody{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.opts.ContentType,
		ETag:        fmt.Sprintf("etag-%d", len(obj.data)),
	}, nil
}

func (f *fakeStore) List(_ context.Context, prefix string, limit int) ([]storage.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []storage.Object{}
	for _, key := range f.order {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		obj := f.objects[key]
		out = append(out, storage.Object{
			Key:      key,
			Size:     int64(len(obj.data)),
			Uploaded: obj.uploaded,
			Metadata: obj.opts.Metadata,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.signCalls++
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example.com/" + key + "?sig=abc", nil
}

func newTestService(store storage.Storage, publicBase string) *Service {
	svc := NewService(store, &config.Config{
		PublicBaseURL: publicBase,
		SignedURLTTL:  24 * time.Hour,
	}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "0a1b2c3d-0000-0000-0000-000000000000" }
	return svc
}

func TestIngestPNG(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")
	seed := int64(42)

	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(1024, 768),
		Prompt:     "A cyberpunk city at night",
		Model:      "dall-e-3",
		Seed:       &seed,
		ReqWidth:   1024,
		ReqHeight:  768,
		Origin:     "http://localhost:8080",
	})
	require.NoError(t, err)

	assert.Equal(t, "images/a-cyberpunk-city-0a1b2c3d.png", item.Key)
	assert.Equal(t, imagemeta.MIMEPNG, item.MIME)
	assert.Equal(t, 1024, item.Width)
	assert.Equal(t, 768, item.Height)
	assert.Equal(t, "https://signed.example.com/"+item.Key+"?sig=abc", item.URL)
	assert.Equal(t, "A cyberpunk city at night", item.Meta.Prompt)
	assert.Equal(t, "dall-e-3", item.Meta.Model)
	require.NotNil(t, item.Meta.Seed)
	assert.Equal(t, seed, *item.Meta.Seed)
	assert.Equal(t, "2025-06-01T12:00:00Z", item.Meta.CreatedAt)

	obj := store.objects[item.Key]
	require.NotNil(t, obj)
	assert.Equal(t, pngBytes(1024, 768), obj.data)
	assert.Equal(t, imagemeta.MIMEPNG, obj.opts.ContentType)
	assert.Equal(t, "public, max-age=31536000", obj.opts.CacheControl)
	assert.Equal(t, map[string]string{
		"prompt":  "A cyberpunk city at night",
		"model":   "dall-e-3",
		"seed":    "42",
		"created": "2025-06-01T12:00:00Z",
		"width":   "1024",
		"height":  "768",
	}, obj.opts.Metadata)
}

func TestIngestDataURLPrefix(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")

	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: "data:image/png;base64," + pngBase64(64, 64),
		Prompt:     "tiny square",
	})
	require.NoError(t, err)
	assert.Equal(t, 64, item.Width)
	assert.Equal(t, 64, item.Height)
}

func TestIngestDimensionDriftDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(store, &config.Config{SignedURLTTL: 24 * time.Hour}, zap.New(core))
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "0a1b2c3d-0000-0000-0000-000000000000" }

	// Sniffed 512x512 against a 1024x1024 hint: warn, but store anyway with
	// the sniffed dimensions.
	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(512, 512),
		Prompt:     "drifting dimensions",
		ReqWidth:   1024,
		ReqHeight:  1024,
	})
	require.NoError(t, err)
	assert.Equal(t, 512, item.Width)
	assert.Equal(t, 512, item.Height)

	obj := store.objects[item.Key]
	require.NotNil(t, obj)
	assert.Equal(t, "512", obj.opts.Metadata["width"])
	assert.Equal(t, "512", obj.opts.Metadata["height"])
	assert.Len(t, logs.FilterMessage("generated dimensions drift from request").All(), 1)
}

func TestIngestDriftWithinTolerance(t *testing.T) {
	store := newFakeStore()
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(store, &config.Config{SignedURLTTL: 24 * time.Hour}, zap.New(core))
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "0a1b2c3d-0000-0000-0000-000000000000" }

	// A 64-pixel difference per axis sits exactly on the tolerance boundary.
	_, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(512, 512),
		Prompt:     "close enough",
		ReqWidth:   576,
		ReqHeight:  448,
	})
	require.NoError(t, err)
	assert.Empty(t, logs.FilterMessage("generated dimensions drift from request").All())
}

func TestIngestPromptTruncatedInMetadata(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")
	long := strings.Repeat("a very long prompt ", 40) // 760 chars

	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(8, 8),
		Prompt:     long,
	})
	require.NoError(t, err)

	obj := store.objects[item.Key]
	assert.Len(t, obj.opts.Metadata["prompt"], 500)
	assert.Len(t, item.Meta.Prompt, 500)
}

func TestIngestPromptTruncationKeepsRunesWhole(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")
	// A two-byte rune straddles the 500-byte cut.
	prompt := strings.Repeat("a", 499) + "é" + strings.Repeat("b", 20)

	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(8, 8),
		Prompt:     prompt,
	})
	require.NoError(t, err)

	stored := store.objects[item.Key].opts.Metadata["prompt"]
	assert.True(t, utf8.ValidString(stored))
	assert.Len(t, stored, 499)
}

func TestIngestSeedAbsent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")

	item, err := svc.Ingest(context.Background(), IngestParams{
		PayloadB64: pngBase64(8, 8),
		Prompt:     "no seed",
	})
	require.NoError(t, err)
	assert.Nil(t, item.Meta.Seed)
	assert.Equal(t, "", store.objects[item.Key].opts.Metadata["seed"])
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc := newTestService(newFakeStore(), "")

	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "empty", payload: "", wantErr: ErrEmptyPayload},
		{name: "whitespace", payload: "   ", wantErr: ErrEmptyPayload},
		{name: "not base64", payload: "!!!not-base64!!!", wantErr: ErrBadPayload},
		{
			name:    "unrecognized format",
			payload: base64.StdEncoding.EncodeToString([]byte("plain text, not an image")),
			wantErr: imagemeta.ErrUnknownFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), IngestParams{PayloadB64: tt.payload, Prompt: "x"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIngestStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("connection refused")
	svc := newTestService(store, "")

	_, err := svc.Ingest(context.Background(), IngestParams{PayloadB64: pngBase64(8, 8), Prompt: "x"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func seedGallery(t *testing.T, store *fakeStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("images/test-%08d.png", i)
		err := store.Put(context.Background(), key, pngBytes(8, 8), storage.PutOptions{
			ContentType: imagemeta.MIMEPNG,
			Metadata:    map[string]string{"prompt": fmt.Sprintf("prompt %d", i)},
		})
		require.NoError(t, err)
	}
}

func TestListGalleryNewestFirst(t *testing.T) {
	store := newFakeStore()
	seedGallery(t, store, 5)
	svc := newTestService(store, "https://cdn.example.com")

	page, err := svc.ListGallery(context.Background(), 3, 0, "http://localhost:8080")
	require.NoError(t, err)

	assert.Equal(t, 3, page.Limit)
	assert.Equal(t, 0, page.Offset)
	require.Len(t, page.Images, 3)
	assert.Equal(t, "images/test-00000004.png", page.Images[0].Key)
	assert.Equal(t, "images/test-00000003.png", page.Images[1].Key)
	assert.Equal(t, "images/test-00000002.png", page.Images[2].Key)
	assert.Equal(t, "https://cdn.example.com/images/test-00000004.png", page.Images[0].URL)
	assert.Equal(t, map[string]string{"prompt": "prompt 4"}, page.Images[0].Metadata)
	assert.True(t, page.Images[0].Uploaded.After(page.Images[2].Uploaded))
}

func TestListGalleryOffset(t *testing.T) {
	store := newFakeStore()
	seedGallery(t, store, 5)
	svc := newTestService(store, "")

	tests := []struct {
		limit, offset, want int
	}{
		{limit: 2, offset: 0, want: 2},
		{limit: 2, offset: 4, want: 1},
		{limit: 2, offset: 5, want: 0},
		{limit: 2, offset: 50, want: 0},
		{limit: 10, offset: 0, want: 5},
	}
	for _, tt := range tests {
		page, err := svc.ListGallery(context.Background(), tt.limit, tt.offset, "http://localhost:8080")
		require.NoError(t, err)
		assert.Len(t, page.Images, tt.want, "limit=%d offset=%d", tt.limit, tt.offset)
	}
}

func TestListGalleryClampsBounds(t *testing.T) {
	store := newFakeStore()
	seedGallery(t, store, 2)
	svc := newTestService(store, "")

	page, err := svc.ListGallery(context.Background(), 0, -3, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = svc.ListGallery(context.Background(), 10_000, 0, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
}

func TestListGalleryStable(t *testing.T) {
	store := newFakeStore()
	seedGallery(t, store, 8)
	svc := newTestService(store, "https://cdn.example.com")

	first, err := svc.ListGallery(context.Background(), 5, 1, "http://localhost:8080")
	require.NoError(t, err)
	second, err := svc.ListGallery(context.Background(), 5, 1, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListGalleryStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("timeout")
	svc := newTestService(store, "")

	_, err := svc.ListGallery(context.Background(), 10, 0, "http://localhost:8080")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFetch(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, "")

	item, err := svc.Ingest(context.Background(), IngestParams{PayloadB64: pngBase64(8, 8), Prompt: "x"})
	require.NoError(t, err)

	body, err := svc.Fetch(context.Background(), item.Key)
	require.NoError(t, err)
	defer body.Body.Close()

	data, err := io.ReadAll(body.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(8, 8), data)
	assert.Equal(t, imagemeta.MIMEPNG, body.ContentType)
}

func TestFetchNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), "")

	_, err := svc.Fetch(context.Background(), "images/missing.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFetchStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("timeout")
	svc := newTestService(store, "")

	_, err := svc.Fetch(context.Background(), "images/any.png")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
