package images

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dreamframe/service/internal/generate"
	"github.com/dreamframe/service/internal/imagemeta"
	"github.com/dreamframe/service/internal/response"
)

// Default generation size when the caller gives no hint.
const (
	defaultGenWidth  = 1024
	defaultGenHeight = 1024
)

// Handler holds HTTP handlers for image generation, ingestion and listing.
type Handler struct {
	svc *Service
	gen generate.Generator
	log *zap.Logger
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service, gen generate.Generator, log *zap.Logger) *Handler {
	return &Handler{svc: svc, gen: gen, log: log}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Seed   *int64 `json:"seed,omitempty"`
}

type uploadRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Seed   *int64 `json:"seed,omitempty"`
}

// Generate godoc
//
//	@Summary		Generate and store an image
//	@Description	Generates an image from a prompt via the upstream provider, stores it, and returns the stored item.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			request	body		generateRequest	true	"generation parameters"
//	@Success		201		{object}	GeneratedItem
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		422		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/api/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		response.BadRequest(w, "prompt is required")
		return
	}
	if req.Width <= 0 {
		req.Width = defaultGenWidth
	}
	if req.Height <= 0 {
		req.Height = defaultGenHeight
	}

	payload, err := h.gen.Generate(r.Context(), generate.Request{
		Prompt: req.Prompt,
		Model:  req.Model,
		Width:  req.Width,
		Height: req.Height,
		Seed:   req.Seed,
	})
	if err != nil {
		h.log.Error("image generation failed", zap.Error(err))
		response.Error(w, http.StatusBadGateway, "image generation failed")
		return
	}

	item, err := h.svc.Ingest(r.Context(), IngestParams{
		PayloadB64: payload,
		Prompt:     req.Prompt,
		Model:      req.Model,
		Seed:       req.Seed,
		ReqWidth:   req.Width,
		ReqHeight:  req.Height,
		Origin:     requestOrigin(r),
	})
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, item)
}

// Upload godoc
//
//	@Summary		Store a caller-supplied image
//	@Description	Ingests a base64-encoded image payload with its generation metadata.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			request	body		uploadRequest	true	"image payload and metadata"
//	@Success		201		{object}	GeneratedItem
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		422		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/api/images [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Image == "" {
		response.BadRequest(w, "image is required")
		return
	}

	item, err := h.svc.Ingest(r.Context(), IngestParams{
		PayloadB64: req.Image,
		Prompt:     req.Prompt,
		Model:      req.Model,
		Seed:       req.Seed,
		ReqWidth:   req.Width,
		ReqHeight:  req.Height,
		Origin:     requestOrigin(r),
	})
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, item)
}

// Gallery godoc
//
//	@Summary		List stored images
//	@Description	Returns a page of stored images, newest first.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			limit	query		int	false	"page size (max 100)"
//	@Param			offset	query		int	false	"page offset"
//	@Success		200		{object}	GalleryPage
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/api/gallery [get]
func (h *Handler) Gallery(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.svc.ListGallery(r.Context(), limit, offset, requestOrigin(r))
	if err != nil {
		h.log.Error("gallery listing failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.JSON(w, http.StatusOK, page)
}

// Serve godoc
//
//	@Summary	Serve a stored image
//	@Tags		images
//	@Produce	png
//	@Param		key	path	string	true	"object key under images/"
//	@Success	200
//	@Failure	404
//	@Router		/images/{key} [get]
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := keyPrefix + chi.URLParam(r, "*")

	body, err := h.svc.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			h.log.Error("image fetch failed", zap.String("key", key), zap.Error(err))
			http.Error(w, "service unavailable", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
		return
	}
	defer body.Body.Close()

	w.Header().Set("Content-Type", body.ContentType)
	w.Header().Set("Cache-Control", cacheControl)
	if body.ETag != "" {
		w.Header().Set("ETag", body.ETag)
	}
	if _, err := io.Copy(w, body.Body); err != nil {
		h.log.Warn("image stream interrupted", zap.String("key", key), zap.Error(err))
	}
}

// writeIngestError maps the ingestion error taxonomy onto HTTP statuses:
// payload and format problems are the caller's, store failures are ours.
func (h *Handler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyPayload), errors.Is(err, ErrBadPayload):
		response.Unprocessable(w, err.Error())
	case errors.Is(err, imagemeta.ErrUnknownFormat):
		response.Unprocessable(w, err.Error())
	default:
		h.log.Error("image ingestion failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// requestOrigin reconstructs the scheme://host origin of the request,
// honoring the forwarded protocol set by a fronting proxy.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
