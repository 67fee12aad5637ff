// Package images implements the image ingestion pipeline and gallery listing
// on top of the object store: format sniffing, key derivation, metadata
// capture and access-URL resolution.
package images

import "time"

// ItemMeta mirrors the descriptive metadata recorded at store time.
type ItemMeta struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	Seed      *int64 `json:"seed,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// GeneratedItem is the result of ingesting one generated image.
type GeneratedItem struct {
	URL    string   `json:"url"`
	Key    string   `json:"key"`
	MIME   string   `json:"mime"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Meta   ItemMeta `json:"meta"`
}

// GalleryImage is one stored image as returned by a gallery listing.
// Metadata is passed through exactly as stored.
type GalleryImage struct {
	Key      string            `json:"key"`
	URL      string            `json:"url"`
	Size     int64             `json:"size"`
	Uploaded time.Time         `json:"uploaded"`
	Metadata map[string]string `json:"metadata"`
}

// GalleryPage is one page of the gallery, newest first.
type GalleryPage struct {
	Images []GalleryImage `json:"images"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
