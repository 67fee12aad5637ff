// Package imagemeta infers image format and pixel dimensions by inspecting
// header bytes. It never decodes pixel data and never reads past the input.
package imagemeta

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrUnknownFormat is returned when the bytes match no supported format.
var ErrUnknownFormat = errors.New("unrecognized image format")

// MIME types this package can detect.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// Info describes a sniffed image.
type Info struct {
	MIME   string
	Width  int
	Height int
}

// Ext returns the canonical file extension for the detected MIME type.
func (i Info) Ext() string {
	if i.MIME == MIMEPNG {
		return "png"
	}
	return "jpg"
}

// Sniff inspects data and returns the detected MIME type and dimensions.
// Only PNG and JPEG are recognized; anything else yields ErrUnknownFormat.
func Sniff(data []byte) (Info, error) {
	if len(data) < 10 {
		return Info{}, ErrUnknownFormat
	}

	if bytes.HasPrefix(data, pngSignature) {
		// IHDR is mandatory and first, so width and height sit at fixed
		// offsets: signature (8) + chunk length (4) + chunk type (4).
		if len(data) < 24 {
			return Info{}, ErrUnknownFormat
		}
		return Info{
			MIME:   MIMEPNG,
			Width:  int(binary.BigEndian.Uint32(data[16:20])),
			Height: int(binary.BigEndian.Uint32(data[20:24])),
		}, nil
	}

	if data[0] == 0xFF && data[1] == 0xD8 {
		return sniffJPEG(data)
	}

	return Info{}, ErrUnknownFormat
}

// sniffJPEG walks the marker segments after the SOI marker until it finds a
// start-of-frame segment carrying the frame dimensions.
func sniffJPEG(data []byte) (Info, error) {
	off := 2
	for off+9 < len(data) {
		if data[off] != 0xFF {
			break
		}
		marker := data[off+1]
		if isSOF(marker) {
			return Info{
				MIME:   MIMEJPEG,
				Height: int(binary.BigEndian.Uint16(data[off+5 : off+7])),
				Width:  int(binary.BigEndian.Uint16(data[off+7 : off+9])),
			}, nil
		}
		segLen := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		if segLen < 2 {
			// The length field counts itself, so anything below 2 is corrupt.
			break
		}
		off += 2 + segLen
	}
	return Info{}, ErrUnknownFormat
}

// isSOF reports whether marker is a start-of-frame code. 0xC4 (DHT), 0xC8
// (JPG extension) and 0xCC (DAC) share the 0xC0 range but carry no dimensions.
func isSOF(marker byte) bool {
	return marker >= 0xC0 && marker <= 0xCF &&
		marker != 0xC4 && marker != 0xC8 && marker != 0xCC
}
