package images

import "errors"

// ErrEmptyPayload is returned when the image payload decodes to nothing.
var ErrEmptyPayload = errors.New("image payload is empty")

// ErrBadPayload is returned when the image payload is not valid base64.
var ErrBadPayload = errors.New("image payload is not valid base64")

// ErrStoreUnavailable wraps any object store failure surfaced to callers.
var ErrStoreUnavailable = errors.New("object store unavailable")
