package images

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// resolveURL returns a client-reachable URL for key. It never fails: a
// configured public base wins without touching the store, then a
// provider-signed URL, then the raw path under the request's own origin.
func (s *Service) resolveURL(ctx context.Context, key, origin string) string {
	if base := strings.TrimRight(s.publicBaseURL, "/"); base != "" {
		return base + "/" + key
	}

	signed, err := s.store.SignedURL(ctx, key, s.signedURLTTL)
	if err == nil {
		return signed
	}
	s.log.Warn("signed URL unavailable, falling back to request origin",
		zap.String("key", key),
		zap.Error(err))

	return strings.TrimRight(origin, "/") + "/" + key
}
