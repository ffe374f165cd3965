package service

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/rs/zerolog"
)

// AttachmentResolver turns an opaque attachment key into a download URL.
// *storage.S3Client implements it.
type AttachmentResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// resolveAttachmentURLs fills URL on each attachment; failures leave the URL empty
func resolveAttachmentURLs(ctx context.Context, resolver AttachmentResolver, resp *domain.MessageResponse, logger zerolog.Logger) {
	if resolver == nil || resp == nil {
		return
	}
	for i := range resp.Attachments {
		key := resp.Attachments[i].Key
		if key == "" {
			continue
		}
		url, err := resolver.ResolveURL(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Uint64("message_id", resp.ID).Msg("attachment url resolve failed")
			continue
		}
		resp.Attachments[i].URL = url
	}
}
