package service

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/rs/zerolog"
)

// UnreadService computes per-tab unread counts for a viewer
type UnreadService struct {
	inboxRepo *repository.InboxRepository
	cache     cache.Service
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewUnreadService creates a new UnreadService; cacheSvc may be nil
func NewUnreadService(inboxRepo *repository.InboxRepository, cacheSvc cache.Service, ttl time.Duration, logger zerolog.Logger) *UnreadService {
	if cacheSvc == nil {
		cacheSvc = cache.NewService(nil)
	}
	return &UnreadService{inboxRepo: inboxRepo, cache: cacheSvc, ttl: ttl, logger: logger}
}

// Counts returns unread conversations per tab. Every unread conversation is
// classified exactly once, so the tabs sum to Total.
// Results are cached under the generation read before the query, so an
// invalidation that lands while counting leaves the stored value unreachable.
func (s *UnreadService) Counts(ctx context.Context, viewer domain.Viewer) (domain.TabCounts, error) {
	var counts domain.TabCounts
	gen, err := s.cache.UnreadGeneration(ctx, viewer.ID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", viewer.ID).Msg("unread generation lookup failed")
	}
	if cacheable {
		if err := s.cache.GetUnreadCounts(ctx, viewer.ID, gen, &counts); err == nil {
			inboxUnreadCacheHits.WithLabelValues("hit").Inc()
			return counts, nil
		}
	}
	inboxUnreadCacheHits.WithLabelValues("miss").Inc()

	snapshots, err := s.inboxRepo.UnreadSnapshots(ctx, viewer.ID)
	if err != nil {
		return domain.TabCounts{}, common.WrapPersistence("unread counts", err)
	}
	counts = domain.CountUnread(snapshots, viewer.ID)

	if cacheable {
		if err := s.cache.SetUnreadCounts(ctx, viewer.ID, gen, counts, s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("user_id", viewer.ID).Msg("unread count cache set failed")
		}
	}
	return counts, nil
}

// Invalidate drops cached counts of the given users
func (s *UnreadService) Invalidate(ctx context.Context, userIDs ...string) {
	if err := s.cache.InvalidateUnreadCounts(ctx, userIDs...); err != nil {
		s.logger.Warn().Err(err).Strs("user_ids", userIDs).Msg("unread count cache invalidate failed")
	}
}

// Subscribe invalidates participants' counts whenever a tab may have changed
func (s *UnreadService) Subscribe(bus *events.Bus) {
	bus.SubscribeAll("unread-cache", func(e events.Event) {
		s.Invalidate(context.Background(), e.Participants...)
	},
		events.TopicTabChanged,
		events.TopicMessageSent,
		events.TopicMessagesRead,
		events.TopicInboxDeleted,
	)
}
