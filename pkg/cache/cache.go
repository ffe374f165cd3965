package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL 상수 정의
const (
	TTLShort   = 1 * time.Minute  // 짧은 캐시 (실시간성 필요)
	TTLDefault = 5 * time.Minute  // 기본값
	TTLUser    = 10 * time.Minute // 사용자 표시 이름
	TTLGen     = 24 * time.Hour   // 미읽음 세대 번호
)

// 캐시 키 접두사
const (
	PrefixUnread    = "inbox:unread:"
	PrefixUnreadGen = "inbox:unread-gen:"
	PrefixUser      = "inbox:user:"
)

// ErrMiss is returned when a key is absent or the cache is unavailable
var ErrMiss = errors.New("cache miss")

// Service Redis 캐시 서비스 인터페이스
type Service interface {
	// 기본 캐시 연산
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// 탭별 미읽음 카운트. 값은 사용자별 세대 번호 단위로 저장되고
	// InvalidateUnreadCounts 가 세대를 올리면 이전 세대 값은 더 이상 조회되지 않는다.
	UnreadGeneration(ctx context.Context, userID string) (int64, error)
	GetUnreadCounts(ctx context.Context, userID string, gen int64, dest interface{}) error
	SetUnreadCounts(ctx context.Context, userID string, gen int64, counts interface{}, ttl time.Duration) error
	InvalidateUnreadCounts(ctx context.Context, userIDs ...string) error

	// 사용자 이름
	GetUserName(ctx context.Context, userID string) (string, error)
	SetUserName(ctx context.Context, userID, name string) error

	// 유틸리티
	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis 기반 캐시 구현
type redisCache struct {
	client *redis.Client
}

// NewService 새로운 캐시 서비스 생성. client 가 nil 이면 모든 조회는 miss.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable Redis 연결 가능 여부
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping Redis 연결 테스트
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get 캐시에서 값 조회
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set 캐시에 값 저장
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // Redis 없으면 무시
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete 캐시 삭제
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists 캐시 존재 여부 확인
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ========================================
// 미읽음 카운트 캐시
// ========================================

func unreadKey(userID string, gen int64) string {
	return fmt.Sprintf("%s%s:%d", PrefixUnread, userID, gen)
}

func unreadGenKey(userID string) string {
	return PrefixUnreadGen + userID
}

func (c *redisCache) UnreadGeneration(ctx context.Context, userID string) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	gen, err := c.client.Get(ctx, unreadGenKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisCache) GetUnreadCounts(ctx context.Context, userID string, gen int64, dest interface{}) error {
	return c.Get(ctx, unreadKey(userID, gen), dest)
}

func (c *redisCache) SetUnreadCounts(ctx context.Context, userID string, gen int64, counts interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLShort
	}
	return c.Set(ctx, unreadKey(userID, gen), counts, ttl)
}

// InvalidateUnreadCounts bumps each user's generation. A concurrent Counts that
// read the previous generation stores its result under a key nobody reads again.
func (c *redisCache) InvalidateUnreadCounts(ctx context.Context, userIDs ...string) error {
	if c.client == nil {
		return nil
	}
	pipe := c.client.Pipeline()
	queued := 0
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		pipe.Incr(ctx, unreadGenKey(id))
		pipe.Expire(ctx, unreadGenKey(id), TTLGen)
		queued++
	}
	if queued == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ========================================
// 사용자 이름 캐시
// ========================================

func (c *redisCache) GetUserName(ctx context.Context, userID string) (string, error) {
	if c.client == nil {
		return "", ErrMiss
	}
	name, err := c.client.Get(ctx, PrefixUser+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return name, err
}

func (c *redisCache) SetUserName(ctx context.Context, userID, name string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, PrefixUser+userID, name, TTLUser).Err()
}
