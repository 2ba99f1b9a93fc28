// Conversation cache.
//
// While an interview session is live, its transcript lives in a Redis list so
// turn appends are cheap; the attempt is also registered in a sorted set
// scored with a flush deadline. When the session completes (or the deadline
// passes without activity) the full list is flushed to the transcripts table
// and the cache entry is dropped. The cache is the source of truth while hot;
// the database is the source of truth once flushed.
//
// Key schema:
//   - chat:history:<candidateID>  list of serialized turns, oldest first
//   - chats:active                zset of candidate IDs scored by deadline
//   - chat:flush:<candidateID>    short-lived flush lock
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

const (
	historyKeyPrefix = "chat:history:"
	activeSetKey     = "chats:active"
	flushLockPrefix  = "chat:flush:"
)

// ErrFlushLocked is returned when another flush of the same attempt holds the
// lock. Callers may retry after the lock TTL; the sweeper simply skips.
var ErrFlushLocked = errors.New("flush already in progress")

// ConversationCache coordinates the Redis list, the active set, and the
// durable transcript row for one candidate attempt at a time.
// It is safe for concurrent use.
type ConversationCache struct {
	rdb *redis.Client
	db  *gorm.DB

	// ActiveTTL is the flush deadline horizon; the deadline is refreshed on
	// every append so an ongoing interview is never reaped mid-session.
	ActiveTTL time.Duration
	// FlushLockTTL bounds how long a crashed flusher can block the next one.
	FlushLockTTL time.Duration
}

// NewConversationCache wires the cache against a Redis client and the GORM
// handle used for transcript flushes.
func NewConversationCache(rdb *redis.Client, db *gorm.DB, cfg config.CacheConfig) *ConversationCache {
	activeTTL := cfg.ActiveTTL
	if activeTTL <= 0 {
		activeTTL = 24 * time.Hour
	}
	lockTTL := cfg.FlushLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &ConversationCache{
		rdb:          rdb,
		db:           db,
		ActiveTTL:    activeTTL,
		FlushLockTTL: lockTTL,
	}
}

func historyKey(candidateID string) string { return historyKeyPrefix + candidateID }
func flushLockKey(candidateID string) string { return flushLockPrefix + candidateID }

// Populate rehydrates the cache list from the persisted transcript and
// registers the attempt in the active set. It reports false, without touching
// Redis at all, when nothing has been persisted for the attempt.
func (c *ConversationCache) Populate(ctx context.Context, candidateID string) (bool, error) {
	t, err := repo.GetTranscript(ctx, c.db, candidateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	var msgs []string
	if err := json.Unmarshal([]byte(t.Messages), &msgs); err != nil {
		return false, err
	}
	if len(msgs) == 0 {
		return false, nil
	}

	key := historyKey(candidateID)
	deadline := float64(time.Now().Add(c.ActiveTTL).Unix())

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	vals := make([]interface{}, len(msgs))
	for i, m := range msgs {
		vals[i] = m
	}
	pipe.RPush(ctx, key, vals...)
	pipe.ZAdd(ctx, activeSetKey, redis.Z{Score: deadline, Member: candidateID})
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Append pushes a serialized turn onto the attempt's list and refreshes the
// active-set deadline, so activity keeps a session alive past the original
// horizon.
func (c *ConversationCache) Append(ctx context.Context, candidateID, raw string) error {
	deadline := float64(time.Now().Add(c.ActiveTTL).Unix())
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, historyKey(candidateID), raw)
	pipe.ZAdd(ctx, activeSetKey, redis.Z{Score: deadline, Member: candidateID})
	_, err := pipe.Exec(ctx)
	return err
}

// Messages returns the full cached turn list, oldest first. An attempt with
// no cache entry yields an empty slice, not an error.
func (c *ConversationCache) Messages(ctx context.Context, candidateID string) ([]string, error) {
	return c.rdb.LRange(ctx, historyKey(candidateID), 0, -1).Result()
}

// Hot reports whether the attempt currently has a cache entry.
func (c *ConversationCache) Hot(ctx context.Context, candidateID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, historyKey(candidateID)).Result()
	return n > 0, err
}

// Flush persists the cached transcript and drops the hot entry.
//
// Semantics:
//   - A per-attempt lock serializes concurrent flushes; the loser gets
//     ErrFlushLocked.
//   - When the list key is absent the attempt is only removed from the active
//     set; the database is not touched (nothing to lose, nothing to write).
//   - Otherwise the whole list replaces the transcript row (blind overwrite),
//     the attempt leaves the active set, and the list key is deleted.
func (c *ConversationCache) Flush(ctx context.Context, candidateID string) error {
	lockKey := flushLockKey(candidateID)
	locked, err := c.rdb.SetNX(ctx, lockKey, "1", c.FlushLockTTL).Result()
	if err != nil {
		return err
	}
	if !locked {
		return ErrFlushLocked
	}
	defer c.rdb.Del(context.WithoutCancel(ctx), lockKey)

	key := historyKey(candidateID)
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return c.rdb.ZRem(ctx, activeSetKey, candidateID).Err()
	}

	msgs, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	if err := repo.UpsertTranscript(ctx, c.db, candidateID, string(encoded)); err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, activeSetKey, candidateID)
	pipe.Del(ctx, key)
	_, err = pipe.Exec(ctx)
	return err
}

// Expired lists the attempts whose active-set deadline is at or before now.
func (c *ConversationCache) Expired(ctx context.Context, now time.Time) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, activeSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
}
