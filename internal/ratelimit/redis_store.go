package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one sorted set per (key, identity), scored by timestamp.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(key, identity string) string {
	return "ratelimit:" + key + ":" + identity
}

func (s *RedisStore) Expire(ctx context.Context, key, identity string, before int64) error {
	return s.rdb.ZRemRangeByScore(ctx, redisKey(key, identity), "-inf", "("+strconv.FormatInt(before, 10)).Err()
}

func (s *RedisStore) Window(ctx context.Context, key, identity string, since int64) (int, int64, error) {
	k := redisKey(key, identity)
	min := strconv.FormatInt(since, 10)

	pipe := s.rdb.Pipeline()
	countCmd := pipe.ZCount(ctx, k, min, "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{Min: min, Max: "+inf", Offset: 0, Count: 1})
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}

	var oldest int64
	if zs := oldestCmd.Val(); len(zs) > 0 {
		oldest = int64(zs[0].Score)
	}
	return int(countCmd.Val()), oldest, nil
}

func (s *RedisStore) Record(ctx context.Context, key, identity string, at int64, window time.Duration) error {
	k := redisKey(key, identity)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at), Member: uuid.NewString()})
	// 整个集合在窗口结束后自动过期
	pipe.Expire(ctx, k, window+time.Second)
	_, err := pipe.Exec(ctx)
	return err
}

// takeScript 在 Redis 内完成清理、计数与写入，并发请求不会同时看到 limit-1
// KEYS[1]=set ARGV: since, at, limit, ttl seconds, member
var takeScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local count = redis.call('ZCOUNT', KEYS[1], ARGV[1], '+inf')
local oldest = 0
local first = redis.call('ZRANGEBYSCORE', KEYS[1], ARGV[1], '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
if #first > 0 then
  oldest = tonumber(first[2])
end
if count >= tonumber(ARGV[3]) then
  return {0, count, oldest}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {1, count, oldest}
`)

// Take implements AtomicStore with a single script call.
func (s *RedisStore) Take(ctx context.Context, key, identity string, since, at int64, limit int, window time.Duration) (bool, int, int64, error) {
	ttl := int64(window/time.Second) + 1
	res, err := takeScript.Run(ctx, s.rdb, []string{redisKey(key, identity)},
		since, at, limit, ttl, uuid.NewString()).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	return res[0] == 1, int(res[1]), res[2], nil
}

// NewRedisClient 连接 Redis 并做一次连通性检查
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
