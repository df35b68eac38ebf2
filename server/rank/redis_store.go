package rank

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

const DefaultRedisPrefix = "naaga:rank"

// NewRedisPool dials addr lazily; connections are checked before reuse.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// RedisStore keeps scores in a sorted set (member = nickname) and player ids
// in a hash next to it:
//
//	<prefix>:scores  ZSET nickname -> total score
//	<prefix>:ids     HASH nickname -> id
//	<prefix>:seq     id counter
type RedisStore struct {
	pool   *redis.Pool
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(pool *redis.Pool, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{pool: pool, prefix: prefix}
}

func (r *RedisStore) scoresKey() string { return r.prefix + ":scores" }
func (r *RedisStore) idsKey() string    { return r.prefix + ":ids" }
func (r *RedisStore) seqKey() string    { return r.prefix + ":seq" }

func (r *RedisStore) conn(ctx context.Context) (redis.Conn, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "redis connect")
	}
	return conn, nil
}

func closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		log.Printf("redis conn close err: %v", err)
	}
}

// playerID returns nickname's id, allocating one on first use.
func (r *RedisStore) playerID(conn redis.Conn, nickname string) (int64, error) {
	id, err := redis.Int64(conn.Do("HGET", r.idsKey(), nickname))
	if err == nil {
		return id, nil
	}
	if err != redis.ErrNil {
		return 0, errors.Wrap(err, "redis HGET")
	}
	id, err = redis.Int64(conn.Do("INCR", r.seqKey()))
	if err != nil {
		return 0, errors.Wrap(err, "redis INCR")
	}
	set, err := redis.Int(conn.Do("HSETNX", r.idsKey(), nickname, id))
	if err != nil {
		return 0, errors.Wrap(err, "redis HSETNX")
	}
	if set == 0 {
		// lost the race to a concurrent first write
		return redis.Int64(conn.Do("HGET", r.idsKey(), nickname))
	}
	return id, nil
}

func (r *RedisStore) AddScore(ctx context.Context, nickname string, delta int) (protocol.PlayerView, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return protocol.PlayerView{}, err
	}
	defer closeConn(conn)

	id, err := r.playerID(conn, nickname)
	if err != nil {
		return protocol.PlayerView{}, err
	}
	total, err := redis.Int(conn.Do("ZINCRBY", r.scoresKey(), delta, nickname))
	if err != nil {
		return protocol.PlayerView{}, errors.Wrap(err, "redis ZINCRBY")
	}
	return protocol.PlayerView{ID: id, Nickname: nickname, TotalScore: total}, nil
}

func (r *RedisStore) Player(ctx context.Context, nickname string) (protocol.PlayerView, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return protocol.PlayerView{}, err
	}
	defer closeConn(conn)

	score, err := redis.Int(conn.Do("ZSCORE", r.scoresKey(), nickname))
	if err == redis.ErrNil {
		return protocol.PlayerView{}, ErrPlayerNotFound
	}
	if err != nil {
		return protocol.PlayerView{}, errors.Wrap(err, "redis ZSCORE")
	}
	id, err := redis.Int64(conn.Do("HGET", r.idsKey(), nickname))
	if err != nil && err != redis.ErrNil {
		return protocol.PlayerView{}, errors.Wrap(err, "redis HGET")
	}
	return protocol.PlayerView{ID: id, Nickname: nickname, TotalScore: score}, nil
}

func (r *RedisStore) Players(ctx context.Context) ([]protocol.PlayerView, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn(conn)

	reply, err := redis.Strings(conn.Do("ZRANGE", r.scoresKey(), 0, -1, "WITHSCORES"))
	if err != nil {
		return nil, errors.Wrap(err, "redis ZRANGE")
	}
	players := make([]protocol.PlayerView, 0, len(reply)/2)
	args := redis.Args{}.Add(r.idsKey())
	for i := 0; i+1 < len(reply); i += 2 {
		score, err := strconv.Atoi(reply[i+1])
		if err != nil {
			continue
		}
		players = append(players, protocol.PlayerView{Nickname: reply[i], TotalScore: score})
		args = args.Add(reply[i])
	}
	if len(players) == 0 {
		return players, nil
	}

	ids, err := redis.Values(conn.Do("HMGET", args...))
	if err != nil {
		return nil, errors.Wrap(err, "redis HMGET")
	}
	for i := range players {
		if i >= len(ids) {
			break
		}
		if id, err := redis.Int64(ids[i], nil); err == nil {
			players[i].ID = id
		}
	}
	return players, nil
}

func (r *RedisStore) Close() error { return r.pool.Close() }
