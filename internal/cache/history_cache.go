// Package cache ставит read-through слой redis перед хранилищем истории.
// Redis необязателен: при любой ошибке redis или открытом breaker чтение идет
// в основное хранилище. Каждая запись удаляет затронутые ключи и увеличивает их
// поколение, а заполнение сохраняется, только если поколение не изменилось.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/apicalculator/internal/domain"
	"github.com/xela07ax/apicalculator/internal/infra"
	"go.uber.org/zap"
)

// generationTTL намного дольше любого чтения из хранилища: поколение не может
// истечь и вернуться к значению, которое видел медленный читатель.
const generationTTL = 24 * time.Hour

var errStaleFill = errors.New("history changed during load")

// Store основное хранилище истории, которое мы оборачиваем.
type Store interface {
	Insert(ctx context.Context, rec domain.CalculationRecord) (domain.CalculationRecord, error)
	ListForUser(ctx context.Context, identityID string) ([]domain.CalculationRecord, error)
	ListAll(ctx context.Context) ([]domain.CalculationRecord, error)
	DeleteAllForUser(ctx context.Context, identityID string) (int64, error)
}

type HistoryCache struct {
	next    Store
	rdb     *redis.Client
	ttl     time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *infra.Metrics
}

func NewHistoryCache(next Store, rdb *redis.Client, ttl time.Duration, logger *zap.Logger, metrics *infra.Metrics) *HistoryCache {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "history-cache",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &HistoryCache{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		cb:      cb,
		logger:  logger.Named("history-cache"),
		metrics: metrics,
	}
}

func (c *HistoryCache) Insert(ctx context.Context, rec domain.CalculationRecord) (domain.CalculationRecord, error) {
	stored, err := c.next.Insert(ctx, rec)
	if err != nil {
		return stored, err
	}
	c.invalidate(ctx, infra.HistoryUserKey(stored.UserID), infra.RedisKeyHistoryAll)
	return stored, nil
}

func (c *HistoryCache) ListForUser(ctx context.Context, identityID string) ([]domain.CalculationRecord, error) {
	return c.readThrough(ctx, infra.HistoryUserKey(identityID), func() ([]domain.CalculationRecord, error) {
		return c.next.ListForUser(ctx, identityID)
	})
}

func (c *HistoryCache) ListAll(ctx context.Context) ([]domain.CalculationRecord, error) {
	return c.readThrough(ctx, infra.RedisKeyHistoryAll, func() ([]domain.CalculationRecord, error) {
		return c.next.ListAll(ctx)
	})
}

func (c *HistoryCache) DeleteAllForUser(ctx context.Context, identityID string) (int64, error) {
	n, err := c.next.DeleteAllForUser(ctx, identityID)
	if err != nil {
		return n, err
	}
	if identityID != "" {
		c.invalidate(ctx, infra.HistoryUserKey(identityID), infra.RedisKeyHistoryAll)
	}
	return n, nil
}

func (c *HistoryCache) readThrough(ctx context.Context, key string, load func() ([]domain.CalculationRecord, error)) ([]domain.CalculationRecord, error) {
	recs, gen, hit, lookupErr := c.lookup(ctx, key)
	if hit {
		c.metrics.HistoryCache.WithLabelValues("hit").Inc()
		return recs, nil
	}

	// gen прочитан до load, поэтому запись между ними будет видна в set
	recs, err := load()
	if err != nil {
		return nil, err
	}
	if lookupErr == nil {
		c.set(ctx, key, gen, recs)
	}
	return recs, nil
}

// lookup читает запись и ее поколение за один запрос.
func (c *HistoryCache) lookup(ctx context.Context, key string) ([]domain.CalculationRecord, int64, bool, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.rdb.MGet(ctx, key, infra.HistoryGenerationKey(key)).Result()
	})
	if err != nil {
		c.metrics.HistoryCache.WithLabelValues("error").Inc()
		c.logger.Debug("cache read skipped", zap.String("key", key), zap.Error(err))
		return nil, 0, false, err
	}

	vals, _ := res.([]interface{})
	if len(vals) != 2 {
		return nil, 0, false, errors.New("unexpected MGET reply")
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		gen, _ = strconv.ParseInt(s, 10, 64)
	}

	raw, ok := vals[0].(string)
	if !ok {
		c.metrics.HistoryCache.WithLabelValues("miss").Inc()
		return nil, gen, false, nil
	}

	var recs []domain.CalculationRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		c.metrics.HistoryCache.WithLabelValues("error").Inc()
		c.logger.Warn("corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, gen, false, nil
	}
	return recs, gen, true, nil
}

// set сохраняет recs, только пока поколение ключа равно gen.
func (c *HistoryCache) set(ctx context.Context, key string, gen int64, recs []domain.CalculationRecord) {
	b, err := json.Marshal(recs)
	if err != nil {
		return
	}
	genKey := infra.HistoryGenerationKey(key)

	_, err = c.cb.Execute(func() (interface{}, error) {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, genKey).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if cur != gen {
				return errStaleFill
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, b, c.ttl)
				return nil
			})
			return err
		}, genKey)
		if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
			c.metrics.HistoryCache.WithLabelValues("stale").Inc()
			c.logger.Debug("stale cache fill dropped", zap.String("key", key), zap.Int64("generation", gen))
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		c.logger.Debug("cache write skipped", zap.String("key", key), zap.Error(err))
	}
}

// invalidate увеличивает поколение каждого ключа и удаляет записи в одном
// блоке MULTI.
func (c *HistoryCache) invalidate(ctx context.Context, keys ...string) {
	_, err := c.cb.Execute(func() (interface{}, error) {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range keys {
				genKey := infra.HistoryGenerationKey(key)
				pipe.Incr(ctx, genKey)
				pipe.Expire(ctx, genKey, generationTTL)
			}
			pipe.Del(ctx, keys...)
			return nil
		})
		return nil, err
	})
	if err != nil {
		c.metrics.HistoryCache.WithLabelValues("error").Inc()
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
