package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/apperrors"
)

// DocumentConfig configures the Redis review store.
type DocumentConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	Database     int           `yaml:"database"`
	Prefix       string        `yaml:"prefix"`
	Timeout      time.Duration `yaml:"timeout"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
}

// DefaultDocumentConfig returns sensible defaults.
func DefaultDocumentConfig(address string) DocumentConfig {
	return DocumentConfig{
		Address:      address,
		Prefix:       "apppulse:reviews:",
		Timeout:      5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// writeBatchSize is the number of SETs pipelined per round trip.
const writeBatchSize = 512

// Document stores review records in Redis as JSON documents, one key per
// review, grouped into generations. The key itself is the store-internal
// identifier; it never leaves this package.
//
// Replace semantics: write a new generation, flip the current pointer,
// delete the old generation. Readers always see a complete generation.
type Document struct {
	cfg    DocumentConfig
	client *redis.Client
	logger *slog.Logger
}

// OpenDocument connects to Redis and verifies reachability.
func OpenDocument(ctx context.Context, cfg DocumentConfig) (*Document, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnection, "redis unreachable", err).
			WithContext("address", cfg.Address)
	}

	return &Document{
		cfg:    cfg,
		client: client,
		logger: slog.Default().With("component", "store.document"),
	}, nil
}

// Close releases the client.
func (s *Document) Close() error {
	return s.client.Close()
}

// Ping reports store reachability.
func (s *Document) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeConnection, "redis unreachable", err)
	}
	return nil
}

func (s *Document) currentKey() string {
	return s.cfg.Prefix + "current"
}

func (s *Document) genCountKey(gen string) string {
	return s.cfg.Prefix + "gen:" + gen + ":count"
}

func (s *Document) docKey(gen string, n int) string {
	return fmt.Sprintf("%sgen:%s:%d", s.cfg.Prefix, gen, n)
}

// ReplaceReviews replaces the store's current generation with records.
// Individual marshal failures are logged and skipped; a failed pipeline
// write aborts the stage (connection territory, scheduler retries).
func (s *Document) ReplaceReviews(ctx context.Context, records []model.ReviewRecord, onProgress func(n int)) (int64, error) {
	gen := uuid.NewString()

	pipe := s.client.Pipeline()
	var written int64
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			s.logger.Warn("skipping review", "app", records[i].App, "error", err)
			continue
		}
		pipe.Set(ctx, s.docKey(gen, int(written)), data, 0)
		written++

		if pipe.Len() >= writeBatchSize {
			if _, err := pipe.Exec(ctx); err != nil {
				s.discardGeneration(context.WithoutCancel(ctx), gen, written)
				return 0, apperrors.Wrap(apperrors.CodeConnection, "write review batch", err)
			}
			if onProgress != nil {
				onProgress(int(written))
			}
		}
	}

	pipe.Set(ctx, s.genCountKey(gen), written, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.discardGeneration(context.WithoutCancel(ctx), gen, written)
		return 0, apperrors.Wrap(apperrors.CodeConnection, "write review batch", err)
	}
	if onProgress != nil {
		onProgress(int(written))
	}

	// Flip the pointer, then collect everything that is not the new
	// generation: the superseded one plus any keys a crashed load left
	// behind before its generation became current.
	if _, err := s.client.GetSet(ctx, s.currentKey(), gen).Result(); err != nil && err != redis.Nil {
		s.discardGeneration(context.WithoutCancel(ctx), gen, written)
		return 0, apperrors.Wrap(apperrors.CodeConnection, "flip generation pointer", err)
	}
	s.sweepStale(ctx, gen)

	return written, nil
}

// discardGeneration deletes the documents of a generation that never
// became current. Best effort; anything left behind is collected by the
// next successful replace's sweep.
func (s *Document) discardGeneration(ctx context.Context, gen string, upTo int64) {
	pipe := s.client.Pipeline()
	for i := int64(0); i < upTo; i++ {
		pipe.Del(ctx, s.docKey(gen, int(i)))
		if pipe.Len() >= writeBatchSize {
			if _, err := pipe.Exec(ctx); err != nil {
				s.logger.Warn("failed discarding incomplete generation", "generation", gen, "error", err)
				return
			}
		}
	}
	pipe.Del(ctx, s.genCountKey(gen))
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed discarding incomplete generation", "generation", gen, "error", err)
	}
}

// sweepStale deletes every generation key except keep's. Best effort:
// whatever survives stays invisible to readers, since the pointer only
// ever names complete generations, and is retried on the next replace.
func (s *Document) sweepStale(ctx context.Context, keep string) {
	keepPrefix := s.cfg.Prefix + "gen:" + keep + ":"
	iter := s.client.Scan(ctx, 0, s.cfg.Prefix+"gen:*", writeBatchSize).Iterator()

	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, keepPrefix) {
			continue
		}
		stale = append(stale, key)
		if len(stale) >= writeBatchSize {
			if err := s.client.Del(ctx, stale...).Err(); err != nil {
				s.logger.Warn("failed deleting stale generation batch", "error", err)
				return
			}
			stale = stale[:0]
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("failed scanning stale generations", "error", err)
		return
	}
	if len(stale) > 0 {
		if err := s.client.Del(ctx, stale...).Err(); err != nil {
			s.logger.Warn("failed deleting stale generations", "error", err)
		}
	}
}

// CountReviews returns the current generation's document count.
func (s *Document) CountReviews(ctx context.Context) (int64, error) {
	gen, err := s.client.Get(ctx, s.currentKey()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeConnection, "read generation pointer", err)
	}
	n, err := s.client.Get(ctx, s.genCountKey(gen)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeConnection, "read generation count", err)
	}
	return n, nil
}

// FetchReviews reads the current generation back for seed extraction.
// The store-internal document keys are not part of the result. An empty
// store returns an empty slice, not an error.
func (s *Document) FetchReviews(ctx context.Context) ([]model.ReviewRecord, error) {
	gen, err := s.client.Get(ctx, s.currentKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnection, "read generation pointer", err)
	}

	count, err := s.client.Get(ctx, s.genCountKey(gen)).Int64()
	if err != nil && err != redis.Nil {
		return nil, apperrors.Wrap(apperrors.CodeConnection, "read generation count", err)
	}

	records := make([]model.ReviewRecord, 0, count)
	for start := int64(0); start < count; start += writeBatchSize {
		end := start + writeBatchSize
		if end > count {
			end = count
		}
		keys := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			keys = append(keys, s.docKey(gen, int(i)))
		}

		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConnection, "read review batch", err)
		}
		for _, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var rec model.ReviewRecord
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				s.logger.Warn("skipping corrupt review document", "error", err)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}
