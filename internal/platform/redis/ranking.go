package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

// zsetClient is the subset of goredis.Cmdable the ranking uses.
type zsetClient interface {
	ZAdd(ctx context.Context, key string, members ...goredis.Z) *goredis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *goredis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
}

// RankingStore ranks contents of each kind by like count. Contents with no
// likes are not ranked.
type RankingStore struct {
	client zsetClient
	prefix string
	logger *slog.Logger
}

// NewRankingStore creates a RankingStore whose keys start with prefix.
func NewRankingStore(client zsetClient, prefix string, logger *slog.Logger) *RankingStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingStore{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "ranking_store")),
	}
}

func (s *RankingStore) key(kind domain.ContentKind) string {
	return s.prefix + ":" + string(kind)
}

// SetScore records the like count of a content. A count of zero or less
// removes it from the ranking.
func (s *RankingStore) SetScore(ctx context.Context, kind domain.ContentKind, id uuid.UUID, count int64) error {
	if count <= 0 {
		return s.Remove(ctx, kind, id)
	}
	err := s.client.ZAdd(ctx, s.key(kind), goredis.Z{Score: float64(count), Member: id.String()}).Err()
	if err != nil {
		return fmt.Errorf("failed to update ranking for %s: %w", id, err)
	}
	return nil
}

// Remove drops a content from the ranking.
func (s *RankingStore) Remove(ctx context.Context, kind domain.ContentKind, id uuid.UUID) error {
	if err := s.client.ZRem(ctx, s.key(kind), id.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove %s from ranking: %w", id, err)
	}
	return nil
}

// Top returns up to limit content IDs, most liked first.
func (s *RankingStore) Top(ctx context.Context, kind domain.ContentKind, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return []uuid.UUID{}, nil
	}
	members, err := s.client.ZRevRange(ctx, s.key(kind), 0, int64(limit-1)).Result()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("skipping malformed ranking member",
				slog.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
