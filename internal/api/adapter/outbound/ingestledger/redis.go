// Package ingestledger tracks blobs that were ingested but not yet claimed by a finalize.
package ingestledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding pending blob refs scored by ingest time in ms.
const DefaultKey = "chunkstore:pending_blobs"

// Redis keeps the ledger in one sorted set so every gateway instance shares it.
// What ingest knew about each blob lives in a hash next to it, at key+":meta".
type Redis struct {
	client  redis.UniversalClient
	key     string
	metaKey string
}

var _ port.IngestLedger = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key, metaKey: key + ":meta"}
}

func (r *Redis) Track(ctx context.Context, blob domain.PendingBlob) error {
	meta, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encode blob meta: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.key, redis.Z{Score: float64(blob.TrackedAt.UnixMilli()), Member: blob.BlobRef})
	pipe.HSet(ctx, r.metaKey, blob.BlobRef, meta)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("track blob: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, blobRefs []string) error {
	if len(blobRefs) == 0 {
		return nil
	}
	members := make([]any, len(blobRefs))
	for i, ref := range blobRefs {
		members[i] = ref
	}
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.key, members...)
	pipe.HDel(ctx, r.metaKey, blobRefs...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release blobs: %w", err)
	}
	return nil
}

// Pending checks every ref in one pipeline round trip. A pending blob without
// meta comes back with only its ref and time set.
func (r *Redis) Pending(ctx context.Context, blobRefs []string) ([]domain.PendingBlob, error) {
	if len(blobRefs) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	scores := make([]*redis.FloatCmd, len(blobRefs))
	metas := make([]*redis.StringCmd, len(blobRefs))
	for i, ref := range blobRefs {
		scores[i] = pipe.ZScore(ctx, r.key, ref)
		metas[i] = pipe.HGet(ctx, r.metaKey, ref)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("check pending blobs: %w", err)
	}

	pending := make([]domain.PendingBlob, 0, len(blobRefs))
	for i, ref := range blobRefs {
		score, err := scores[i].Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return nil, fmt.Errorf("check pending blob %s: %w", ref, err)
		}

		var blob domain.PendingBlob
		raw, err := metas[i].Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &blob); err != nil {
				return nil, fmt.Errorf("decode meta of blob %s: %w", ref, err)
			}
		case errors.Is(err, redis.Nil):
		default:
			return nil, fmt.Errorf("read meta of blob %s: %w", ref, err)
		}
		blob.BlobRef = ref
		blob.TrackedAt = time.UnixMilli(int64(score))
		pending = append(pending, blob)
	}
	return pending, nil
}

func (r *Redis) Expired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	refs, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired blobs: %w", err)
	}
	return refs, nil
}
