package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postboard/apiserver/types"
)

const defaultPostTTL = 30 * time.Second

// fillScript writes the view only while the post version still matches the
// one the reader observed before loading it.
var fillScript = redis.NewScript(`
if (redis.call("GET", KEYS[1]) or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// PostCache stores post views in Redis under post:view:<id>. Every
// invalidation bumps post:version:<id>; fills carrying an older version are
// dropped.
type PostCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewPostCache(client redis.Cmdable, ttl time.Duration) *PostCache {
	if ttl <= 0 {
		ttl = defaultPostTTL
	}
	return &PostCache{client: client, ttl: ttl}
}

func (c *PostCache) Get(ctx context.Context, id int) (types.PostView, bool, error) {
	raw, err := c.client.Get(ctx, postKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.PostView{}, false, nil
	}
	if err != nil {
		return types.PostView{}, false, fmt.Errorf("redis get post view failed: %w", err)
	}

	var view types.PostView
	if err := json.Unmarshal(raw, &view); err != nil {
		return types.PostView{}, false, fmt.Errorf("unmarshal cached post view failed: %w", err)
	}
	return view, true, nil
}

// Version returns the invalidation counter of the post; 0 when it was never
// invalidated.
func (c *PostCache) Version(ctx context.Context, id int) (int64, error) {
	version, err := c.client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get post version failed: %w", err)
	}
	return version, nil
}

// Set caches view unless the post was invalidated after version was read.
func (c *PostCache) Set(ctx context.Context, view types.PostView, version int64) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal post view failed: %w", err)
	}
	keys := []string{versionKey(view.Post.ID), postKey(view.Post.ID)}
	err = fillScript.Run(ctx, c.client, keys, strconv.FormatInt(version, 10), payload, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set post view failed: %w", err)
	}
	return nil
}

func (c *PostCache) Invalidate(ctx context.Context, id int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Del(ctx, postKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete post view failed: %w", err)
	}
	return nil
}

func postKey(id int) string {
	return fmt.Sprintf("post:view:%d", id)
}

func versionKey(id int) string {
	return fmt.Sprintf("post:version:%d", id)
}
