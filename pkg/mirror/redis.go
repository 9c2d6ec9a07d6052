package mirror

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/towet/wastemanagement/pkg/model"
)

// DefaultStream is the Redis stream readings are added to.
const DefaultStream = "ecotrack:readings"

// RedisStream appends readings to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream creates a publisher. maxLen > 0 caps the stream length
// approximately.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Publish adds reading to the stream.
func (r *RedisStream) Publish(ctx context.Context, reading model.Reading) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"ts":         strconv.FormatUint(reading.TS, 10),
			"device":     reading.Device,
			"fill_level": strconv.Itoa(reading.FillLevel),
			"fill_state": string(model.ClassifyFill(reading.FillLevel)),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStream) Close() error {
	return r.client.Close()
}
