package publisher

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// NewRedisClient 创建Redis客户端，命令失败不重试
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: -1,
	})
}

// StreamPublisher 把读数追加到 Redis Stream
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher 创建 Stream 发布器
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

// Name implements Publisher.
func (p *StreamPublisher) Name() string { return "redis" }

// Publish 使用 XADD 追加一条消息，字段均为字符串
func (p *StreamPublisher) Publish(ctx context.Context, m models.Measurement) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: StreamValues(m),
	}).Err()
}

// Close 关闭Redis连接
func (p *StreamPublisher) Close() error {
	return p.client.Close()
}

// StreamValues Stream 消息字段
func StreamValues(m models.Measurement) map[string]interface{} {
	return map[string]interface{}{
		"run_id":    m.RunID,
		"sensor_id": strconv.FormatInt(m.SensorID, 10),
		"name":      m.Name,
		"type":      m.Type,
		"value":     strconv.FormatFloat(m.Value, 'f', -1, 64),
		"unit":      m.Unit,
		"timestamp": m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
