// Package publisher forwards fresh measurements to optional external channels
// (Redis stream, MQTT topic, HTTP endpoint). Publishing never affects the
// stored readings: failures are reported to the caller to be logged.
package publisher

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// Publisher 读数发布通道
type Publisher interface {
	Name() string
	Publish(ctx context.Context, m models.Measurement) error
	Close() error
}

// Fanout 依次发布到所有通道，单个通道失败不影响其他通道
type Fanout struct {
	publishers []Publisher
}

// NewFanout 组合多个通道
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

// Name implements Publisher.
func (f *Fanout) Name() string { return "fanout" }

// Len 已配置的通道数
func (f *Fanout) Len() int { return len(f.publishers) }

// Publish 发布到所有通道，返回合并后的错误
func (f *Fanout) Publish(ctx context.Context, m models.Measurement) error {
	var err error
	for _, p := range f.publishers {
		if pubErr := p.Publish(ctx, m); pubErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", p.Name(), pubErr))
		}
	}
	return err
}

// Close 关闭所有通道
func (f *Fanout) Close() error {
	var err error
	for _, p := range f.publishers {
		err = multierr.Append(err, p.Close())
	}
	return err
}

// New 按配置创建通道，未配置的通道被跳过
// 连接失败的通道记录告警后跳过，不阻止采集
func New(cfg config.PublishConfig, logger *zap.Logger) *Fanout {
	var publishers []Publisher

	if cfg.Redis.Addr != "" {
		publishers = append(publishers, NewStreamPublisher(NewRedisClient(cfg.Redis), cfg.Redis.Stream))
		logger.Info("redis stream publisher enabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("stream", cfg.Redis.Stream),
		)
	}

	if cfg.MQTT.Broker != "" {
		p, err := NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			logger.Warn("mqtt publisher disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			publishers = append(publishers, p)
			logger.Info("mqtt publisher enabled",
				zap.String("broker", cfg.MQTT.Broker),
				zap.String("topic", cfg.MQTT.Topic),
			)
		}
	}

	if cfg.HTTP.URL != "" {
		publishers = append(publishers, NewHTTPPublisher(cfg.HTTP, logger))
		logger.Info("http publisher enabled", zap.String("url", cfg.HTTP.URL))
	}

	return NewFanout(publishers...)
}
