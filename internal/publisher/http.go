package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// HTTPPublisher 以 JSON POST 推送读数
type HTTPPublisher struct {
	client *resty.Client
	url    string
}

// NewHTTPPublisher 创建 HTTP 推送器
// 每条读数只尝试一次，失败由调用方记录
func NewHTTPPublisher(cfg config.HTTPConfig, logger *zap.Logger) *HTTPPublisher {
	client := resty.New().
		SetLogger(logger.Sugar()).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPPublisher{client: client, url: cfg.URL}
}

// Name implements Publisher.
func (p *HTTPPublisher) Name() string { return "http" }

// Publish POST 一条读数，非 2xx 视为失败
func (p *HTTPPublisher) Publish(ctx context.Context, m models.Measurement) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(m).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("failed to post measurement: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("endpoint returned %s", resp.Status())
	}
	return nil
}

// Close implements Publisher.
func (p *HTTPPublisher) Close() error { return nil }
