package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/config"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

const mqttWaitTimeout = 5 * time.Second

// MQTTClient paho 客户端中发布所需的部分
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher 把读数发布到 <topic>/<sensor_id>
type MQTTPublisher struct {
	client MQTTClient
	topic  string
	qos    byte
}

// NewMQTTPublisher 连接 broker 并创建发布器
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(mqttWaitTimeout)

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(mqttWaitTimeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker: timed out after %s", mqttWaitTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return NewMQTTPublisherWithClient(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTTPublisherWithClient 使用已连接的客户端创建发布器
func NewMQTTPublisherWithClient(client MQTTClient, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		qos:    qos,
	}
}

// Name implements Publisher.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic 读数对应的主题
func (p *MQTTPublisher) Topic(m models.Measurement) string {
	return p.topic + "/" + strconv.FormatInt(m.SensorID, 10)
}

// Publish 发布 JSON 消息
func (p *MQTTPublisher) Publish(ctx context.Context, m models.Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}

	topic := p.Topic(m)
	token := p.client.Publish(topic, p.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttWaitTimeout):
		return fmt.Errorf("publish to topic %s timed out", topic)
	}

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250) // 250ms等待时间
	return nil
}
