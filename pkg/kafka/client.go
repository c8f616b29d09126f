// Package kafka 提供了与 Kafka 消息队列交互的功能，用于发布和消费文档事件。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/log"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 将文档事件发送到 Kafka 主题。
type Publisher struct {
	writer messageWriter
}

// NewPublisher 初始化 Kafka 生产者。未配置 brokers 时返回 nil。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info("未配置 kafka.brokers, 文档事件发布已禁用")
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &Publisher{writer: w}
}

// Publish 发送一个事件，以 doc_id 作为消息 key 保证同一文档的事件有序。
func (p *Publisher) Publish(ctx context.Context, event model.DocumentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.DocID), Value: value}); err != nil {
		return fmt.Errorf("发送 Kafka 消息失败: %w", err)
	}
	return nil
}

// Close 关闭生产者并刷新缓冲区。
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// EventHandler 处理一条文档事件。
type EventHandler func(ctx context.Context, event model.DocumentEvent) error

// Consume 以消费者组的方式读取文档事件，直到 ctx 被取消。
// 处理成功或消息无法解析时提交 offset；处理失败时返回错误，由调用方决定是否重启。
func Consume(ctx context.Context, cfg config.KafkaConfig, groupID string, handle EventHandler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}

		var event model.DocumentEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := handle(ctx, event); err != nil {
			return fmt.Errorf("处理文档事件失败, doc_id=%s: %w", event.DocID, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}
