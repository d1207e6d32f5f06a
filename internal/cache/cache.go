// Package cache 提供交付物快照的 Redis 缓存。
//
// 发布的交付物结果以 JSON 快照写入，供读侧（门户、报表）
// 低延迟访问，源数据始终以文档存储为准。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/internal/metrics"
	"github.com/BaSui01/consultflow/types"
	"github.com/BaSui01/consultflow/workflow"
)

// ErrMiss 键不存在。
var ErrMiss = errors.New("cache: miss")

// Config Redis 缓存配置。
type Config struct {
	Addr     string         `yaml:"addr" json:"addr"`
	Password string         `yaml:"password" json:"password"`
	DB       int            `yaml:"db" json:"db"`
	TTL      types.Duration `yaml:"ttl" json:"ttl"`
}

// DefaultConfig 返回默认缓存配置。
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  types.Duration(24 * time.Hour),
	}
}

// Manager 交付物快照缓存。实现 workflow.Publisher。
type Manager struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewManager 创建缓存管理器。
func NewManager(cfg Config, collector *metrics.Collector, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	return &Manager{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:     cfg.TTL.Std(),
		metrics: collector,
		logger:  logger.With(zap.String("component", "deliverable_cache")),
	}
}

func deliverableKey(clientID string, deliverable workflow.DeliverableType) string {
	return fmt.Sprintf("consultflow:deliverable:%s:%s", clientID, deliverable)
}

// PublishDeliverable 将阶段结果快照写入缓存。
func (m *Manager) PublishDeliverable(ctx context.Context, clientID string, result *workflow.StageResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode deliverable snapshot: %w", err)
	}

	key := deliverableKey(clientID, result.Deliverable)
	if err := m.client.Set(ctx, key, payload, m.ttl).Err(); err != nil {
		return fmt.Errorf("cache deliverable %s: %w", key, err)
	}

	m.logger.Debug("deliverable snapshot cached",
		zap.String("client_id", clientID),
		zap.String("deliverable", string(result.Deliverable)))
	return nil
}

// GetDeliverable 读取交付物快照。未命中返回 ErrMiss。
func (m *Manager) GetDeliverable(ctx context.Context, clientID string, deliverable workflow.DeliverableType) (*workflow.StageResult, error) {
	payload, err := m.client.Get(ctx, deliverableKey(clientID, deliverable)).Bytes()
	if errors.Is(err, redis.Nil) {
		m.metrics.CacheMisses.Inc()
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read deliverable snapshot: %w", err)
	}

	var result workflow.StageResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode deliverable snapshot: %w", err)
	}
	m.metrics.CacheHits.Inc()
	return &result, nil
}

// Invalidate 删除客户的某个交付物快照。
func (m *Manager) Invalidate(ctx context.Context, clientID string, deliverable workflow.DeliverableType) error {
	return m.client.Del(ctx, deliverableKey(clientID, deliverable)).Err()
}

// Ping 健康检查。
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close 关闭底层连接。
func (m *Manager) Close() error {
	return m.client.Close()
}
