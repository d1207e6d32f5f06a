package artifact

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/consultflow/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("artifact not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrStoreClosed  = errors.New("store is closed")
)

// StageStats 单阶段的聚合统计，由存储端的分组查询产生。
type StageStats struct {
	Stage      types.Stage `json:"stage" bson:"_id"`
	Count      int         `json:"count" bson:"count"`
	Completed  int         `json:"completed" bson:"completed"`
	AvgQuality float64     `json:"avg_quality" bson:"avg_quality"`
	LastAt     time.Time   `json:"last_at" bson:"last_at"`
}

// Store 产出物持久层接口。
// Schema 级不变式（必填字段、状态枚举）由存储协作方保证；
// 核心只定义语义：产出物创建后不删除，唯一的变更是补写 dependents 边。
type Store interface {
	// Create 持久化一个新产出物
	Create(ctx context.Context, a *Artifact) error

	// Get 按 id 查询，不存在返回 ErrNotFound
	Get(ctx context.Context, id string) (*Artifact, error)

	// ListByClient 返回客户最近的产出物，按创建时间倒序，limit <= 0 不限量
	ListByClient(ctx context.Context, clientID string, limit int) ([]*Artifact, error)

	// AppendDependent 向指定产出物追加一条 dependents 边（幂等）
	AppendDependent(ctx context.Context, id, dependentID string) error

	// StageStats 按阶段分组统计客户的产出物
	StageStats(ctx context.Context, clientID string) ([]StageStats, error)

	// Ping 健康检查
	Ping(ctx context.Context) error

	// Close 释放资源
	Close(ctx context.Context) error
}
