package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/types"
)

// MongoConfig 文档存储配置。
type MongoConfig struct {
	URI        string `yaml:"uri" json:"uri"`
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
}

// DefaultMongoConfig 返回默认配置。
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "consultflow",
		Collection: "artifacts",
	}
}

// MongoStore 基于文档存储的实现，适合生产部署。
// 依赖图的两个方向不在同一事务内维护：产出物创建与 dependents
// 补写是独立写入，接受最终一致。
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewMongoStore 连接文档存储并确保索引。
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Database == "" || cfg.Collection == "" {
		def := DefaultMongoConfig()
		if cfg.Database == "" {
			cfg.Database = def.Database
		}
		if cfg.Collection == "" {
			cfg.Collection = def.Collection
		}
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	store := &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger.With(zap.String("component", "artifact_store")),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "stage", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, a *Artifact) error {
	if a == nil || a.ID == "" || a.ClientID == "" {
		return ErrInvalidInput
	}

	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert artifact %s: %w", a.ID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Artifact, error) {
	var a Artifact
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact %s: %w", id, err)
	}
	return &a, nil
}

func (s *MongoStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*Artifact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for client %s: %w", clientID, err)
	}
	defer cursor.Close(ctx)

	var out []*Artifact
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}
	return out, nil
}

func (s *MongoStore) AppendDependent(ctx context.Context, id, dependentID string) error {
	if dependentID == "" {
		return ErrInvalidInput
	}

	res, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"dependents": dependentID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("append dependent %s -> %s: %w", dependentID, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// StageStats 使用聚合管道按阶段分组统计。
func (s *MongoStore) StageStats(ctx context.Context, clientID string) ([]StageStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"client_id": clientID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$stage",
			"count": bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(types.ArtifactCompleted)}}, 1, 0},
			}},
			"avg_quality": bson.M{"$avg": "$metadata.quality_score"},
			"last_at":     bson.M{"$max": "$created_at"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate stage stats: %w", err)
	}
	defer cursor.Close(ctx)

	var out []StageStats
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode stage stats: %w", err)
	}
	return out, nil
}

// Client 暴露底层连接，供共享同一文档存储的其他集合复用。
func (s *MongoStore) Client() *mongo.Client {
	return s.client
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
