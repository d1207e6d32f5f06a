package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/BaSui01/consultflow/types"
)

// MongoClientStore 文档存储上的客户记录。
// 工作流状态内嵌在客户文档的 workflow 字段下，
// 按交付物类型分键。
type MongoClientStore struct {
	coll *mongo.Collection
}

// NewMongoClientStore 基于已有集合创建客户存储。
func NewMongoClientStore(coll *mongo.Collection) *MongoClientStore {
	return &MongoClientStore{coll: coll}
}

func (s *MongoClientStore) Exists(ctx context.Context, clientID string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": clientID})
	if err != nil {
		return false, fmt.Errorf("count client %s: %w", clientID, err)
	}
	return count > 0, nil
}

func (s *MongoClientStore) UpdateWorkflowStatus(ctx context.Context, clientID string, deliverable DeliverableType, status types.DeliverableStatus, result *StageResult) error {
	field := "workflow." + string(deliverable)
	update := bson.M{
		"$set": bson.M{
			field: DeliverableState{
				Deliverable: deliverable,
				Status:      status,
				Result:      result,
			},
			"updated_at": time.Now().UTC(),
		},
	}

	res, err := s.coll.UpdateByID(ctx, clientID, update)
	if err != nil {
		return fmt.Errorf("update workflow status for client %s: %w", clientID, err)
	}
	if res.MatchedCount == 0 {
		return types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}
	return nil
}

func (s *MongoClientStore) WorkflowState(ctx context.Context, clientID string) (map[DeliverableType]DeliverableState, error) {
	var doc struct {
		Workflow map[DeliverableType]DeliverableState `bson:"workflow"`
	}

	err := s.coll.FindOne(ctx, bson.M{"_id": clientID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow state for client %s: %w", clientID, err)
	}
	if doc.Workflow == nil {
		doc.Workflow = make(map[DeliverableType]DeliverableState)
	}
	return doc.Workflow, nil
}
