package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/types"
)

// sessionDoc is the MongoDB shape of a session. The turn log is a typed
// array, never stringified JSON.
type sessionDoc struct {
	ID                string            `bson:"_id"`
	TenantID          string            `bson:"tenant_id"`
	UserID            string            `bson:"user_id,omitempty"`
	Goal              string            `bson:"goal"`
	StartingURL       string            `bson:"starting_url,omitempty"`
	GoalEntities      map[string]string `bson:"goal_entities,omitempty"`
	Status            string            `bson:"status"`
	Turns             []turnDoc         `bson:"turns,omitempty"`
	StepCount         int               `bson:"step_count"`
	TotalInputTokens  int               `bson:"total_input_tokens"`
	TotalOutputTokens int               `bson:"total_output_tokens"`
	EstimatedCost     float64           `bson:"estimated_cost"`
	StartedAt         time.Time         `bson:"started_at"`
	CompletedAt       *time.Time        `bson:"completed_at,omitempty"`
	LastActivityAt    time.Time         `bson:"last_activity_at"`
	Version           int64             `bson:"version"`
}

type turnDoc struct {
	TurnNumber   int       `bson:"turn_number"`
	Kind         string    `bson:"kind"`
	FieldLabel   string    `bson:"field_label,omitempty"`
	Value        string    `bson:"value,omitempty"`
	Confidence   float64   `bson:"confidence,omitempty"`
	GoalAchieved bool      `bson:"goal_achieved,omitempty"`
	Timestamp    time.Time `bson:"timestamp"`
}

// MongoStore persists sessions as documents in a single collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoStore connects to MongoDB and selects the configured collection.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return &MongoStore{
		client:     client,
		collection: coll,
		logger:     logger.With(zap.String("component", "mongo_store")),
	}, nil
}

// Create inserts a new session document.
func (s *MongoStore) Create(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}
	_, err := s.collection.InsertOne(ctx, toDoc(sess))
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

// Get retrieves a session by (tenant, id).
func (s *MongoStore) Get(ctx context.Context, tenantID, id string) (*types.Session, error) {
	var doc sessionDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromDoc(&doc), nil
}

// Update replaces the document only when the stored version matches.
func (s *MongoStore) Update(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	next := toDoc(sess)
	next.Version = sess.Version + 1

	res, err := s.collection.ReplaceOne(ctx, bson.M{
		"_id":       sess.ID,
		"tenant_id": sess.TenantID,
		"version":   sess.Version,
	}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish absence from a lost race.
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": sess.ID, "tenant_id": sess.TenantID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	sess.Version++
	return nil
}

// Ping checks MongoDB connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toDoc(sess *types.Session) *sessionDoc {
	doc := &sessionDoc{
		ID:                sess.ID,
		TenantID:          sess.TenantID,
		UserID:            sess.UserID,
		Goal:              sess.Goal,
		StartingURL:       sess.StartingURL,
		GoalEntities:      sess.GoalEntities,
		Status:            string(sess.Status),
		StepCount:         sess.StepCount,
		TotalInputTokens:  sess.TotalInputTokens,
		TotalOutputTokens: sess.TotalOutputTokens,
		EstimatedCost:     sess.EstimatedCost,
		StartedAt:         sess.StartedAt,
		CompletedAt:       sess.CompletedAt,
		LastActivityAt:    sess.LastActivityAt,
		Version:           sess.Version,
	}
	for _, t := range sess.Turns {
		doc.Turns = append(doc.Turns, turnDoc{
			TurnNumber:   t.TurnNumber,
			Kind:         string(t.Kind),
			FieldLabel:   t.FieldLabel,
			Value:        t.Value,
			Confidence:   t.Confidence,
			GoalAchieved: t.GoalAchieved,
			Timestamp:    t.Timestamp,
		})
	}
	return doc
}

func fromDoc(doc *sessionDoc) *types.Session {
	sess := &types.Session{
		ID:                doc.ID,
		TenantID:          doc.TenantID,
		UserID:            doc.UserID,
		Goal:              doc.Goal,
		StartingURL:       doc.StartingURL,
		GoalEntities:      doc.GoalEntities,
		Status:            types.Status(doc.Status),
		StepCount:         doc.StepCount,
		TotalInputTokens:  doc.TotalInputTokens,
		TotalOutputTokens: doc.TotalOutputTokens,
		EstimatedCost:     doc.EstimatedCost,
		StartedAt:         doc.StartedAt,
		CompletedAt:       doc.CompletedAt,
		LastActivityAt:    doc.LastActivityAt,
		Version:           doc.Version,
	}
	for _, t := range doc.Turns {
		sess.Turns = append(sess.Turns, types.Turn{
			TurnNumber:   t.TurnNumber,
			Kind:         types.ActionKind(t.Kind),
			FieldLabel:   t.FieldLabel,
			Value:        t.Value,
			Confidence:   t.Confidence,
			GoalAchieved: t.GoalAchieved,
			Timestamp:    t.Timestamp,
		})
	}
	return sess
}

var _ SessionStore = (*MongoStore)(nil)
