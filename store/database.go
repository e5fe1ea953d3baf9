package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/types"
)

// sessionRow is the relational shape of a session. Goal entities are small,
// write-once and read whole, so they stay a serialized column; turns get
// real rows (append-only, unique per sequence).
type sessionRow struct {
	ID                string `gorm:"primaryKey;size:36"`
	TenantID          string `gorm:"index;size:64"`
	UserID            string `gorm:"size:64"`
	Goal              string
	StartingURL       string
	GoalEntities      map[string]string `gorm:"serializer:json"`
	Status            string            `gorm:"size:16"`
	StepCount         int
	TotalInputTokens  int
	TotalOutputTokens int
	EstimatedCost     float64
	StartedAt         time.Time
	CompletedAt       *time.Time
	LastActivityAt    time.Time
	Version           int64
}

func (sessionRow) TableName() string { return "sessions" }

type turnRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"size:36;uniqueIndex:idx_session_seq"`
	Seq          int    `gorm:"uniqueIndex:idx_session_seq"`
	TurnNumber   int
	Kind         string `gorm:"size:16"`
	FieldLabel   string
	Value        string
	Confidence   float64
	GoalAchieved bool
	Timestamp    time.Time
}

func (turnRow) TableName() string { return "session_turns" }

// DatabaseStore persists sessions in a relational database via GORM.
type DatabaseStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDatabaseStore opens the configured driver and migrates the schema.
func NewDatabaseStore(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&sessionRow{}, &turnRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database store initialized", zap.String("driver", cfg.Driver))
	return &DatabaseStore{db: db, logger: logger.With(zap.String("component", "database_store"))}, nil
}

// Create persists a new session and its turns in one transaction.
func (s *DatabaseStore) Create(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&sessionRow{}).Where("id = ?", sess.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(toSessionRow(sess)).Error; err != nil {
			return err
		}
		for i, t := range sess.Turns {
			if err := tx.Create(toTurnRow(sess.ID, i, t)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a session with its full turn log.
func (s *DatabaseStore) Get(ctx context.Context, tenantID, id string) (*types.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var turnRows []turnRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("seq ASC").
		Find(&turnRows).Error; err != nil {
		return nil, err
	}

	return fromRows(&row, turnRows), nil
}

// Update applies a compare-and-swap on the version column and appends any
// new turns, all in one transaction.
func (s *DatabaseStore) Update(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sessionRow{}).
			Where("id = ? AND tenant_id = ? AND version = ?", sess.ID, sess.TenantID, sess.Version).
			Updates(map[string]any{
				"status":              string(sess.Status),
				"step_count":          sess.StepCount,
				"total_input_tokens":  sess.TotalInputTokens,
				"total_output_tokens": sess.TotalOutputTokens,
				"estimated_cost":      sess.EstimatedCost,
				"completed_at":        sess.CompletedAt,
				"last_activity_at":    sess.LastActivityAt,
				"version":             sess.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&sessionRow{}).
				Where("id = ? AND tenant_id = ?", sess.ID, sess.TenantID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		var persisted int64
		if err := tx.Model(&turnRow{}).Where("session_id = ?", sess.ID).Count(&persisted).Error; err != nil {
			return err
		}
		for i := int(persisted); i < len(sess.Turns); i++ {
			if err := tx.Create(toTurnRow(sess.ID, i, sess.Turns[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	sess.Version++
	return nil
}

// Ping checks database connectivity.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toSessionRow(sess *types.Session) *sessionRow {
	return &sessionRow{
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
}

func toTurnRow(sessionID string, seq int, t types.Turn) *turnRow {
	return &turnRow{
		SessionID:    sessionID,
		Seq:          seq,
		TurnNumber:   t.TurnNumber,
		Kind:         string(t.Kind),
		FieldLabel:   t.FieldLabel,
		Value:        t.Value,
		Confidence:   t.Confidence,
		GoalAchieved: t.GoalAchieved,
		Timestamp:    t.Timestamp,
	}
}

func fromRows(row *sessionRow, turnRows []turnRow) *types.Session {
	sess := &types.Session{
		ID:                row.ID,
		TenantID:          row.TenantID,
		UserID:            row.UserID,
		Goal:              row.Goal,
		StartingURL:       row.StartingURL,
		GoalEntities:      row.GoalEntities,
		Status:            types.Status(row.Status),
		StepCount:         row.StepCount,
		TotalInputTokens:  row.TotalInputTokens,
		TotalOutputTokens: row.TotalOutputTokens,
		EstimatedCost:     row.EstimatedCost,
		StartedAt:         row.StartedAt,
		CompletedAt:       row.CompletedAt,
		LastActivityAt:    row.LastActivityAt,
		Version:           row.Version,
	}
	for _, tr := range turnRows {
		sess.Turns = append(sess.Turns, types.Turn{
			TurnNumber:   tr.TurnNumber,
			Kind:         types.ActionKind(tr.Kind),
			FieldLabel:   tr.FieldLabel,
			Value:        tr.Value,
			Confidence:   tr.Confidence,
			GoalAchieved: tr.GoalAchieved,
			Timestamp:    tr.Timestamp,
		})
	}
	return sess
}

var _ SessionStore = (*DatabaseStore)(nil)
