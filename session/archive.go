package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Storage 会话归档存储接口
type Storage interface {
	SaveSession(ctx context.Context, snap *Snapshot) error
	GetSession(ctx context.Context, sessionID string) (*Snapshot, error)
	QuerySessions(ctx context.Context, filter *ArchiveFilter) ([]*Snapshot, error)
}

// ArchiveFilter 归档查询过滤器
type ArchiveFilter struct {
	Status Status
	Since  time.Time
	Limit  int
}

// sessionDBModel 数据库模型（用于 GORM）
type sessionDBModel struct {
	ID              uint   `gorm:"primarykey"`
	SessionID       string `gorm:"uniqueIndex"`
	Status          string `gorm:"index"`
	CreatedAt       time.Time
	LastSeen        time.Time
	EndedAt         time.Time
	CumulativeBytes int64
	EventCount      int64
	AlertsJSON      string `gorm:"type:text"` // JSON 序列化的告警列表
	ContextJSON     string `gorm:"type:text"` // JSON 序列化的上下文快照
}

func (sessionDBModel) TableName() string {
	return "session_archive"
}

// DBArchive 基于数据库的会话归档
type DBArchive struct {
	db *gorm.DB
}

// NewDBArchive 创建数据库归档存储
func NewDBArchive(db *gorm.DB) (*DBArchive, error) {
	if err := db.AutoMigrate(&sessionDBModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate session archive table: %w", err)
	}
	return &DBArchive{db: db}, nil
}

// SaveSession 归档会话快照，同名会话覆盖更新
func (a *DBArchive) SaveSession(ctx context.Context, snap *Snapshot) error {
	model, err := a.toDBModel(snap)
	if err != nil {
		return fmt.Errorf("convert to db model: %w", err)
	}

	// 以 SessionID 为准更新或创建
	var existing sessionDBModel
	result := a.db.WithContext(ctx).Where("session_id = ?", snap.SessionID).First(&existing)
	if result.Error == nil {
		model.ID = existing.ID
	}

	if err := a.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("save session archive: %w", err)
	}
	return nil
}

// GetSession 读取归档会话
func (a *DBArchive) GetSession(ctx context.Context, sessionID string) (*Snapshot, error) {
	var model sessionDBModel
	result := a.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("get session archive: %w", result.Error)
	}

	return a.fromDBModel(&model)
}

// QuerySessions 按条件查询归档会话
func (a *DBArchive) QuerySessions(ctx context.Context, filter *ArchiveFilter) ([]*Snapshot, error) {
	query := a.db.WithContext(ctx).Model(&sessionDBModel{})

	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", string(filter.Status))
		}
		if !filter.Since.IsZero() {
			query = query.Where("ended_at >= ?", filter.Since)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
	}

	var models []sessionDBModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query session archive: %w", err)
	}

	snaps := make([]*Snapshot, 0, len(models))
	for i := range models {
		snap, err := a.fromDBModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("convert session %s: %w", models[i].SessionID, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// toDBModel 转换为数据库模型
func (a *DBArchive) toDBModel(snap *Snapshot) (*sessionDBModel, error) {
	model := &sessionDBModel{
		SessionID:       snap.SessionID,
		Status:          string(snap.Status),
		CreatedAt:       snap.CreatedAt,
		LastSeen:        snap.LastSeen,
		EndedAt:         snap.EndedAt,
		CumulativeBytes: snap.CumulativeBytes,
		EventCount:      snap.EventCount,
	}

	if len(snap.Alerts) > 0 {
		alertsJSON, err := json.Marshal(snap.Alerts)
		if err != nil {
			return nil, fmt.Errorf("marshal alerts: %w", err)
		}
		model.AlertsJSON = string(alertsJSON)
	}

	if snap.Context != nil {
		contextJSON, err := json.Marshal(snap.Context)
		if err != nil {
			return nil, fmt.Errorf("marshal context: %w", err)
		}
		model.ContextJSON = string(contextJSON)
	}

	return model, nil
}

// fromDBModel 从数据库模型转换
func (a *DBArchive) fromDBModel(model *sessionDBModel) (*Snapshot, error) {
	snap := &Snapshot{
		SessionID:       model.SessionID,
		Status:          Status(model.Status),
		CreatedAt:       model.CreatedAt,
		LastSeen:        model.LastSeen,
		EndedAt:         model.EndedAt,
		CumulativeBytes: model.CumulativeBytes,
		EventCount:      model.EventCount,
	}

	if model.AlertsJSON != "" {
		if err := json.Unmarshal([]byte(model.AlertsJSON), &snap.Alerts); err != nil {
			return nil, fmt.Errorf("unmarshal alerts: %w", err)
		}
	}
	if model.ContextJSON != "" {
		if err := json.Unmarshal([]byte(model.ContextJSON), &snap.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}

	return snap, nil
}
