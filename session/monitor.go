package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/trust"
)

const shardCount = 16

// 默认阈值
const (
	defaultWindowSize      = 500
	defaultBytesThreshold  = 100 * 1024 * 1024 // 100 MiB
	defaultUniqueDstWindow = 50
	defaultUniqueDstLimit  = 20
	defaultQuarantineLimit = 2
)

// session 监控器内部会话对象
// 可变字段由每会话锁保护，避免全局锁成为吞吐瓶颈
type session struct {
	mu sync.Mutex

	id              string
	createdAt       time.Time
	lastSeen        time.Time
	endedAt         time.Time
	ctx             *trust.Context
	status          Status
	cumulativeBytes int64
	eventCount      int64
	alerts          []*Alert
	window          *eventWindow
}

// Monitor 会话监控器
// 按分片组织的会话表；累计计数与滑动窗口驱动异常检测。
// 隔离升级（quarantined）在 CheckSession 读取时惰性评估，
// 而非每次写入评估——与告警累计语义一致并已被测试锁定
type Monitor struct {
	shards [shardCount]struct {
		mu       sync.RWMutex
		sessions map[string]*session
	}

	cfg     MonitorConfig
	archive Storage
	logger  logging.Logger
	now     func() time.Time
}

// MonitorConfig 监控器阈值配置，零值字段取默认值
type MonitorConfig struct {
	WindowSize      int   // 滑动窗口容量，默认 500
	BytesThreshold  int64 // 累计字节告警阈值，默认 100 MiB
	UniqueDstWindow int   // 目的地址统计取最近多少条窗口事件，默认 50
	UniqueDstLimit  int   // 不同目的地址告警阈值，默认 20
	QuarantineLimit int   // 触发隔离的告警数，默认 2
}

// NewMonitor 创建会话监控器
// archive 可为 nil，此时结束的会话仅保留在内存中
func NewMonitor(cfg *MonitorConfig, archive Storage, logger logging.Logger) *Monitor {
	m := &Monitor{
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
	if cfg != nil {
		m.cfg = *cfg
	}
	if m.cfg.WindowSize <= 0 {
		m.cfg.WindowSize = defaultWindowSize
	}
	if m.cfg.BytesThreshold <= 0 {
		m.cfg.BytesThreshold = defaultBytesThreshold
	}
	if m.cfg.UniqueDstWindow <= 0 {
		m.cfg.UniqueDstWindow = defaultUniqueDstWindow
	}
	if m.cfg.UniqueDstLimit <= 0 {
		m.cfg.UniqueDstLimit = defaultUniqueDstLimit
	}
	if m.cfg.QuarantineLimit <= 0 {
		m.cfg.QuarantineLimit = defaultQuarantineLimit
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	for i := range m.shards {
		m.shards[i].sessions = make(map[string]*session)
	}
	return m
}

func (m *Monitor) shard(id string) *struct {
	mu       sync.RWMutex
	sessions map[string]*session
} {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &m.shards[h.Sum32()%shardCount]
}

// CreateSession 创建会话，计数器清零、状态 active
// 同名会话已存在时返回现有会话的快照
func (m *Monitor) CreateSession(id string, ctx *trust.Context) *Snapshot {
	sh := m.shard(id)
	sh.mu.Lock()
	s, exists := sh.sessions[id]
	if !exists {
		now := m.now()
		s = &session{
			id:        id,
			createdAt: now,
			lastSeen:  now,
			ctx:       ctx,
			status:    StatusActive,
			window:    newEventWindow(m.cfg.WindowSize),
		}
		sh.sessions[id] = s
		sessionGauge.WithLabelValues(string(StatusActive)).Inc()
	}
	sh.mu.Unlock()

	if !exists {
		m.logger.Info("Session created", "session_id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UpdateSession 用一条事件更新会话状态并执行异常检测
// 未知会话按空上下文自动创建（记录告警日志）——这是有意的宽容策略
func (m *Monitor) UpdateSession(id string, e *Event) *Snapshot {
	sh := m.shard(id)
	sh.mu.Lock()
	s, exists := sh.sessions[id]
	if !exists {
		now := m.now()
		s = &session{
			id:        id,
			createdAt: now,
			lastSeen:  now,
			status:    StatusActive,
			window:    newEventWindow(m.cfg.WindowSize),
		}
		sh.sessions[id] = s
		sessionGauge.WithLabelValues(string(StatusActive)).Inc()
	}
	sh.mu.Unlock()

	if !exists {
		m.logger.Warn("Session not found, creating implicitly", "session_id", id)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = m.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = m.now()
	s.eventCount++
	s.cumulativeBytes += e.Bytes
	s.window.Append(e)

	// 两项检测相互独立，同一次更新可同时触发
	if s.cumulativeBytes > m.cfg.BytesThreshold {
		m.raiseAlertLocked(s, AlertHighDataTransfer, map[string]interface{}{
			"bytes": s.cumulativeBytes,
		})
	}

	uniqueDst := countUniqueDst(s.window.Recent(m.cfg.UniqueDstWindow))
	if uniqueDst > m.cfg.UniqueDstLimit {
		m.raiseAlertLocked(s, AlertManyUniqueDestinations, map[string]interface{}{
			"unique_dst": uniqueDst,
		})
	}

	return s.snapshotLocked()
}

// raiseAlertLocked 记录告警并将活跃会话升级为可疑，调用方须持有会话锁
func (m *Monitor) raiseAlertLocked(s *session, reason string, details map[string]interface{}) {
	s.alerts = append(s.alerts, &Alert{
		ID:      uuid.NewString(),
		Reason:  reason,
		When:    m.now(),
		Details: details,
	})
	if s.status == StatusActive {
		m.transitionLocked(s, StatusSuspicious)
	}
	anomalyAlerts.WithLabelValues(reason).Inc()

	m.logger.Info("Session anomaly detected",
		"session_id", s.id,
		"reason", reason,
	)
}

// CheckSession 返回会话快照
// 告警数达到阈值时在此处惰性升级为 quarantined；
// 未知会话返回 not_found 快照而非错误
func (m *Monitor) CheckSession(id string) *Snapshot {
	sh := m.shard(id)
	sh.mu.RLock()
	s, exists := sh.sessions[id]
	sh.mu.RUnlock()

	if !exists {
		return &Snapshot{SessionID: id, Status: StatusNotFound}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.alerts) >= m.cfg.QuarantineLimit &&
		s.status != StatusQuarantined && s.status != StatusEnded {
		m.transitionLocked(s, StatusQuarantined)
		m.logger.Warn("Session quarantined",
			"session_id", s.id,
			"alerts", len(s.alerts),
		)
	}

	return s.snapshotLocked()
}

// EndSession 结束会话并记录结束时间
// 幂等：会话已结束或不存在时静默返回
func (m *Monitor) EndSession(id string) {
	sh := m.shard(id)
	sh.mu.RLock()
	s, exists := sh.sessions[id]
	sh.mu.RUnlock()

	if !exists {
		return
	}

	s.mu.Lock()
	if s.status == StatusEnded {
		s.mu.Unlock()
		return
	}
	m.transitionLocked(s, StatusEnded)
	s.endedAt = m.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	m.logger.Info("Session ended", "session_id", id)

	// 归档失败只降级为告警，不影响会话状态
	if m.archive != nil {
		if err := m.archive.SaveSession(context.Background(), snap); err != nil {
			m.logger.Warn("Failed to archive session",
				"session_id", id,
				"error", err.Error(),
			)
		}
	}
}

// ActiveSessions 返回未结束会话的快照列表
func (m *Monitor) ActiveSessions() []*Snapshot {
	var out []*Snapshot
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		sessions := make([]*session, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			sessions = append(sessions, s)
		}
		sh.mu.RUnlock()

		for _, s := range sessions {
			s.mu.Lock()
			if s.status != StatusEnded {
				out = append(out, s.snapshotLocked())
			}
			s.mu.Unlock()
		}
	}
	return out
}

// transitionLocked 变更会话状态并同步指标，调用方须持有会话锁
func (m *Monitor) transitionLocked(s *session, to Status) {
	sessionGauge.WithLabelValues(string(s.status)).Dec()
	sessionGauge.WithLabelValues(string(to)).Inc()
	s.status = to
}

// snapshotLocked 生成只读快照，调用方须持有会话锁
func (s *session) snapshotLocked() *Snapshot {
	alerts := make([]*Alert, len(s.alerts))
	copy(alerts, s.alerts)
	return &Snapshot{
		SessionID:       s.id,
		Status:          s.status,
		CreatedAt:       s.createdAt,
		LastSeen:        s.lastSeen,
		EndedAt:         s.endedAt,
		Context:         s.ctx,
		CumulativeBytes: s.cumulativeBytes,
		EventCount:      s.eventCount,
		Alerts:          alerts,
	}
}

// countUniqueDst 统计事件列表中不同目的地址的数量
func countUniqueDst(events []*Event) int {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.DstIP != "" {
			seen[e.DstIP] = struct{}{}
		}
	}
	return len(seen)
}
