package session

import (
	"time"

	"github.com/houzhh15/zt-core/trust"
)

// Status 会话状态
type Status string

const (
	StatusActive      Status = "active"
	StatusSuspicious  Status = "suspicious"
	StatusQuarantined Status = "quarantined"
	StatusEnded       Status = "ended"
	StatusNotFound    Status = "not_found"
)

// 异常告警原因
const (
	AlertHighDataTransfer       = "high_data_transfer"
	AlertManyUniqueDestinations = "many_unique_destinations"
)

// Event 会话事件，仅保留在每会话的固定容量滑动窗口内
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	Bytes     int64     `json:"bytes"`
	DstPort   int       `json:"dport"`
	EventType string    `json:"event_type"`
}

// Alert 异常告警
type Alert struct {
	ID      string                 `json:"id"`
	Reason  string                 `json:"reason"`
	When    time.Time              `json:"when"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Snapshot 会话只读快照
// CheckSession 返回快照而非内部对象，调用方持有快照不影响监控器状态
type Snapshot struct {
	SessionID       string         `json:"session_id"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	LastSeen        time.Time      `json:"last_seen"`
	EndedAt         time.Time      `json:"ended_at,omitempty"`
	Context         *trust.Context `json:"context,omitempty"`
	CumulativeBytes int64          `json:"cumulative_bytes"`
	EventCount      int64          `json:"events_count"`
	Alerts          []*Alert       `json:"alerts,omitempty"`
}
