package policy

import (
	"github.com/houzhh15/zt-core/trust"
)

// Action 策略动作
type Action string

const (
	ActionAllow      Action = "allow"
	ActionDeny       Action = "deny"
	ActionChallenge  Action = "challenge"
	ActionQuarantine Action = "quarantine"
)

// DefaultDenyRule 未命中任何规则时返回的规则名
const DefaultDenyRule = "default-deny"

// Resource 受访资源属性
type Resource struct {
	ResourceID        string `json:"resource_id"`
	RequiredPrivilege string `json:"required_privilege_level,omitempty"`
	Sensitivity       string `json:"sensitivity,omitempty"`
}

// ConditionType 条件类型
type ConditionType string

const (
	// CondScoreThreshold 信任分阈值比较
	CondScoreThreshold ConditionType = "score_threshold"
	// CondRoleNetwork 角色 + 内网位置
	CondRoleNetwork ConditionType = "role_network"
	// CondTimeWindow 时段窗口
	CondTimeWindow ConditionType = "time_window"
	// CondAllOf 子条件全部成立
	CondAllOf ConditionType = "all_of"
	// CondAnyOf 子条件任一成立
	CondAnyOf ConditionType = "any_of"
)

// 阈值比较操作符
const (
	OpGTE = "gte"
	OpLT  = "lt"
)

// Condition 策略条件（带类型标签的变体）
// 保持可序列化、可检查；自定义逻辑走 Rule.Predicate 逃生通道
type Condition struct {
	Type ConditionType `json:"type"`

	// score_threshold
	Operator  string  `json:"operator,omitempty"` // gte（默认）或 lt
	Threshold float64 `json:"threshold,omitempty"`

	// role_network
	Role            string `json:"role,omitempty"`
	RequireInternal bool   `json:"require_internal,omitempty"`

	// time_window（半开区间 [start, end)，按 UTC + 偏移小时计算）
	StartHour int `json:"start_hour,omitempty"`
	EndHour   int `json:"end_hour,omitempty"`
	UTCOffset int `json:"utc_offset,omitempty"`

	// all_of / any_of
	Conditions []*Condition `json:"conditions,omitempty"`
}

// Predicate 自定义谓词，必须是纯函数
type Predicate func(ctx *trust.Context, res *Resource) bool

// Rule 策略规则
// Priority 数值越小越先评估，同优先级按加入顺序
// Condition 与 Predicate 至少设置其一；两者都设置时须同时成立
type Rule struct {
	Name      string     `json:"name"`
	Priority  int        `json:"priority"`
	Action    Action     `json:"action"`
	Condition *Condition `json:"condition,omitempty"`
	Predicate Predicate  `json:"-"`
}

// Result 评估结果
type Result struct {
	Action       Action  `json:"action"`
	Rule         string  `json:"rule"`
	ContextScore float64 `json:"context_score"`
}
