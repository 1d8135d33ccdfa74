package firewall

import "strconv"

// Wildcard 通配字段值，匹配任意包字段
const Wildcard = "*"

// RuleAction 包规则动作
type RuleAction string

const (
	RuleAllow RuleAction = "allow"
	RuleDeny  RuleAction = "deny"
)

// DecisionAction 包决策动作
type DecisionAction string

const (
	DecisionAllow      DecisionAction = "allow"
	DecisionDeny       DecisionAction = "deny"
	DecisionQuarantine DecisionAction = "quarantine"
)

// PacketRule 五元组式包过滤规则
// 每个字段为具体值或通配符 *；规则按插入顺序存储并持久化，
// 先命中先生效——更具体的规则须由调用方先于兜底规则插入
type PacketRule struct {
	ID       string     `json:"id"`
	SrcIP    string     `json:"src_ip"`
	DstIP    string     `json:"dst_ip"`
	Protocol string     `json:"protocol"`
	Port     string     `json:"port"`
	Action   RuleAction `json:"action"`
}

// Packet 待决策的包/流记录
// AIPred/AIConfidence 由外部推理服务填充，TrustScore 由信任评估器填充
type Packet struct {
	SrcIP        string  `json:"src_ip"`
	DstIP        string  `json:"dst_ip"`
	Protocol     string  `json:"protocol"`
	Port         int     `json:"port,omitempty"` // 0 表示无端口
	AIPred       string  `json:"ai_pred,omitempty"`
	AIConfidence float64 `json:"ai_confidence,omitempty"`
	TrustScore   float64 `json:"trust_score,omitempty"`
}

// Decision 单个包的最终决策，构造后不再修改
type Decision struct {
	ID     string         `json:"id"`
	Action DecisionAction `json:"action"`
	Reason string         `json:"reason"`
	Packet *Packet        `json:"packet"`
}

// Matches 判定规则是否命中包
// 四个字段全部为通配或与包字段精确相等才算命中；
// 端口通配同时匹配无端口的包
func (r *PacketRule) Matches(p *Packet) bool {
	if r.SrcIP != Wildcard && r.SrcIP != p.SrcIP {
		return false
	}
	if r.DstIP != Wildcard && r.DstIP != p.DstIP {
		return false
	}
	if r.Protocol != Wildcard && r.Protocol != p.Protocol {
		return false
	}
	if r.Port != Wildcard && r.Port != strconv.Itoa(p.Port) {
		return false
	}
	return true
}
