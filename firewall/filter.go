package firewall

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/houzhh15/zt-core/logging"
)

// AI 判定短路的置信度门限
const aiConfidenceThreshold = 0.8

// AIPredMalicious 外部推理服务的恶意判定值
const AIPredMalicious = "malicious"

// PacketFilter 决策合成器
// 将外部 AI 判定与规则存储的判定合成为单一决策；
// 高置信恶意判定短路规则匹配，优先级高于任何放行规则。
// 无副作用——执法是响应调度器的职责
type PacketFilter struct {
	store  *RuleStore
	logger logging.Logger
}

// NewPacketFilter 创建包过滤器
func NewPacketFilter(store *RuleStore, logger logging.Logger) *PacketFilter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PacketFilter{store: store, logger: logger}
}

// InspectPacket 检查包并产出决策
// 决策始终携带可读原因与原始包引用，供审计使用
func (f *PacketFilter) InspectPacket(p *Packet) *Decision {
	var (
		action DecisionAction
		reason string
		source string
	)

	if p.AIPred == AIPredMalicious && p.AIConfidence > aiConfidenceThreshold {
		action = DecisionDeny
		reason = "AI detected malicious"
		source = "ai"
	} else {
		action = DecisionAction(f.store.Decide(p))
		reason = fmt.Sprintf("Rule-based decision (%s)", action)
		source = "rule"
	}

	recordDecision(action, source)

	f.logger.Info("Packet decision",
		"action", string(action),
		"src_ip", p.SrcIP,
		"dst_ip", p.DstIP,
		"reason", reason,
	)

	return &Decision{
		ID:     uuid.NewString(),
		Action: action,
		Reason: reason,
		Packet: p,
	}
}
