package engine

import (
	"fmt"

	"github.com/houzhh15/zt-core/firewall"
	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/policy"
	"github.com/houzhh15/zt-core/response"
	"github.com/houzhh15/zt-core/session"
	"github.com/houzhh15/zt-core/trust"
)

// Gateway 决策流水线
// 串联信任评估、包检查、响应处置与会话监控：
// 每个包先做上下文信任评估并把综合分附到包上，再经过滤器合成决策，
// 决策交给调度器执法，放行的流量事件喂入会话监控
type Gateway struct {
	verifier   *trust.Verifier
	policies   *policy.Engine
	filter     *firewall.PacketFilter
	dispatcher *response.Dispatcher
	monitor    *session.Monitor
	logger     logging.Logger
}

// GatewayConfig 流水线组件配置，monitor 与 dispatcher 可为 nil
type GatewayConfig struct {
	Verifier   *trust.Verifier
	Policies   *policy.Engine
	Filter     *firewall.PacketFilter
	Dispatcher *response.Dispatcher
	Monitor    *session.Monitor
	Logger     logging.Logger
}

// NewGateway 创建决策流水线
func NewGateway(cfg *GatewayConfig) (*Gateway, error) {
	if cfg == nil || cfg.Verifier == nil || cfg.Filter == nil {
		return nil, fmt.Errorf("gateway requires a verifier and a packet filter")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gateway{
		verifier:   cfg.Verifier,
		policies:   cfg.Policies,
		filter:     cfg.Filter,
		dispatcher: cfg.Dispatcher,
		monitor:    cfg.Monitor,
		logger:     logger,
	}, nil
}

// PacketRequest 一次包决策请求
type PacketRequest struct {
	SessionID string
	Context   *trust.Context
	Packet    *firewall.Packet
	Bytes     int64 // 本次流量字节数，喂入会话监控
}

// PacketResult 流水线产出
type PacketResult struct {
	Trust    *trust.ContextVerdict `json:"trust,omitempty"`
	Decision *firewall.Decision    `json:"decision"`
	Session  *session.Snapshot     `json:"session,omitempty"`
}

// ProcessPacket 执行完整的包决策流水线
// 处置失败降级为日志告警，决策本身始终返回
func (g *Gateway) ProcessPacket(req *PacketRequest) (*PacketResult, error) {
	if req == nil || req.Packet == nil {
		return nil, fmt.Errorf("process packet: nil request or packet")
	}

	result := &PacketResult{}

	// 信任评估把综合分写回上下文，这里同步附到包上
	if req.Context != nil {
		result.Trust = g.verifier.VerifyContext(req.Context)
		req.Packet.TrustScore = result.Trust.Score
	}

	result.Decision = g.filter.InspectPacket(req.Packet)

	if g.dispatcher != nil {
		if err := g.dispatcher.RespondToDecision(result.Decision); err != nil {
			g.logger.Warn("Decision response failed",
				"decision_id", result.Decision.ID,
				"error", err.Error(),
			)
		}
	}

	// 只有放行的事件进入会话监控
	if g.monitor != nil && req.SessionID != "" &&
		result.Decision.Action == firewall.DecisionAllow {
		result.Session = g.monitor.UpdateSession(req.SessionID, &session.Event{
			SrcIP:     req.Packet.SrcIP,
			DstIP:     req.Packet.DstIP,
			Bytes:     req.Bytes,
			DstPort:   req.Packet.Port,
			EventType: "packet",
		})
	}

	return result, nil
}

// EvaluateAccess 评估一次资源访问请求
// 先做上下文信任评估（写回 ctx.TrustScore），再走策略规则引擎
func (g *Gateway) EvaluateAccess(ctx *trust.Context, res *policy.Resource) (*policy.Result, error) {
	if g.policies == nil {
		return nil, fmt.Errorf("evaluate access: no policy engine configured")
	}
	if ctx == nil {
		return nil, fmt.Errorf("evaluate access: nil context")
	}

	g.verifier.VerifyContext(ctx)
	result := g.policies.Evaluate(ctx, res)

	g.logger.Info("Access evaluation",
		"action", string(result.Action),
		"rule", result.Rule,
		"score", fmt.Sprintf("%.2f", ctx.TrustScore),
	)

	return result, nil
}
