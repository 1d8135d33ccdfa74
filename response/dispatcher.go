package response

import (
	"fmt"

	"github.com/houzhh15/zt-core/firewall"
	"github.com/houzhh15/zt-core/logging"
)

// Dispatcher 决策响应分发器
// 执行决策隐含的处置动作（插入封禁规则、隔离主机、发送告警），
// 并将每个动作写入只追加的审计日志。处置失败降级为日志告警，不中断决策流水线
type Dispatcher struct {
	store   *firewall.RuleStore
	actions logging.ActionLogger
	logger  logging.Logger
}

// NewDispatcher 创建响应分发器
// actions 为 nil 时跳过审计日志写入（仅限测试场景）
func NewDispatcher(store *firewall.RuleStore, actions logging.ActionLogger, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		store:   store,
		actions: actions,
		logger:  logger,
	}
}

// RespondToDecision 按决策动作执行处置
// deny 封禁源地址并告警；allow 仅记审计日志；
// 其余动作（quarantine 等）模拟隔离主机并告警
func (d *Dispatcher) RespondToDecision(decision *firewall.Decision) error {
	if decision == nil || decision.Packet == nil {
		return fmt.Errorf("respond to decision: nil decision or packet")
	}

	switch decision.Action {
	case firewall.DecisionDeny:
		if err := d.BlockIP(decision.Packet.SrcIP); err != nil {
			return err
		}
		d.SendAlert("Blocked malicious packet", map[string]interface{}{
			"src_ip": decision.Packet.SrcIP,
			"dst_ip": decision.Packet.DstIP,
			"reason": decision.Reason,
		})
	case firewall.DecisionAllow:
		d.logAction("allow", map[string]interface{}{
			"src_ip": decision.Packet.SrcIP,
			"dst_ip": decision.Packet.DstIP,
		})
	default:
		d.IsolateHost(decision.Packet.SrcIP)
		d.SendAlert("Host isolated for review", map[string]interface{}{
			"src_ip": decision.Packet.SrcIP,
			"reason": decision.Reason,
		})
	}
	return nil
}

// BlockIP 向规则库插入源地址封禁规则
// 同一地址重复封禁是幂等操作，已存在时不再插入
func (d *Dispatcher) BlockIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("block ip: empty source address")
	}

	ruleID := "auto_block_" + ip
	if !d.store.HasRule(ruleID) {
		rule := &firewall.PacketRule{
			ID:       ruleID,
			SrcIP:    ip,
			DstIP:    firewall.Wildcard,
			Protocol: firewall.Wildcard,
			Port:     firewall.Wildcard,
			Action:   firewall.RuleDeny,
		}
		if err := d.store.AddRule(rule); err != nil {
			return fmt.Errorf("add block rule for %s: %w", ip, err)
		}
	}

	d.logAction("block_ip", map[string]interface{}{"ip": ip})
	d.logger.Warn("Blocked IP", "ip", ip)
	return nil
}

// IsolateHost 隔离主机
// 当前为模拟动作，仅记录审计日志，不执行实际网络操作
func (d *Dispatcher) IsolateHost(hostIP string) {
	d.logAction("isolate_host", map[string]interface{}{"host": hostIP})
	d.logger.Warn("Host isolated (simulation)", "host", hostIP)
}

// SendAlert 发送告警并记录审计日志
func (d *Dispatcher) SendAlert(message string, details map[string]interface{}) {
	d.logAction("alert", map[string]interface{}{
		"message": message,
		"details": details,
	})
	d.logger.Info("Alert raised", "message", message)
}

func (d *Dispatcher) logAction(action string, data map[string]interface{}) {
	if d.actions == nil {
		return
	}
	if err := d.actions.LogAction(action, data); err != nil {
		d.logger.Warn("Failed to write action log",
			"action", action,
			"error", err.Error(),
		)
	}
}
