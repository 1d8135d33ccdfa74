package response

import "fmt"

// Severity 事件严重级别
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Incident 上游分析器产出的安全事件
type Incident struct {
	ID       string                 `json:"id"`
	Severity Severity               `json:"severity"`
	Summary  string                 `json:"summary"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// SrcIP 从事件数据中提取源地址，兼容 ip 与 src_ip 两种字段名
func (i *Incident) SrcIP() string {
	for _, key := range []string{"ip", "src_ip"} {
		if v, ok := i.Data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// RespondToIncident 按严重级别执行事件处置
// critical 封禁源地址；high 隔离主机；medium 仅告警；low 只记日志
func (d *Dispatcher) RespondToIncident(incident *Incident) error {
	if incident == nil {
		return fmt.Errorf("respond to incident: nil incident")
	}

	srcIP := incident.SrcIP()

	switch incident.Severity {
	case SeverityCritical:
		d.logger.Warn("Critical incident", "incident_id", incident.ID, "src_ip", srcIP)
		if srcIP != "" {
			if err := d.BlockIP(srcIP); err != nil {
				return err
			}
		}
		d.SendAlert("Critical incident blocked", map[string]interface{}{
			"incident_id": incident.ID,
			"summary":     incident.Summary,
		})
	case SeverityHigh:
		if srcIP != "" {
			d.IsolateHost(srcIP)
		}
		d.SendAlert("High severity incident isolated", map[string]interface{}{
			"incident_id": incident.ID,
			"summary":     incident.Summary,
		})
	case SeverityMedium:
		d.SendAlert("Medium severity alert review", map[string]interface{}{
			"incident_id": incident.ID,
			"summary":     incident.Summary,
		})
	default:
		d.logger.Info("Low severity incident, logged only", "incident_id", incident.ID)
	}
	return nil
}
