package intel

import (
	"errors"
	"regexp"
	"sort"

	"github.com/houzhh15/zt-core/firewall"
	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/protocol"
)

// 单次喂入的最大规则数，防止异常大的情报源撑爆规则库
const maxRulesPerUpdate = 1000

var ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// Feed 解析后的威胁情报
type Feed struct {
	IPs     []string `json:"ips"`
	Domains []string `json:"domains"`
}

// ExtractIPs 从情报源原始文本中提取去重排序后的 IPv4 地址
func ExtractIPs(raw []string) []string {
	seen := make(map[string]struct{})
	for _, item := range raw {
		for _, ip := range ipPattern.FindAllString(item, -1) {
			seen[ip] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ip := range seen {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

// Updater 威胁情报规则更新器
// 把情报源中的恶意地址批量转换为规则库的拒绝规则
type Updater struct {
	store  *firewall.RuleStore
	logger logging.Logger
}

// NewUpdater 创建规则更新器
func NewUpdater(store *firewall.RuleStore, logger logging.Logger) *Updater {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Updater{store: store, logger: logger}
}

// UpdateRules 为情报源中的每个地址插入源地址拒绝规则
// 已存在的规则跳过；返回本次实际新增的规则数。
// 单次最多处理 maxRulesPerUpdate 个地址，超出部分留待下次喂入
func (u *Updater) UpdateRules(feed *Feed) (int, error) {
	if feed == nil {
		return 0, nil
	}

	ips := feed.IPs
	if len(ips) > maxRulesPerUpdate {
		u.logger.Warn("Threat feed truncated",
			"total", len(ips),
			"limit", maxRulesPerUpdate,
		)
		ips = ips[:maxRulesPerUpdate]
	}

	added := 0
	for _, ip := range ips {
		rule := &firewall.PacketRule{
			ID:       "threat_feed_" + ip,
			SrcIP:    ip,
			DstIP:    firewall.Wildcard,
			Protocol: firewall.Wildcard,
			Port:     firewall.Wildcard,
			Action:   firewall.RuleDeny,
		}
		if err := u.store.AddRule(rule); err != nil {
			var perr *protocol.Error
			if errors.As(err, &perr) && perr.Code == protocol.ErrCodeDuplicateRule {
				continue
			}
			return added, err
		}
		added++
	}

	u.logger.Info("Updated firewall rules from threat feed", "added", added)
	return added, nil
}
