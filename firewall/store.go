package firewall

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/protocol"
)

// Persister 规则集持久化接口
type Persister interface {
	Save(rules []*PacketRule) error
	Load() ([]*PacketRule, error)
}

// RuleStore 包规则存储
// 内存列表 + 读写锁：包检查是高频读路径，规则增删低频；
// 每次变更立即整体持久化，失败时继续以内存状态服务并置脏标记
type RuleStore struct {
	mu      sync.RWMutex
	rules   []*PacketRule
	ids     map[string]struct{}
	persist Persister
	dirty   bool
	logger  logging.Logger
}

// StoreConfig 规则存储配置
type StoreConfig struct {
	Persister Persister
	Logger    logging.Logger
}

// NewRuleStore 创建规则存储并加载既有规则（保持持久化顺序）
func NewRuleStore(cfg *StoreConfig) (*RuleStore, error) {
	s := &RuleStore{
		ids:    make(map[string]struct{}),
		logger: logging.Nop(),
	}
	if cfg != nil {
		s.persist = cfg.Persister
		if cfg.Logger != nil {
			s.logger = cfg.Logger
		}
	}

	if s.persist != nil {
		rules, err := s.persist.Load()
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		for _, r := range rules {
			s.rules = append(s.rules, r)
			s.ids[r.ID] = struct{}{}
		}
		s.logger.Info("Loaded firewall rules", "count", len(rules))
		ruleCount.Set(float64(len(rules)))
	}

	return s, nil
}

// AddRule 追加规则并持久化
// 规则 ID 在存储内唯一；持久化失败不回滚内存变更（见 Dirty）
func (s *RuleStore) AddRule(rule *PacketRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[rule.ID]; exists {
		return protocol.NewError(protocol.ErrCodeDuplicateRule,
			fmt.Sprintf("rule %s already exists", rule.ID))
	}
	s.rules = append(s.rules, rule)
	s.ids[rule.ID] = struct{}{}
	ruleCount.Set(float64(len(s.rules)))

	s.logger.Info("Added firewall rule",
		"rule_id", rule.ID,
		"src_ip", rule.SrcIP,
		"action", string(rule.Action),
	)

	s.saveLocked()
	return nil
}

// RemoveRule 按 ID 移除规则并持久化
func (s *RuleStore) RemoveRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[ruleID]; !exists {
		return protocol.NewError(protocol.ErrCodeRuleNotFound,
			fmt.Sprintf("rule %s not found", ruleID))
	}
	delete(s.ids, ruleID)
	for i, r := range s.rules {
		if r.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			break
		}
	}
	ruleCount.Set(float64(len(s.rules)))

	s.logger.Info("Removed firewall rule", "rule_id", ruleID)

	s.saveLocked()
	return nil
}

// HasRule 判断规则是否存在
func (s *RuleStore) HasRule(ruleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[ruleID]
	return ok
}

// Rules 返回规则快照（按存储顺序）
func (s *RuleStore) Rules() []*PacketRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PacketRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Match 线性扫描，返回首条命中的规则；无命中返回 nil
func (s *RuleStore) Match(p *Packet) *PacketRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.Matches(p) {
			return r
		}
	}
	return nil
}

// Decide 返回命中规则的动作；无命中默认拒绝（零信任）
func (s *RuleStore) Decide(p *Packet) RuleAction {
	if r := s.Match(p); r != nil {
		return r.Action
	}
	return RuleDeny
}

// Dirty 内存与磁盘规则集是否存在未保存的分歧
func (s *RuleStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// saveLocked 持久化当前规则集，调用方须持有写锁
// 失败只告警：决策路径不能因持久化故障中断
func (s *RuleStore) saveLocked() {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(s.rules); err != nil {
		s.dirty = true
		persistErrors.Inc()
		s.logger.Warn("Failed to persist firewall rules, serving from memory",
			"error", err.Error(),
			"count", len(s.rules),
		)
		return
	}
	s.dirty = false
}

// validateRule 校验规则字段
func validateRule(rule *PacketRule) error {
	if rule == nil || rule.ID == "" {
		return protocol.NewError(protocol.ErrCodeInvalidRule, "rule id is required")
	}
	if rule.SrcIP == "" || rule.DstIP == "" || rule.Protocol == "" || rule.Port == "" {
		return protocol.NewError(protocol.ErrCodeInvalidRule,
			fmt.Sprintf("rule %s: all match fields are required (use %q for any)", rule.ID, Wildcard))
	}
	if rule.Action != RuleAllow && rule.Action != RuleDeny {
		return protocol.NewError(protocol.ErrCodeInvalidRule,
			fmt.Sprintf("rule %s: invalid action %q", rule.ID, rule.Action))
	}
	return nil
}

// FilePersister 基于单文件的规则持久化
// 整个规则集序列化为一份 JSON 文档，写临时文件后原子重命名覆盖，
// 中途崩溃不会破坏已持久化的规则
type FilePersister struct {
	path string
}

// NewFilePersister 创建文件持久化器
func NewFilePersister(path string) (*FilePersister, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create rules dir: %w", err)
		}
	}
	return &FilePersister{path: path}, nil
}

// Save 原子覆盖写入完整规则集
func (f *FilePersister) Save(rules []*PacketRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".rules-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp rules file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp rules file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename rules file: %w", err)
	}
	return nil
}

// Load 反序列化持久化的规则列表，文件缺失视为空集
func (f *FilePersister) Load() ([]*PacketRule, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rules []*PacketRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules file: %w", err)
	}
	return rules, nil
}
